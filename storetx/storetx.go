// Package storetx turns a worker or regulator call's sequence of store
// writes into one transactional batch: callers accumulate commands
// against a Builder and commit them as a single atomic pipeline, so a
// call's counter increments, window inserts, and list appends land
// together or not at all.
package storetx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxCommitAttempts bounds the exponential-backoff retry on transient
// store errors before Commit gives up and surfaces a degraded signal.
const maxCommitAttempts = 4

var initialCommitBackoff = 20 * time.Millisecond

// CommandFunc queues one or more commands against pipe. Builder replays
// every queued CommandFunc against a fresh Pipeliner on each commit
// attempt, since a go-redis Pipeliner discards its queued commands the
// moment Exec is called once, successfully or not — simply calling Exec
// again on the same Pipeliner for a retry would silently execute nothing.
type CommandFunc func(pipe redis.Pipeliner)

// Builder accumulates CommandFuncs to run as a single pipelined
// transaction. It is not safe for concurrent use; each caller should
// build and commit its own Builder.
type Builder struct {
	client   *redis.Client
	commands []CommandFunc
}

// New starts a fresh transactional batch against client.
func New(client *redis.Client) *Builder {
	return &Builder{client: client}
}

// Queue appends one step of pipeline-building work to the batch. Call it
// as many times as needed before Commit; on every commit attempt every
// queued func runs, in order, against one shared Pipeliner built fresh
// for that attempt.
func (b *Builder) Queue(fn CommandFunc) {
	b.commands = append(b.commands, fn)
}

// Commit builds a fresh Pipeliner, replays every queued CommandFunc
// against it, and executes the batch as one atomic MULTI/EXEC. If ctx is
// already cancelled, Commit discards the batch without issuing any
// command — partial writes on cancellation are not possible. A transient
// store error (network-level failures, not command errors) is retried
// with exponential backoff — rebuilding the pipeline from scratch each
// attempt — up to maxCommitAttempts times before Commit gives up; the
// caller treats the returned error as a degraded signal to log, not a
// reason to crash.
func (b *Builder) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("storetx: batch discarded: %w", err)
	}

	backoff := initialCommitBackoff
	var lastErr error
	attempt := 1
	for ; attempt <= maxCommitAttempts; attempt++ {
		pipe := b.client.TxPipeline()
		for _, fn := range b.commands {
			fn(pipe)
		}

		_, err := pipe.Exec(ctx)
		if err == nil || err == redis.Nil {
			return nil
		}
		lastErr = err
		if !isTransientStoreError(err) || attempt == maxCommitAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("storetx: batch discarded: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("storetx: commit failed after %d attempt(s): %w", attempt, lastErr)
}

// isTransientStoreError reports whether err looks like a network-level
// failure worth retrying, as opposed to a permanent command error (bad
// argument, wrong type, etc.) that would fail identically on retry.
func isTransientStoreError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}
