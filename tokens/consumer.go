// Package tokens implements the worker-side token consumer: before
// every outbound fetch a worker atomically decrements the domain's
// token bucket, backing off when it is empty, and skips the domain
// entirely while it is halted or temp-halted.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuneetDabral/crawlreg/schema"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Permit is returned by Acquire when a token was obtained.
type Permit struct {
	Domain string
}

// ErrHalted is returned when the domain is in `halted` or `temp_halted`;
// the caller must skip the task (re-enqueue for later) without touching
// the bucket.
var ErrHalted = errors.New("tokens: domain is halted")

// ErrAcquireCancelled is returned when ctx is cancelled while waiting for
// a token.
var ErrAcquireCancelled = errors.New("tokens: acquire cancelled")

// Consumer acquires tokens for a worker before it fetches from a domain.
type Consumer struct {
	client *redis.Client
	logger zerolog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

// New returns a Consumer backed by client.
func New(client *redis.Client, logger zerolog.Logger) *Consumer {
	return &Consumer{
		client: client,
		logger: logger.With().Str("component", "token_consumer").Logger(),
		minBackoff: 50 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}
}

// Acquire returns a permit for domain, or skips it via ErrHalted. It
// checks halted/temp_halted first, then loops decrementing
// currtokens:{domain}, restoring the decrement and backing off when the
// bucket would go negative, until a token is available or ctx is
// cancelled.
func (c *Consumer) Acquire(ctx context.Context, domain string) (*Permit, error) {
	halted, err := c.isHalted(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("tokens: check halt state for %s: %w", domain, err)
	}
	if halted {
		return nil, ErrHalted
	}

	backoff := c.minBackoff
	for {
		ok, targetRPS, err := c.tryDecrement(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("tokens: acquire(%s): %w", domain, err)
		}
		if ok {
			return &Permit{Domain: domain}, nil
		}

		wait := backoff
		if targetRPS > 0 {
			wait = time.Duration(float64(time.Second) / float64(targetRPS))
		}
		if wait > c.maxBackoff {
			wait = c.maxBackoff
		}

		select {
		case <-ctx.Done():
			return nil, ErrAcquireCancelled
		case <-time.After(wait):
		}

		if backoff < c.maxBackoff {
			backoff *= 2
		}
	}
}

// isHalted reports whether domain is a member of either halt set. Both
// sets are checked; a domain may be in either, neither, or both.
func (c *Consumer) isHalted(ctx context.Context, domain string) (bool, error) {
	hard, err := c.client.SIsMember(ctx, schema.HaltedKey, domain).Result()
	if err != nil {
		return false, err
	}
	if hard {
		return true, nil
	}
	n, err := c.client.Exists(ctx, schema.TempHaltedKey(domain)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// tryDecrement atomically decrements currtokens:{domain}. If the result
// is negative the decrement is restored (incremented back) so the bucket
// settles back at zero, and the caller is told to retry; another client
// can still read the negative value between the DECR and the INCR. On
// success it also returns the bucket value before the decrement; on
// failure that value is 0, so Acquire's 1/targetRPS pacing never applies
// and its wait is the exponential backoff alone.
func (c *Consumer) tryDecrement(ctx context.Context, domain string) (ok bool, currentValue int64, err error) {
	key := schema.TokenBucketKey(domain)
	val, err := c.client.Decr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if val < 0 {
		if _, err := c.client.Incr(ctx, key).Result(); err != nil {
			return false, 0, err
		}
		return false, 0, nil
	}
	return true, val + 1, nil
}
