// Package stats implements the worker-side stats reporter: it records
// per-request outcomes into the domain's sliding windows, monotonic
// counters, and RecentRequests list, and mirrors every domain ever
// observed into the known_tlds set.
package stats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuneetDabral/crawlreg/schema"
	"github.com/PuneetDabral/crawlreg/storetx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// sampleSeq disambiguates window-member uniquifiers minted within the
// same nanosecond, which UnixNano() alone cannot rule out under load.
var sampleSeq int64

// Reporter records per-request outcomes on behalf of a worker.
type Reporter struct {
	client *redis.Client
	logger zerolog.Logger
	recentCap int64
	callsTotal *prometheus.CounterVec

	mu sync.Mutex
	knownTLDs map[string]struct{}
}

// New returns a Reporter backed by client. recentCap is the configured
// hard-halt sample size, the width of the RecentRequests list.
func New(client *redis.Client, logger zerolog.Logger, recentCap int, reg prometheus.Registerer) *Reporter {
	if recentCap <= 0 {
		recentCap = schema.RecentRequestsCap
	}
	callsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stats_reporter_calls_total",
		Help: "Calls to the stats reporter, labeled by outcome.",
	}, []string{"outcome"})
	if reg != nil {
		reg.MustRegister(callsTotal)
	}
	return &Reporter{
		client: client,
		logger: logger.With().Str("component", "stats_reporter").Logger(),
		recentCap: int64(recentCap),
		callsTotal: callsTotal,
		knownTLDs: make(map[string]struct{}),
	}
}

// RecordSuccess increments global and per-domain success counters and
// inserts (now, 1) into all three sliding windows, trimmed to their
// interval. Every write for this call commits as one pipelined
// transaction.
func (r *Reporter) RecordSuccess(ctx context.Context, domain string) error {
	tx := storetx.New(r.client)
	tx.Queue(func(pipe redis.Pipeliner) {
		pipe.Incr(ctx, schema.SuccessCountKey)
		pipe.Incr(ctx, schema.DomainSuccessCountKey(domain))
	})
	queueWindowSamples(ctx, tx, domain, schema.OutcomeSucceeded)

	if err := tx.Commit(ctx); err != nil {
		r.callsTotal.WithLabelValues("success_error").Inc()
		return fmt.Errorf("stats: record_success(%s): %w", domain, err)
	}
	r.callsTotal.WithLabelValues("success").Inc()
	return nil
}

// RecordError records a per-request failure. A 404 or
// UnidentifiedImageError code is benign: counters still increment but the
// sliding windows (and therefore the circuit breaker) are untouched,
// because the source served a valid response — only the image was bad.
// RecentRequests always receives the code, regardless of benignity.
func (r *Reporter) RecordError(ctx context.Context, domain string, code string) error {
	tx := storetx.New(r.client)
	tx.Queue(func(pipe redis.Pipeliner) {
		pipe.Incr(ctx, schema.ErrorCountKey)
		pipe.Incr(ctx, schema.DomainErrorCountKey(domain))
	})

	affectsRateLimiting := true
	if code != "" {
		tx.Queue(func(pipe redis.Pipeliner) {
			pipe.Incr(ctx, schema.DomainErrorCodeCountKey(domain, code))
		})
		if code == schema.BenignCode404 || code == schema.BenignUnidentifiedImage {
			affectsRateLimiting = false
		}
		queueRecentRequest(ctx, tx, domain, code, r.recentCap)
	}

	if affectsRateLimiting {
		queueWindowSamples(ctx, tx, domain, schema.OutcomeFailed)
	}

	if err := tx.Commit(ctx); err != nil {
		r.callsTotal.WithLabelValues("error_error").Inc()
		return fmt.Errorf("stats: record_error(%s, %s): %w", domain, code, err)
	}
	r.callsTotal.WithLabelValues("error").Inc()
	return nil
}

// UpdateTLDs records that domain has been observed: the first time it
// is added both to the in-memory mirror and to the known_tlds set in
// the shared store; subsequent calls are in-memory no-ops.
func (r *Reporter) UpdateTLDs(ctx context.Context, domain string) error {
	r.mu.Lock()
	_, seen := r.knownTLDs[domain]
	if !seen {
		r.knownTLDs[domain] = struct{}{}
	}
	r.mu.Unlock()

	if seen {
		return nil
	}

	if err := r.client.SAdd(ctx, schema.KnownTLDsKey, domain).Err(); err != nil {
		return fmt.Errorf("stats: update_tlds(%s): %w", domain, err)
	}
	return nil
}

// queueWindowSamples queues an insert of (now, outcome) into every
// sliding window for domain plus its trim to the window's interval. The
// sample's score and member are computed once, up front, so a retried
// commit attempt replays the identical write rather than minting a new
// timestamp per attempt. Each sample gets a unique member string
// (schema.WindowMember) so repeated samples with the same outcome
// accumulate as distinct entries instead of colliding on a shared member
// and silently overwriting each other's score.
func queueWindowSamples(ctx context.Context, tx *storetx.Builder, domain string, outcome int) {
	now := time.Now()
	score := float64(now.Unix())
	uniq := now.UnixNano() + atomic.AddInt64(&sampleSeq, 1)
	member := schema.WindowMember(outcome, uniq)
	windows := schema.AllWindowKeys(domain)

	tx.Queue(func(pipe redis.Pipeliner) {
		for key, interval := range windows {
			pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
			pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%f", score-float64(interval)))
		}
	})
}

// queueRecentRequest queues an append of code to the capped
// RecentRequests list and its trim to the last cap entries, dropping the
// oldest first.
func queueRecentRequest(ctx context.Context, tx *storetx.Builder, domain, code string, cap int64) {
	key := schema.RecentRequestsKey(domain)
	tx.Queue(func(pipe redis.Pipeliner) {
		pipe.RPush(ctx, key, code)
		pipe.LTrim(ctx, key, -cap, -1)
	})
}
