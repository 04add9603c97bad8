// Package regulator implements the Rate Regulator control loop: a
// single long-running task that, on each tick, fetches the catalog's
// source list, computes a target crawl rate per known domain, applies
// circuit-breaker evaluation, and overwrites each domain's token
// bucket. It runs once immediately, then on a ticker, and is
// cancellable between units of work.
package regulator

import (
	"context"
	"errors"
	"time"

	"github.com/PuneetDabral/crawlreg/canonical"
	"github.com/PuneetDabral/crawlreg/catalog"
	"github.com/PuneetDabral/crawlreg/schema"
	"github.com/PuneetDabral/crawlreg/storetx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SourceLister is the subset of catalog.Client the Regulator depends on,
// kept as an interface so tests can substitute a fixture without a real
// HTTP server.
type SourceLister interface {
	FetchSources(ctx context.Context) ([]catalog.Source, error)
}

// Regulator runs the control loop described above.
type Regulator struct {
	client *redis.Client
	sources SourceLister
	canon *canonical.Canonicaliser
	breaker *Breaker
	rate RateConfig
	tick time.Duration
	tempHaltTTL time.Duration
	logger zerolog.Logger

	tickDuration *prometheus.HistogramVec
	targetRPS *prometheus.GaugeVec
	breakerState *prometheus.GaugeVec

	cancel context.CancelFunc
	done chan struct{}
}

// New returns a Regulator wired to its collaborators. reg may be nil to
// skip Prometheus registration (e.g. in tests).
func New(
	client *redis.Client,
	sources SourceLister,
	canon *canonical.Canonicaliser,
	breaker *Breaker,
	rate RateConfig,
	tick time.Duration,
	tempHaltTTL time.Duration,
	logger zerolog.Logger,
	reg prometheus.Registerer,
) *Regulator {
	r := &Regulator{
		client: client,
		sources: sources,
		canon: canon,
		breaker: breaker,
		rate: rate,
		tick: tick,
		tempHaltTTL: tempHaltTTL,
		logger: logger.With().Str("component", "regulator").Logger(),
		done: make(chan struct{}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "regulator_tick_duration_seconds",
			Help: "Duration of a completed regulator tick.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		targetRPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "regulator_target_rps",
			Help: "Target requests-per-second last written for a domain.",
		}, []string{"domain"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "regulator_breaker_state",
			Help: "1 if the domain is currently in the given breaker state, else 0.",
		}, []string{"domain", "state"}),
	}
	if reg != nil {
		reg.MustRegister(r.tickDuration, r.targetRPS, r.breakerState)
	}
	return r
}

// Start begins the background tick loop. Call Stop to shut it down.
func (r *Regulator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.logger.Info().Dur("tick", r.tick).Msg("starting rate regulator")
	go r.loop(ctx)
}

// Stop cancels the loop and waits for the in-flight tick to unwind.
func (r *Regulator) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
	r.logger.Info().Msg("rate regulator stopped")
}

func (r *Regulator) loop(ctx context.Context) {
	defer close(r.done)

	r.Tick(ctx)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick fetches the source list and, for each source whose domain is
// known, computes and applies its target rate. A catalog failure skips
// the entire tick; no partial source list is ever applied. The whole
// tick accepts cancellation between sources, never mid-pipeline for a
// single source.
func (r *Regulator) Tick(ctx context.Context) {
	start := time.Now()
	sources, err := r.sources.FetchSources(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Warn().Err(err).Msg("catalog fetch failed, skipping tick")
		}
		r.tickDuration.WithLabelValues("catalog_error").Observe(time.Since(start).Seconds())
		return
	}

	for _, source := range sources {
		if ctx.Err() != nil {
			r.tickDuration.WithLabelValues("cancelled").Observe(time.Since(start).Seconds())
			return
		}
		r.applySource(ctx, source)
	}

	r.tickDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
}

// applySource handles one catalog source: skip unknown domains,
// compute the target rate, evaluate both breakers, and overwrite the
// token bucket accordingly, all in one pipelined transaction so a
// crash mid-tick cannot leave a domain with a half-applied write.
func (r *Regulator) applySource(ctx context.Context, source catalog.Source) {
	domain := r.canon.Canonicalise(source.SourceURL).Key()

	known, err := r.client.SIsMember(ctx, schema.KnownTLDsKey, domain).Result()
	if err != nil {
		r.logger.Error().Err(err).Str("domain", domain).Msg("known_tlds lookup failed")
		return
	}
	if !known {
		return
	}

	alreadyHardHalted, err := r.client.SIsMember(ctx, schema.HaltedKey, domain).Result()
	if err != nil {
		r.logger.Error().Err(err).Str("domain", domain).Msg("halted lookup failed")
		return
	}

	target := r.rate.ComputeCrawlRate(source.ImageCount)

	eval, err := r.breaker.Evaluate(ctx, domain)
	if err != nil {
		r.logger.Error().Err(err).Str("domain", domain).Msg("breaker evaluation failed")
		return
	}

	hardHalted := alreadyHardHalted || eval.HardHalted
	effectiveRate := target
	if hardHalted || eval.TempHalted {
		effectiveRate = 0
	}

	tx := storetx.New(r.client)

	if eval.HardHalted && !alreadyHardHalted {
		tx.Queue(func(pipe redis.Pipeliner) {
			pipe.SAdd(ctx, schema.HaltedKey, domain)
		})
		r.logger.Warn().Str("domain", domain).Msg("domain entered hard halt")
	}
	if eval.TempHalted {
		tx.Queue(func(pipe redis.Pipeliner) {
			pipe.Set(ctx, schema.TempHaltedKey(domain), "1", r.tempHaltTTL)
		})
	}

	if hardHalted {
		// Entering or staying halted zeroes the bucket in the same write
		// instead of leaving a stale positive balance in place.
		tx.Queue(func(pipe redis.Pipeliner) {
			pipe.Set(ctx, schema.TokenBucketKey(domain), 0, 0)
		})
	} else {
		tx.Queue(func(pipe redis.Pipeliner) {
			pipe.Set(ctx, schema.TokenBucketKey(domain), effectiveRate, 0)
		})
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Str("domain", domain).Msg("failed to write regulator decisions")
		return
	}

	r.targetRPS.WithLabelValues(domain).Set(float64(effectiveRate))
	r.breakerState.WithLabelValues(domain, "hard_halted").Set(boolToFloat(hardHalted))
	r.breakerState.WithLabelValues(domain, "temp_halted").Set(boolToFloat(eval.TempHalted))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
