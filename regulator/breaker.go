package regulator

import (
	"context"
	"fmt"

	"github.com/PuneetDabral/crawlreg/schema"
	"github.com/redis/go-redis/v9"
)

// BreakerConfig holds the circuit-breaker thresholds for a domain.
type BreakerConfig struct {
	// HardHaltSampleSize is the width of RecentRequests inspected, and
	// also the count of ≥500 entries required among them to trip a hard
	// halt: at least N of the last N entries must be ≥ 500.
	HardHaltSampleSize int
	// TempHaltMinSamples is the minimum status60s population required
	// before the temporary-halt ratio check applies.
	TempHaltMinSamples int
	// TempHaltThresholdRatio is the failure fraction that trips a
	// temporary halt once TempHaltMinSamples is met.
	TempHaltThresholdRatio float64
}

// Breaker evaluates the hard-halt and temporary-halt circuit breakers
// against the store state a domain's workers have written.
type Breaker struct {
	client *redis.Client
	cfg BreakerConfig
}

// NewBreaker returns a Breaker using cfg's thresholds.
func NewBreaker(client *redis.Client, cfg BreakerConfig) *Breaker {
	return &Breaker{client: client, cfg: cfg}
}

// Evaluation is the outcome of evaluating both breakers for one domain
// during a regulator tick.
type Evaluation struct {
	HardHalted bool
	TempHalted bool
}

// Evaluate inspects RecentRequests and the 60-second window for domain
// and returns which breakers should be tripped this tick. It does not
// itself write to the store; the regulator applies the result so the
// whole tick commits as one coherent pass over sources.
func (b *Breaker) Evaluate(ctx context.Context, domain string) (Evaluation, error) {
	hard, err := b.evaluateHardHalt(ctx, domain)
	if err != nil {
		return Evaluation{}, fmt.Errorf("breaker: hard halt check for %s: %w", domain, err)
	}

	temp, err := b.evaluateTempHalt(ctx, domain)
	if err != nil {
		return Evaluation{}, fmt.Errorf("breaker: temp halt check for %s: %w", domain, err)
	}

	return Evaluation{HardHalted: hard, TempHalted: temp}, nil
}

// evaluateHardHalt trips a hard halt when RecentRequests has at least
// HardHaltSampleSize entries and at least that many encode a server
// error (status code ≥ 500).
// It is evaluated for already-halted domains as well; a false result
// never releases them, because applySource in regulator.go keeps any
// domain already in the halted set halted.
func (b *Breaker) evaluateHardHalt(ctx context.Context, domain string) (bool, error) {
	key := schema.RecentRequestsKey(domain)
	entries, err := b.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return false, err
	}
	if len(entries) < b.cfg.HardHaltSampleSize {
		return false, nil
	}

	serverErrors := 0
	for _, entry := range entries {
		if isServerErrorCode(entry) {
			serverErrors++
		}
	}
	return serverErrors >= b.cfg.HardHaltSampleSize, nil
}

// evaluateTempHalt counts failures and successes recorded in
// status60s:{domain}; if the sample is large enough and the failure
// ratio meets the threshold, it trips a temporary halt.
func (b *Breaker) evaluateTempHalt(ctx context.Context, domain string) (bool, error) {
	key := schema.Window60sKey(domain)
	members, err := b.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return false, err
	}

	total := len(members)
	if total < b.cfg.TempHaltMinSamples {
		return false, nil
	}

	failures := 0
	for _, m := range members {
		outcome, ok := schema.WindowMemberOutcome(m)
		if ok && outcome == schema.OutcomeFailed {
			failures++
		}
	}

	ratio := float64(failures) / float64(total)
	return ratio >= b.cfg.TempHaltThresholdRatio, nil
}

// isServerErrorCode reports whether a RecentRequests entry encodes an
// HTTP status code ≥ 500. Non-numeric entries (e.g. UnidentifiedImageError)
// are never server errors.
func isServerErrorCode(entry string) bool {
	var code int
	if _, err := fmt.Sscanf(entry, "%d", &code); err != nil {
		return false
	}
	return code >= 500
}
