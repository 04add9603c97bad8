package regulator_test

import (
	"context"
	"testing"
	"time"

	"github.com/PuneetDabral/crawlreg/internal/testredis"
	"github.com/PuneetDabral/crawlreg/regulator"
	"github.com/PuneetDabral/crawlreg/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreakerConfig() regulator.BreakerConfig {
	return regulator.BreakerConfig{
		HardHaltSampleSize: 50,
		TempHaltMinSamples: 10,
		TempHaltThresholdRatio: 0.25,
	}
}

// 51 entries of "500" in RecentRequests trips the hard-halt breaker.
func TestHardHaltTripsOn51ServerErrors(t *testing.T) {
	client := testredis.Client(t)
	ctx := context.Background()
	domain := "example.com"

	key := schema.RecentRequestsKey(domain)
	for i := 0; i < 51; i++ {
		client.RPush(ctx, key, "500")
	}

	b := regulator.NewBreaker(client, testBreakerConfig())
	eval, err := b.Evaluate(ctx, domain)
	require.NoError(t, err)
	assert.True(t, eval.HardHalted)
}

func TestHardHaltDoesNotTripBelowThreshold(t *testing.T) {
	client := testredis.Client(t)
	ctx := context.Background()
	domain := "example.com"

	key := schema.RecentRequestsKey(domain)
	for i := 0; i < 40; i++ {
		client.RPush(ctx, key, "500")
	}
	for i := 0; i < 10; i++ {
		client.RPush(ctx, key, "200")
	}

	b := regulator.NewBreaker(client, testBreakerConfig())
	eval, err := b.Evaluate(ctx, domain)
	require.NoError(t, err)
	assert.False(t, eval.HardHalted)
}

// 3 failures and 8 successes within the 60s window trips a temp halt.
func TestTempHaltTripsOnFailureRatio(t *testing.T) {
	client := testredis.Client(t)
	ctx := context.Background()
	domain := "example.com"

	key := schema.Window60sKey(domain)
	now := float64(time.Now().Unix())
	for i := 0; i < 3; i++ {
		client.ZAdd(ctx, key, redis.Z{Score: now, Member: schema.WindowMember(schema.OutcomeFailed, int64(i))})
	}
	for i := 0; i < 8; i++ {
		client.ZAdd(ctx, key, redis.Z{Score: now, Member: schema.WindowMember(schema.OutcomeSucceeded, int64(100+i))})
	}

	b := regulator.NewBreaker(client, testBreakerConfig())
	eval, err := b.Evaluate(ctx, domain)
	require.NoError(t, err)
	assert.True(t, eval.TempHalted)
}

func TestTempHaltRequiresMinSamples(t *testing.T) {
	client := testredis.Client(t)
	ctx := context.Background()
	domain := "example.com"

	key := schema.Window60sKey(domain)
	now := float64(time.Now().Unix())
	client.ZAdd(ctx, key, redis.Z{Score: now, Member: schema.WindowMember(schema.OutcomeFailed, 1)})

	b := regulator.NewBreaker(client, testBreakerConfig())
	eval, err := b.Evaluate(ctx, domain)
	require.NoError(t, err)
	assert.False(t, eval.TempHalted)
}
