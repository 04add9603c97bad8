package tokens_test

import (
	"context"
	"testing"
	"time"

	"github.com/PuneetDabral/crawlreg/internal/testredis"
	"github.com/PuneetDabral/crawlreg/schema"
	"github.com/PuneetDabral/crawlreg/tokens"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSucceedsWhenTokensAvailable(t *testing.T) {
	client := testredis.Client(t)
	ctx := context.Background()
	client.Set(ctx, schema.TokenBucketKey("example.com"), 3, 0)

	c := tokens.New(client, zerolog.Nop())
	permit, err := c.Acquire(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", permit.Domain)

	remaining, _ := client.Get(ctx, schema.TokenBucketKey("example.com")).Int()
	assert.Equal(t, 2, remaining)
}

func TestAcquireSkipsHardHaltedDomainWithoutTouchingBucket(t *testing.T) {
	client := testredis.Client(t)
	ctx := context.Background()
	client.Set(ctx, schema.TokenBucketKey("example.com"), 5, 0)
	client.SAdd(ctx, schema.HaltedKey, "example.com")

	c := tokens.New(client, zerolog.Nop())
	_, err := c.Acquire(ctx, "example.com")
	assert.ErrorIs(t, err, tokens.ErrHalted)

	remaining, _ := client.Get(ctx, schema.TokenBucketKey("example.com")).Int()
	assert.Equal(t, 5, remaining)
}

func TestAcquireSkipsTempHaltedDomain(t *testing.T) {
	client := testredis.Client(t)
	ctx := context.Background()
	client.Set(ctx, schema.TokenBucketKey("example.com"), 5, 0)
	client.Set(ctx, schema.TempHaltedKey("example.com"), "1", time.Minute)

	c := tokens.New(client, zerolog.Nop())
	_, err := c.Acquire(ctx, "example.com")
	assert.ErrorIs(t, err, tokens.ErrHalted)
}

func TestAcquireCancellationStopsWaiting(t *testing.T) {
	client := testredis.Client(t)
	client.Set(context.Background(), schema.TokenBucketKey("example.com"), 0, 0)

	c := tokens.New(client, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := c.Acquire(ctx, "example.com")
	assert.ErrorIs(t, err, tokens.ErrAcquireCancelled)
}

func TestAcquireNeverObservesNegativeBucket(t *testing.T) {
	client := testredis.Client(t)
	ctx := context.Background()
	client.Set(ctx, schema.TokenBucketKey("example.com"), 0, 0)

	c := tokens.New(client, zerolog.Nop())
	acquireCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, _ = c.Acquire(acquireCtx, "example.com")

	value, _ := client.Get(ctx, schema.TokenBucketKey("example.com")).Int()
	assert.GreaterOrEqual(t, value, 0)
}
