package regulator_test

import (
	"context"
	"testing"

	"github.com/PuneetDabral/crawlreg/canonical"
	"github.com/PuneetDabral/crawlreg/catalog"
	"github.com/PuneetDabral/crawlreg/internal/testredis"
	"github.com/PuneetDabral/crawlreg/regulator"
	"github.com/PuneetDabral/crawlreg/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSourceLister struct {
	sources []catalog.Source
}

func (f *fakeSourceLister) FetchSources(ctx context.Context) ([]catalog.Source, error) {
	return f.sources, nil
}

// A known domain with a large image count gets a non-trivial token
// bucket and is not halted.
func TestTickSteadyState(t *testing.T) {
	client := testredis.Client(t)
	ctx := context.Background()
	canon := canonical.New(zerolog.Nop())
	breaker := regulator.NewBreaker(client, testBreakerConfig())
	rc := testRateConfig()

	client.SAdd(ctx, schema.KnownTLDsKey, "example.com")

	sources := []catalog.Source{{SourceName: "example", ImageCount: 5_000_000, SourceURL: "example.com"}}
	reg := regulator.New(client, &fakeSourceLister{sources: sources}, canon, breaker, rc, 0, 0, zerolog.Nop(), nil)

	reg.Tick(ctx)

	tokens, err := client.Get(ctx, schema.TokenBucketKey("example.com")).Int()
	require.NoError(t, err)
	assert.Greater(t, tokens, 1)

	inHalted, _ := client.SIsMember(ctx, schema.HaltedKey, "example.com").Result()
	assert.False(t, inHalted)
	tempExists, _ := client.Exists(ctx, schema.TempHaltedKey("example.com")).Result()
	assert.Zero(t, tempExists)
}

// A source whose domain is not in known_tlds must not get a token
// bucket written.
func TestTickSkipsUnknownDomain(t *testing.T) {
	client := testredis.Client(t)
	ctx := context.Background()
	canon := canonical.New(zerolog.Nop())
	breaker := regulator.NewBreaker(client, testBreakerConfig())
	rc := testRateConfig()

	sources := []catalog.Source{{SourceName: "zzz", ImageCount: 10_000_000, SourceURL: "zzz.com"}}
	reg := regulator.New(client, &fakeSourceLister{sources: sources}, canon, breaker, rc, 0, 0, zerolog.Nop(), nil)

	reg.Tick(ctx)

	exists, err := client.Exists(ctx, schema.TokenBucketKey("zzz.com")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

// Pre-seeded RecentRequests of 51 "500" entries must halt the domain
// and leave its bucket at zero after one tick.
func TestTickAppliesHardHalt(t *testing.T) {
	client := testredis.Client(t)
	ctx := context.Background()
	canon := canonical.New(zerolog.Nop())
	breaker := regulator.NewBreaker(client, testBreakerConfig())
	rc := testRateConfig()

	client.SAdd(ctx, schema.KnownTLDsKey, "example.com")
	key := schema.RecentRequestsKey("example.com")
	for i := 0; i < 51; i++ {
		client.RPush(ctx, key, "500")
	}

	sources := []catalog.Source{{SourceName: "example", ImageCount: 5_000_000, SourceURL: "example.com"}}
	reg := regulator.New(client, &fakeSourceLister{sources: sources}, canon, breaker, rc, 0, 0, zerolog.Nop(), nil)

	reg.Tick(ctx)

	inHalted, err := client.SIsMember(ctx, schema.HaltedKey, "example.com").Result()
	require.NoError(t, err)
	assert.True(t, inHalted)

	tokens, err := client.Get(ctx, schema.TokenBucketKey("example.com")).Int()
	require.NoError(t, err)
	assert.Zero(t, tokens)
}
