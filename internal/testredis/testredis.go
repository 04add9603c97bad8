// Package testredis provides a shared-store test fixture. Tests that
// need a live store are skipped unless RUN_STORE_INTEGRATION=1 is set;
// these exercises need a real Redis, not a mock of one.
package testredis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client returns a connected *redis.Client for tests, flushing the
// selected database first so each test starts from a clean slate. It
// skips the calling test if integration tests are not enabled or the
// store is unreachable.
func Client(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("RUN_STORE_INTEGRATION") != "1" {
		t.Skip("store integration tests skipped; set RUN_STORE_INTEGRATION=1 and run a local Redis to enable")
	}

	dsn := os.Getenv("TEST_STORE_DSN")
	if dsn == "" {
		dsn = "redis://localhost:6379/15"
	}
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		t.Fatalf("parse TEST_STORE_DSN: %v", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("store unreachable, skipping: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test db: %v", err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}
