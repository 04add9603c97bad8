// Package redisclient owns connection construction for the shared
// key-value store: parsing the store DSN and exposing a pingable,
// closable handle that every store-backed package builds its
// *redis.Client-typed collaborators from.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/PuneetDabral/crawlreg/config"
	"github.com/redis/go-redis/v9"
)

// Client is a thin handle around a *redis.Client.
type Client struct {
	Raw *redis.Client
}

// New creates a Redis client from the provided config. Returns an error
// if the store DSN cannot be parsed.
func New(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_DSN: %w", err)
	}
	return &Client{Raw: redis.NewClient(opt)}, nil
}

// Ping verifies connectivity with a bounded timeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.Raw.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.Raw.Close()
}
