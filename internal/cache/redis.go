// Package cache provides the Redis lookup cache for the redirect path.
//
// The cache is never authoritative: every entry is rebuildable from the
// store, TTLs bound the staleness window, and callers treat any cache error
// as a miss so a total cache loss degrades to store-only operation.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options carries cache tuning. TTLs are configuration points; the link TTL
// caps how long a state change made without an invalidate can be served.
type Options struct {
	LinkTTL         time.Duration
	NegativeTTL     time.Duration
	NegativeEnabled bool
}

// Cache provides Redis cache access methods.
type Cache struct {
	client *redis.Client
	opts   Options
}

// New creates a new Cache with a Redis client.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	if opts.LinkTTL <= 0 {
		opts.LinkTTL = 5 * time.Minute
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = time.Minute
	}

	return &Cache{client: client, opts: opts}, nil
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client.
// Use sparingly - prefer adding methods to Cache.
func (c *Cache) Client() *redis.Client {
	return c.client
}
