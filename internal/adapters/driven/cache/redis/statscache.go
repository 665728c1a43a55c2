// Package redis provides a statistics cache shared between processes
// through Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
)

// Ensure StatsCache implements the interface.
var _ driven.StatsCache = (*StatsCache)(nil)

const statsKey = "stats"

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// StatsCache stores the statistics snapshot as JSON under a prefixed key.
type StatsCache struct {
	client Client
	key    string
}

// NewStatsCache connects to the Redis server at addr.
func NewStatsCache(addr, prefix string) *StatsCache {
	return NewStatsCacheWithClient(redis.NewClient(&redis.Options{Addr: addr}), prefix)
}

// NewStatsCacheWithClient builds a cache using a custom client (tests).
func NewStatsCacheWithClient(client Client, prefix string) *StatsCache {
	return &StatsCache{client: client, key: prefix + statsKey}
}

// Close closes the Redis client.
func (c *StatsCache) Close() error {
	return c.client.Close()
}

// Get reads the snapshot from Redis.
func (c *StatsCache) Get(ctx context.Context) (*domain.Statistics, bool, error) {
	val, err := c.client.Get(ctx, c.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var stats domain.Statistics
	if err := json.Unmarshal([]byte(val), &stats); err != nil {
		return nil, false, err
	}
	return &stats, true, nil
}

// Set writes the snapshot with ttl.
func (c *StatsCache) Set(ctx context.Context, stats domain.Statistics, ttl time.Duration) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, payload, ttl).Err()
}

// Invalidate deletes the snapshot key.
func (c *StatsCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
