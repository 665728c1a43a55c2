// Package memory provides an in-process statistics cache.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
)

// Ensure StatsCache implements the interface.
var _ driven.StatsCache = (*StatsCache)(nil)

// StatsCache keeps one statistics snapshot with an expiry.
type StatsCache struct {
	mu        sync.RWMutex
	stats     *domain.Statistics
	expiresAt time.Time
	now       func() time.Time
}

// NewStatsCache creates an empty cache.
func NewStatsCache() *StatsCache {
	return &StatsCache{now: time.Now}
}

// Get returns the snapshot if it has not expired.
func (c *StatsCache) Get(_ context.Context) (*domain.Statistics, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stats == nil || !c.now().Before(c.expiresAt) {
		return nil, false, nil
	}
	stats := *c.stats
	return &stats, true, nil
}

// Set stores a snapshot for ttl.
func (c *StatsCache) Set(_ context.Context, stats domain.Statistics, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats = &stats
	c.expiresAt = c.now().Add(ttl)
	return nil
}

// Invalidate drops the snapshot.
func (c *StatsCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats = nil
	return nil
}
