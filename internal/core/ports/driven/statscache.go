package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

// StatsCache holds the most recent statistics snapshot.
type StatsCache interface {
	// Get returns the cached snapshot. The boolean is false on a miss.
	Get(ctx context.Context) (*domain.Statistics, bool, error)

	// Set stores a snapshot for ttl.
	Set(ctx context.Context, stats domain.Statistics, ttl time.Duration) error

	// Invalidate drops the snapshot so the next Get misses.
	Invalidate(ctx context.Context) error
}
