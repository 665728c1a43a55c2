package services

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
	"github.com/custodia-labs/afrisam/internal/core/ports/driving"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService serves reads from the record store, with statistics
// snapshots held in a cache for ttl.
type QueryService struct {
	records driven.RecordStore
	cache   driven.StatsCache
	ttl     time.Duration
	now     func() time.Time
}

// NewQueryService creates a query service. cache may be nil.
func NewQueryService(records driven.RecordStore, cache driven.StatsCache, ttl time.Duration) *QueryService {
	return &QueryService{
		records: records,
		cache:   cache,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Query lazily yields records matching filter, newest first.
func (s *QueryService) Query(ctx context.Context, filter domain.Filter) iter.Seq2[domain.Opportunity, error] {
	if err := filter.Validate(); err != nil {
		return func(yield func(domain.Opportunity, error) bool) {
			yield(domain.Opportunity{}, fmt.Errorf("query: %w", err))
		}
	}
	return s.records.Query(ctx, filter)
}

// Get retrieves one record by ID.
func (s *QueryService) Get(ctx context.Context, id string) (*domain.Opportunity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrInvalidInput)
	}
	return s.records.Get(ctx, id)
}

// Statistics returns the cached snapshot, computing it on a miss.
// Cache failures fall through to the store.
func (s *QueryService) Statistics(ctx context.Context) (*domain.Statistics, error) {
	if s.cache != nil && s.ttl > 0 {
		stats, ok, err := s.cache.Get(ctx)
		if err != nil {
			logger.Warn("read statistics cache: %v", err)
		} else if ok {
			return stats, nil
		}
	}
	return s.RefreshStatistics(ctx)
}

// RefreshStatistics recomputes the snapshot and stores it in the cache.
func (s *QueryService) RefreshStatistics(ctx context.Context) (*domain.Statistics, error) {
	stats, err := s.records.Statistics(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("compute statistics: %w", err)
	}

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.Set(ctx, stats, s.ttl); err != nil {
			logger.Warn("write statistics cache: %v", err)
		}
	}
	return &stats, nil
}
