package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
	"github.com/custodia-labs/afrisam/internal/core/ports/driving"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// Ensure MaintenanceService implements the interface.
var _ driving.MaintenanceService = (*MaintenanceService)(nil)

// CountryResolver reports whether a raw place-of-performance value
// resolves to a tracked country.
type CountryResolver func(raw string) bool

// MaintenanceService performs store housekeeping.
type MaintenanceService struct {
	records  driven.RecordStore
	resolves CountryResolver
	stats    driven.StatsCache
	runLock  driven.RunLock
	cache    driven.DownloadCache
}

// NewMaintenanceService creates a maintenance service. stats may be nil.
func NewMaintenanceService(records driven.RecordStore, resolves CountryResolver, stats driven.StatsCache) *MaintenanceService {
	return &MaintenanceService{
		records:  records,
		resolves: resolves,
		stats:    stats,
	}
}

// SetRunLock adds the cross-process lock shared with the sync engine.
func (s *MaintenanceService) SetRunLock(l driven.RunLock) {
	s.runLock = l
}

// SetDownloadCache adds the cache whose interrupted downloads Optimize removes.
func (s *MaintenanceService) SetDownloadCache(c driven.DownloadCache) {
	s.cache = c
}

// lock takes the run lock, or fails with *domain.ConcurrencyError.
func (s *MaintenanceService) lock() (func(), error) {
	if s.runLock == nil {
		return func() {}, nil
	}
	unlock, err := s.runLock.TryLock()
	if err != nil {
		return nil, err
	}
	return func() {
		if err := unlock(); err != nil {
			logger.Warn("release run lock: %v", err)
		}
	}, nil
}

// Optimize removes interrupted downloads, compacts the store and refreshes
// planner statistics.
func (s *MaintenanceService) Optimize(ctx context.Context) error {
	unlock, err := s.lock()
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	defer unlock()

	if s.cache != nil {
		if err := s.cache.ClearPartial(); err != nil {
			logger.Warn("clear interrupted downloads: %v", err)
		}
	}

	logger.Info("optimising record store")
	if err := s.records.Optimize(ctx); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	return nil
}

// PurgeUnresolved deletes records whose stored raw country no longer
// resolves, e.g. after an alias was removed from the country table.
func (s *MaintenanceService) PurgeUnresolved(ctx context.Context) (int, error) {
	unlock, err := s.lock()
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	defer unlock()

	n, err := s.records.PurgeUnresolved(ctx, s.resolves)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	if n > 0 && s.stats != nil {
		if err := s.stats.Invalidate(ctx); err != nil {
			logger.Warn("invalidate statistics cache: %v", err)
		}
	}
	logger.Info("purged %d records with unresolved countries", n)
	return n, nil
}
