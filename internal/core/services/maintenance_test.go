package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
)

func kenyaOnly(raw string) bool {
	return raw == "KEN"
}

// mockDownloadCache is a mock implementation of driven.DownloadCache.
type mockDownloadCache struct {
	mock.Mock
}

func (m *mockDownloadCache) ClearPartial() error {
	args := m.Called()
	return args.Error(0)
}

var _ driven.DownloadCache = (*mockDownloadCache)(nil)

func TestMaintenanceService_Optimize(t *testing.T) {
	store := newSyncMockRecordStore()
	service := NewMaintenanceService(store, kenyaOnly, nil)

	assert.NoError(t, service.Optimize(context.Background()))
	assert.Equal(t, 1, store.optimized)
}

func TestMaintenanceService_OptimizeClearsInterruptedDownloads(t *testing.T) {
	store := newSyncMockRecordStore()
	cache := new(mockDownloadCache)
	cache.On("ClearPartial").Return(nil).Once()
	runLock := &syncMockRunLock{}

	service := NewMaintenanceService(store, kenyaOnly, nil)
	service.SetRunLock(runLock)
	service.SetDownloadCache(cache)

	require.NoError(t, service.Optimize(context.Background()))
	cache.AssertExpectations(t)
	assert.Equal(t, 1, store.optimized)
	assert.False(t, runLock.held, "lock released after optimize")
}

func TestMaintenanceService_OptimizeCacheErrorIsNotFatal(t *testing.T) {
	store := newSyncMockRecordStore()
	cache := new(mockDownloadCache)
	cache.On("ClearPartial").Return(errors.New("permission denied"))

	service := NewMaintenanceService(store, kenyaOnly, nil)
	service.SetDownloadCache(cache)

	require.NoError(t, service.Optimize(context.Background()))
	assert.Equal(t, 1, store.optimized)
}

func TestMaintenanceService_BusyWhileSyncHoldsLock(t *testing.T) {
	store := newSyncMockRecordStore()
	store.records["b"] = domain.Opportunity{ID: "b", RawCountry: "FRA"}
	cache := new(mockDownloadCache)
	runLock := &syncMockRunLock{held: true}

	service := NewMaintenanceService(store, kenyaOnly, nil)
	service.SetRunLock(runLock)
	service.SetDownloadCache(cache)

	err := service.Optimize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	var concurrency *domain.ConcurrencyError
	assert.ErrorAs(t, err, &concurrency)

	n, err := service.PurgeUnresolved(context.Background())
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Zero(t, n)

	assert.Zero(t, store.optimized)
	assert.Contains(t, store.records, "b", "nothing purged while locked")
	cache.AssertNotCalled(t, "ClearPartial")
}

func TestMaintenanceService_PurgeReleasesLock(t *testing.T) {
	store := newSyncMockRecordStore()
	store.records["b"] = domain.Opportunity{ID: "b", RawCountry: "FRA"}
	runLock := &syncMockRunLock{}

	service := NewMaintenanceService(store, kenyaOnly, nil)
	service.SetRunLock(runLock)

	n, err := service.PurgeUnresolved(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, runLock.held)
}

func TestMaintenanceService_PurgeUnresolved(t *testing.T) {
	store := newSyncMockRecordStore()
	store.records["a"] = domain.Opportunity{ID: "a", RawCountry: "KEN"}
	store.records["b"] = domain.Opportunity{ID: "b", RawCountry: "FRA"}
	store.records["c"] = domain.Opportunity{ID: "c", RawCountry: "Gaul"}

	cache := new(mockStatsCache)
	cache.On("Invalidate", mock.Anything).Return(nil).Once()

	n, err := NewMaintenanceService(store, kenyaOnly, cache).PurgeUnresolved(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, store.records, 1)
	assert.Contains(t, store.records, "a")
	cache.AssertExpectations(t)
}

func TestMaintenanceService_PurgeNothingKeepsCache(t *testing.T) {
	store := newSyncMockRecordStore()
	store.records["a"] = domain.Opportunity{ID: "a", RawCountry: "KEN"}
	cache := new(mockStatsCache)

	n, err := NewMaintenanceService(store, kenyaOnly, cache).PurgeUnresolved(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	cache.AssertNotCalled(t, "Invalidate", mock.Anything)
}

func TestMaintenanceService_PurgeCacheErrorIsNotFatal(t *testing.T) {
	store := newSyncMockRecordStore()
	store.records["b"] = domain.Opportunity{ID: "b", RawCountry: "FRA"}
	cache := new(mockStatsCache)
	cache.On("Invalidate", mock.Anything).Return(errors.New("connection refused"))

	n, err := NewMaintenanceService(store, kenyaOnly, cache).PurgeUnresolved(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
