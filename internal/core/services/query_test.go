package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/afrisam/internal/adapters/driven/cache/memory"
	"github.com/custodia-labs/afrisam/internal/core/domain"
)

// mockStatsCache implements driven.StatsCache with testify.
type mockStatsCache struct {
	mock.Mock
}

func (m *mockStatsCache) Get(ctx context.Context) (*domain.Statistics, bool, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*domain.Statistics)
	return stats, args.Bool(1), args.Error(2)
}

func (m *mockStatsCache) Set(ctx context.Context, stats domain.Statistics, ttl time.Duration) error {
	return m.Called(ctx, stats, ttl).Error(0)
}

func (m *mockStatsCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestQueryService_Query(t *testing.T) {
	store := newSyncMockRecordStore()
	store.records["b"] = domain.Opportunity{ID: "b"}
	store.records["a"] = domain.Opportunity{ID: "a"}
	service := NewQueryService(store, nil, 0)

	var ids []string
	for rec, err := range service.Query(context.Background(), domain.Filter{}) {
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestQueryService_Query_InvalidFilter(t *testing.T) {
	service := NewQueryService(newSyncMockRecordStore(), nil, 0)
	filter := domain.Filter{From: testNow, To: testNow.AddDate(0, 0, -1)}

	var errs []error
	for _, err := range service.Query(context.Background(), filter) {
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrInvalidInput)
}

func TestQueryService_Get(t *testing.T) {
	store := newSyncMockRecordStore()
	store.records["n1"] = domain.Opportunity{ID: "n1", Title: "Clinic"}
	service := NewQueryService(store, nil, 0)

	rec, err := service.Get(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "Clinic", rec.Title)

	_, err = service.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = service.Get(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueryService_Statistics_CachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	store := newSyncMockRecordStore()
	store.records["n1"] = domain.Opportunity{ID: "n1"}
	cache := memory.NewStatsCache()
	service := NewQueryService(store, cache, time.Minute)

	first, err := service.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Total)

	store.records["n2"] = domain.Opportunity{ID: "n2"}
	cached, err := service.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Total, "served from cache")

	require.NoError(t, cache.Invalidate(ctx))
	fresh, err := service.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Total)
}

func TestQueryService_Statistics_CacheErrorFallsThrough(t *testing.T) {
	ctx := context.Background()
	store := newSyncMockRecordStore()
	cache := &mockStatsCache{}
	cache.On("Get", ctx).Return(nil, false, errors.New("connection refused"))
	cache.On("Set", ctx, mock.Anything, 5*time.Minute).Return(errors.New("connection refused"))
	service := NewQueryService(store, cache, 5*time.Minute)

	stats, err := service.Statistics(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	cache.AssertExpectations(t)
}

func TestMaintenanceService(t *testing.T) {
	ctx := context.Background()
	store := newSyncMockRecordStore()
	store.records["keep"] = domain.Opportunity{ID: "keep", RawCountry: "KEN"}
	store.records["drop"] = domain.Opportunity{ID: "drop", RawCountry: "Atlantis"}
	cache := &mockStatsCache{}
	cache.On("Invalidate", ctx).Return(nil).Once()

	service := NewMaintenanceService(store, func(raw string) bool { return raw == "KEN" }, cache)

	require.NoError(t, service.Optimize(ctx))

	n, err := service.PurgeUnresolved(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, store.records, "keep")
	assert.NotContains(t, store.records, "drop")

	n, err = service.PurgeUnresolved(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	cache.AssertExpectations(t)
}
