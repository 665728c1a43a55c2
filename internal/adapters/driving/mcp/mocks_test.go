package mcp

import (
	"context"
	"iter"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	records    []domain.Opportunity
	record     *domain.Opportunity
	stats      *domain.Statistics
	refreshed  bool
	lastFilter domain.Filter
	err        error
}

func (m *mockQueryService) Query(_ context.Context, filter domain.Filter) iter.Seq2[domain.Opportunity, error] {
	m.lastFilter = filter
	return func(yield func(domain.Opportunity, error) bool) {
		if m.err != nil {
			yield(domain.Opportunity{}, m.err)
			return
		}
		for _, r := range m.records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (m *mockQueryService) Get(_ context.Context, _ string) (*domain.Opportunity, error) {
	return m.record, m.err
}

func (m *mockQueryService) Statistics(_ context.Context) (*domain.Statistics, error) {
	return m.stats, m.err
}

func (m *mockQueryService) RefreshStatistics(_ context.Context) (*domain.Statistics, error) {
	m.refreshed = true
	return m.stats, m.err
}

// mockSyncService is a mock implementation of driving.SyncService.
type mockSyncService struct {
	status *domain.SyncStatus
	err    error
}

func (m *mockSyncService) Bootstrap(_ context.Context, _ domain.BootstrapOptions) (*domain.SyncReport, error) {
	return nil, m.err
}

func (m *mockSyncService) Incremental(_ context.Context, _ domain.IncrementalOptions) (*domain.SyncReport, error) {
	return nil, m.err
}

func (m *mockSyncService) Import(_ context.Context, _ string) (*domain.SyncReport, error) {
	return nil, m.err
}

func (m *mockSyncService) Status(_ context.Context) (*domain.SyncStatus, error) {
	return m.status, m.err
}

func (m *mockSyncService) Reset(_ context.Context) error {
	return m.err
}

var (
	_ driving.QueryService = (*mockQueryService)(nil)
	_ driving.SyncService  = (*mockSyncService)(nil)
)
