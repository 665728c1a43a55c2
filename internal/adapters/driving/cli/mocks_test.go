package cli

import (
	"bytes"
	"context"
	"iter"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driving"
)

// mockSyncService implements driving.SyncService for testing.
type mockSyncService struct {
	mu sync.Mutex

	bootstrapOpts   *domain.BootstrapOptions
	incrementalOpts *domain.IncrementalOptions
	imported        []string
	resetCalled     bool

	report    *domain.SyncReport
	status    *domain.SyncStatus
	err       error
	importErr map[string]error
}

func (m *mockSyncService) Bootstrap(_ context.Context, opts domain.BootstrapOptions) (*domain.SyncReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bootstrapOpts = &opts
	return m.reportFor(domain.SyncModeBootstrap), m.err
}

func (m *mockSyncService) Incremental(_ context.Context, opts domain.IncrementalOptions) (*domain.SyncReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementalOpts = &opts
	return m.reportFor(domain.SyncModeIncremental), m.err
}

func (m *mockSyncService) Import(_ context.Context, path string) (*domain.SyncReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imported = append(m.imported, path)
	if err := m.importErr[path]; err != nil {
		return nil, err
	}
	return m.reportFor(domain.SyncModeImport), m.err
}

func (m *mockSyncService) Status(_ context.Context) (*domain.SyncStatus, error) {
	if m.status == nil {
		return &domain.SyncStatus{Phase: domain.PhaseIdle}, nil
	}
	return m.status, nil
}

func (m *mockSyncService) Reset(_ context.Context) error {
	m.resetCalled = true
	return m.err
}

func (m *mockSyncService) reportFor(mode domain.SyncMode) *domain.SyncReport {
	if m.report != nil {
		return m.report
	}
	return &domain.SyncReport{RunID: "run-1", Mode: mode}
}

// mockQueryService implements driving.QueryService for testing.
type mockQueryService struct {
	records    []domain.Opportunity
	stats      *domain.Statistics
	lastFilter domain.Filter
	refreshed  bool
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

func (m *mockQueryService) Get(_ context.Context, id string) (*domain.Opportunity, error) {
	for i := range m.records {
		if m.records[i].ID == id {
			return &m.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockQueryService) Statistics(_ context.Context) (*domain.Statistics, error) {
	return m.stats, m.err
}

func (m *mockQueryService) RefreshStatistics(_ context.Context) (*domain.Statistics, error) {
	m.refreshed = true
	return m.stats, m.err
}

// mockMaintenanceService implements driving.MaintenanceService for testing.
type mockMaintenanceService struct {
	optimized bool
	purged    int
	err       error
}

func (m *mockMaintenanceService) Optimize(_ context.Context) error {
	m.optimized = true
	return m.err
}

func (m *mockMaintenanceService) PurgeUnresolved(_ context.Context) (int, error) {
	return m.purged, m.err
}

// mockSettingsService implements driving.SettingsService for testing.
type mockSettingsService struct {
	settings domain.AppSettings
	set      map[string]any
	setErr   error
}

func newMockSettingsService() *mockSettingsService {
	s := domain.DefaultAppSettings()
	s.DataDir = "/data"
	return &mockSettingsService{settings: s, set: make(map[string]any)}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Set(key string, value any) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return []string{"store.dsn", "sync.batch_size"}
}

func (m *mockSettingsService) Validate() error {
	return m.settings.Validate()
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) Path() string {
	return "/data/config.toml"
}

// mockScheduler implements driving.Scheduler for testing.
type mockScheduler struct {
	started bool
	stopped bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.started = true
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.stopped = true
	return nil
}

var (
	_ driving.SyncService        = (*mockSyncService)(nil)
	_ driving.QueryService       = (*mockQueryService)(nil)
	_ driving.MaintenanceService = (*mockMaintenanceService)(nil)
	_ driving.SettingsService    = (*mockSettingsService)(nil)
	_ driving.Scheduler          = (*mockScheduler)(nil)
)

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	sync        *mockSyncService
	query       *mockQueryService
	maintenance *mockMaintenanceService
	settings    *mockSettingsService
	scheduler   *mockScheduler
}

// setupTestServices installs fresh mocks and returns a cleanup func.
func setupTestServices() (*testServices, func()) {
	old := Services{
		Sync:        syncService,
		Query:       queryService,
		Maintenance: maintenanceService,
		Settings:    settingsService,
		Scheduler:   scheduler,
		Watch:       watchFunc,
		Close:       closeServices,
	}
	oldInit := initializer

	ts := &testServices{
		sync:        &mockSyncService{},
		query:       &mockQueryService{},
		maintenance: &mockMaintenanceService{},
		settings:    newMockSettingsService(),
		scheduler:   &mockScheduler{},
	}
	SetServices(&Services{
		Sync:        ts.sync,
		Query:       ts.query,
		Maintenance: ts.maintenance,
		Settings:    ts.settings,
		Scheduler:   ts.scheduler,
	})
	initializer = nil

	return ts, func() {
		SetServices(&old)
		initializer = oldInit
	}
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCommandContext(t, context.Background(), args...)
}

func executeCommandContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

// resetFlags restores every flag in the tree to its default, since cobra
// keeps parsed values between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
