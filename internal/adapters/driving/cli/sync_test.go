package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

func TestBootstrapCmd_Use(t *testing.T) {
	assert.Equal(t, "bootstrap", bootstrapCmd.Use)
	assert.Contains(t, bootstrapCmd.Long, "resumes after the last committed year")
}

func TestBootstrapCmd_UsesConfiguredRange(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.settings.Bootstrap = domain.BootstrapSettings{StartYear: 2015, EndYear: 2020, IncludeCurrent: true, Parallel: 2}

	out, err := executeCommand(t, "bootstrap")

	require.NoError(t, err)
	require.NotNil(t, ts.sync.bootstrapOpts)
	assert.Equal(t, domain.BootstrapOptions{StartYear: 2015, EndYear: 2020, IncludeCurrent: true}, *ts.sync.bootstrapOpts)
	assert.Contains(t, out, "Bootstrapping FY2015-FY2020 + current extract...")
	assert.Contains(t, out, "Run run-1 (bootstrap)")
}

func TestBootstrapCmd_FlagsOverrideSettings(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "bootstrap", "--start-year", "2019", "--end-year", "2021", "--no-current", "--restart")

	require.NoError(t, err)
	assert.Equal(t, domain.BootstrapOptions{StartYear: 2019, EndYear: 2021, Restart: true}, *ts.sync.bootstrapOpts)
}

func TestBootstrapCmd_InvalidRange(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "bootstrap", "--start-year", "2022", "--end-year", "2020")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, ts.sync.bootstrapOpts)
}

func TestBootstrapCmd_RangeChangedHint(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.sync.err = domain.ErrRangeChanged

	_, err := executeCommand(t, "bootstrap", "--start-year", "2020", "--end-year", "2020")

	require.ErrorIs(t, err, domain.ErrRangeChanged)
	assert.Contains(t, err.Error(), "--restart")
}

func TestUpdateCmd_PassesOptions(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "update", "--lookback", "72h", "--force")

	require.NoError(t, err)
	require.NotNil(t, ts.sync.incrementalOpts)
	assert.Equal(t, 72*time.Hour, ts.sync.incrementalOpts.Lookback)
	assert.True(t, ts.sync.incrementalOpts.Force)
}

func TestUpdateCmd_ReportsSummary(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.sync.report = &domain.SyncReport{
		RunID:     "run-7",
		Mode:      domain.SyncModeIncremental,
		Segments:  []string{"current"},
		RowsRead:  10,
		Inserted:  2,
		Updated:   1,
		Unchanged: 4,
		Discarded: map[string]int{"unresolved country": 3},
		WatermarkAfter: domain.Watermark{
			SyncedAt:     time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC),
			LatestPosted: time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC),
			RecordsSeen:  7,
		},
	}

	out, err := executeCommand(t, "update")

	require.NoError(t, err)
	assert.Contains(t, out, "Inserted:  2")
	assert.Contains(t, out, "Discarded: 3")
	assert.Contains(t, out, "unresolved country")
	assert.Contains(t, out, "latest posted 2024-05-30, 7 records seen")
}

func TestUpdateCmd_SkippedRecent(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.sync.report = &domain.SyncReport{SkippedRecent: true}

	out, err := executeCommand(t, "update")

	require.NoError(t, err)
	assert.Contains(t, out, "use --force to override")
}

func TestUpdateCmd_FailureIsReturned(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.sync.err = &domain.FetchError{Op: "latest", StatusCode: 503}

	_, err := executeCommand(t, "update")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Contains(t, err.Error(), "update: fetch latest")
}

func TestImportCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "import", "/tmp/export.csv")

	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/export.csv"}, ts.sync.imported)
	assert.Contains(t, out, "Importing /tmp/export.csv...")
	assert.NotContains(t, out, "Watermark:")
}

func TestImportCmd_RequiresFile(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "import")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestStatusCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.sync.status = &domain.SyncStatus{
		Phase:     domain.PhaseIdle,
		Bootstrap: &domain.BootstrapProgress{StartYear: 2010, EndYear: 2020, CompletedThrough: 2014, IncludeCurrent: true},
		LastError: "fetch archive FY2015: HTTP 503",
	}

	out, err := executeCommand(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "Phase:     idle")
	assert.Contains(t, out, "Watermark: none")
	assert.Contains(t, out, "completed through FY2014, current extract pending")
	assert.Contains(t, out, "Last error: fetch archive FY2015")
}

func TestResetCmd_RequiresConfirmation(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "reset")
	require.Error(t, err)
	assert.False(t, ts.sync.resetCalled)

	out, err := executeCommand(t, "reset", "--yes")
	require.NoError(t, err)
	assert.True(t, ts.sync.resetCalled)
	assert.Contains(t, out, "cleared")
}

func TestSyncCommands_NotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	syncService = nil

	for _, args := range [][]string{{"bootstrap"}, {"update"}, {"import", "x.csv"}, {"status"}, {"reset", "-y"}} {
		_, err := executeCommand(t, args...)
		assert.EqualError(t, err, "sync service not configured", args[0])
	}
}

func TestRunWithProgress_ReturnsResult(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	report, err := runWithProgress(context.Background(), updateCmd, ts.sync, func(context.Context) (*domain.SyncReport, error) {
		return &domain.SyncReport{Inserted: 1}, errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, report.Inserted)
}
