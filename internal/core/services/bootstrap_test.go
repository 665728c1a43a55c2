package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

func TestSyncEngine_Bootstrap_AllSegments(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.fetcher.archives[2020] = csvHeader + csvRow("a", "A", "2019-11-02", "KEN")
	f.fetcher.archives[2021] = csvHeader + csvRow("b", "B", "2021-01-15", "SEN") + csvRow("x", "X", "2021-01-15", "Peru")
	f.fetcher.latest = csvHeader + csvRow("c", "C", "2024-05-30", "EGY") + csvRow("b", "B", "2021-01-15", "SEN")

	report, err := f.engine.Bootstrap(context.Background(), domain.BootstrapOptions{
		StartYear: 2020, EndYear: 2022, IncludeCurrent: true,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.SyncModeBootstrap, report.Mode)
	assert.Equal(t, []string{"FY2020", "FY2021", "current"}, report.Segments)
	assert.Equal(t, []string{"FY2022"}, report.Skipped)
	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 1, report.DiscardedTotal())
	assert.Equal(t, "FY2021", f.records.records["b"].Source)

	assert.Nil(t, f.state.progress, "marker cleared on completion")
	assert.Equal(t, testNow, f.state.watermark.SyncedAt)
	assert.Equal(t, time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC), f.state.watermark.LatestPosted)

	// One save at start plus one per segment.
	require.Len(t, f.state.progressSaves, 5)
	assert.Equal(t, 2019, f.state.progressSaves[0].CompletedThrough)
	assert.Equal(t, 2021, f.state.progressSaves[2].CompletedThrough)
	assert.True(t, f.state.progressSaves[4].CurrentDone)
}

func TestSyncEngine_Bootstrap_ResumesAfterCommittedSegment(t *testing.T) {
	f := newSyncFixture(t, nil)
	for y := 2018; y <= 2021; y++ {
		f.fetcher.archives[y] = csvHeader + csvRow("id-"+domain.ArchiveSegment(y).Label(), "T", "2019-01-01", "KEN")
	}
	f.fetcher.archiveErrs[2020] = &domain.FetchError{Op: "archive FY2020", StatusCode: 503}
	opts := domain.BootstrapOptions{StartYear: 2018, EndYear: 2021}

	_, err := f.engine.Bootstrap(context.Background(), opts)

	require.Error(t, err)
	require.NotNil(t, f.state.progress)
	assert.Equal(t, 2019, f.state.progress.CompletedThrough)
	assert.True(t, f.state.watermark.IsZero(), "watermark unchanged on failure")

	// Restart with the fault cleared: only FY2020 onwards is fetched.
	delete(f.fetcher.archiveErrs, 2020)
	f.fetcher.fetched = nil

	report, err := f.engine.Bootstrap(context.Background(), opts)

	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2020, 2021}, f.fetcher.fetched)
	assert.Equal(t, []string{"FY2020", "FY2021"}, report.Segments)
	assert.Len(t, f.records.records, 4)
	assert.Nil(t, f.state.progress)
	assert.False(t, f.state.watermark.IsZero())
}

func TestSyncEngine_Bootstrap_RangeChanged(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.state.progress = &domain.BootstrapProgress{StartYear: 2010, EndYear: 2015, CompletedThrough: 2012}

	_, err := f.engine.Bootstrap(context.Background(), domain.BootstrapOptions{StartYear: 2020, EndYear: 2020})
	assert.ErrorIs(t, err, domain.ErrRangeChanged)
	assert.Equal(t, 2012, f.state.progress.CompletedThrough)

	f.fetcher.archives[2020] = csvHeader + csvRow("a", "A", "2020-01-01", "KEN")
	_, err = f.engine.Bootstrap(context.Background(), domain.BootstrapOptions{StartYear: 2020, EndYear: 2020, Restart: true})
	require.NoError(t, err)
	assert.Nil(t, f.state.progress)
}

func TestSyncEngine_Bootstrap_InvalidRange(t *testing.T) {
	f := newSyncFixture(t, nil)

	_, err := f.engine.Bootstrap(context.Background(), domain.BootstrapOptions{StartYear: 2022, EndYear: 2020})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSyncEngine_Bootstrap_CurrentMissingFails(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.fetcher.archives[2020] = csvHeader + csvRow("a", "A", "2020-01-01", "KEN")
	f.fetcher.latestErr = &domain.FetchError{Op: "latest", StatusCode: 404, Err: domain.ErrNotFound}

	_, err := f.engine.Bootstrap(context.Background(), domain.BootstrapOptions{StartYear: 2020, EndYear: 2020, IncludeCurrent: true})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NotNil(t, f.state.progress)
	assert.Equal(t, 2020, f.state.progress.CompletedThrough)
	assert.False(t, f.state.progress.CurrentDone)
}

func TestSyncEngine_Bootstrap_SerialFetch(t *testing.T) {
	f := newSyncFixture(t, func(s *domain.AppSettings) { s.Bootstrap.Parallel = 1 })
	for y := 2015; y <= 2019; y++ {
		f.fetcher.archives[y] = csvHeader + csvRow(domain.ArchiveSegment(y).Label(), "T", "2016-01-01", "MAR")
	}

	report, err := f.engine.Bootstrap(context.Background(), domain.BootstrapOptions{StartYear: 2015, EndYear: 2019})

	require.NoError(t, err)
	assert.Equal(t, []int{2015, 2016, 2017, 2018, 2019}, f.fetcher.fetched)
	assert.Equal(t, 5, report.Inserted)
}

func TestSyncEngine_Bootstrap_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newSyncFixture(t, func(s *domain.AppSettings) { s.Sync.BatchSize = 1 })
	f.fetcher.archives[2020] = csvHeader + csvRow("a", "A", "2020-01-01", "KEN") + csvRow("b", "B", "2020-01-01", "KEN")
	f.fetcher.archives[2021] = csvHeader + csvRow("c", "C", "2021-01-01", "KEN")
	f.records.onUpsert = func(int) { cancel() }

	_, err := f.engine.Bootstrap(ctx, domain.BootstrapOptions{StartYear: 2020, EndYear: 2021})

	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, f.state.progress)
	assert.Equal(t, 2019, f.state.progress.CompletedThrough, "a partly merged segment is not marked done")
	assert.True(t, f.state.watermark.IsZero())
}
