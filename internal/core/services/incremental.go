package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// ForceUpdateEnv bypasses the minimum interval when set to a true value.
const ForceUpdateEnv = "AFRISAM_FORCE_UPDATE"

// Incremental fetches the latest extract and merges it as one batch.
// The watermark advances only after every record is committed. An empty
// delta still advances it to the start of this run.
func (e *SyncEngine) Incremental(ctx context.Context, opts domain.IncrementalOptions) (*domain.SyncReport, error) {
	r, err := e.begin(domain.SyncModeIncremental)
	if err != nil {
		return nil, err
	}
	err = e.incremental(ctx, r, opts)
	r.finish(err)
	if err != nil {
		return r.report, err
	}
	return r.report, nil
}

func (e *SyncEngine) incremental(ctx context.Context, r *run, opts domain.IncrementalOptions) error {
	wm, err := e.state.Watermark(ctx)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}
	r.report.WatermarkBefore = wm
	r.report.WatermarkAfter = wm

	force := opts.Force || e.settings.ForceUpdate || e.forcedByEnv()
	startedAt := r.report.StartedAt
	if !force && e.tooRecent(wm, startedAt) {
		r.report.SkippedRecent = true
		logger.Info("last sync at %s is within %s; skipping (use --force to override)",
			wm.SyncedAt.Format(time.RFC3339), e.settings.MinInterval)
		return nil
	}

	// A forced run re-reads the full extract even if it has not changed.
	since := wm
	if force {
		since = domain.Watermark{}
	}

	extract, err := e.fetcher.FetchLatest(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch latest: %w", err)
	}

	if extract.Empty {
		r.report.Empty = true
		logger.Info("no new data upstream")
		return e.commitWatermark(ctx, r, wm.Advance(startedAt, time.Time{}, 0))
	}

	lookback := opts.Lookback
	if lookback == 0 {
		lookback = e.settings.Lookback
	}

	merged, err := e.mergeExtract(ctx, r, extract, lookbackFilter(startedAt, lookback))
	if err != nil {
		return err
	}
	return e.commitWatermark(ctx, r, wm.Advance(startedAt, merged.latest, merged.rows))
}

// Import merges a local CSV file without touching the watermark.
func (e *SyncEngine) Import(ctx context.Context, path string) (*domain.SyncReport, error) {
	r, err := e.begin(domain.SyncModeImport)
	if err != nil {
		return nil, err
	}
	err = e.importFile(ctx, r, path)
	r.finish(err)
	if err != nil {
		return r.report, err
	}
	return r.report, nil
}

func (e *SyncEngine) importFile(ctx context.Context, r *run, path string) error {
	if e.files == nil {
		return fmt.Errorf("%w: file import is not configured", domain.ErrInvalidInput)
	}
	extract, err := e.files.OpenFile(ctx, path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if extract.Empty {
		r.report.Empty = true
		return nil
	}
	if _, err := e.mergeExtract(ctx, r, extract, nil); err != nil {
		return err
	}
	e.invalidateStats(ctx)
	return nil
}

func (e *SyncEngine) tooRecent(wm domain.Watermark, now time.Time) bool {
	if wm.IsZero() || e.settings.MinInterval <= 0 {
		return false
	}
	return now.Sub(wm.SyncedAt) < e.settings.MinInterval
}

func (e *SyncEngine) forcedByEnv() bool {
	v := strings.TrimSpace(e.getenv(ForceUpdateEnv))
	if v == "" {
		return false
	}
	forced, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("ignoring %s=%q: %v", ForceUpdateEnv, v, err)
		return false
	}
	return forced
}

// lookbackFilter keeps records posted on or after the day now-lookback falls on.
func lookbackFilter(now time.Time, lookback time.Duration) func(*domain.Opportunity) bool {
	if lookback <= 0 {
		return nil
	}
	c := now.UTC().Add(-lookback)
	cutoff := time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, time.UTC)
	return func(o *domain.Opportunity) bool {
		return !o.PostedDate.Before(cutoff)
	}
}
