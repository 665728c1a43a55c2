package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
	"github.com/custodia-labs/afrisam/internal/core/ports/driving"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncService = (*SyncEngine)(nil)

// ReasonBeforeLookback counts rows dropped by the incremental lookback window.
const ReasonBeforeLookback = "before lookback"

// SyncEngine keeps the record store in step with the upstream extracts.
// It is the only writer of the watermark and the bootstrap marker.
type SyncEngine struct {
	fetcher    driven.Fetcher
	files      driven.FileOpener
	reader     driven.ExtractReader
	normaliser driven.Normaliser
	records    driven.RecordStore
	state      driven.SyncStateStore

	// Optional collaborators.
	runLock   driven.RunLock
	stats     driven.StatsCache
	publisher driven.RecordPublisher

	settings domain.SyncSettings
	parallel int

	now      func() time.Time
	newRunID func() string
	getenv   func(string) string

	// runMu admits one run at a time; TryLock only.
	runMu sync.Mutex

	mu     sync.RWMutex
	status domain.SyncStatus
}

// NewSyncEngine creates a sync engine.
func NewSyncEngine(
	fetcher driven.Fetcher,
	files driven.FileOpener,
	reader driven.ExtractReader,
	normaliser driven.Normaliser,
	records driven.RecordStore,
	state driven.SyncStateStore,
	settings domain.AppSettings,
) *SyncEngine {
	parallel := settings.Bootstrap.Parallel
	if parallel <= 0 {
		parallel = 1
	}
	return &SyncEngine{
		fetcher:    fetcher,
		files:      files,
		reader:     reader,
		normaliser: normaliser,
		records:    records,
		state:      state,
		settings:   settings.Sync,
		parallel:   parallel,
		now:        time.Now,
		newRunID:   uuid.NewString,
		getenv:     os.Getenv,
		status:     domain.SyncStatus{Phase: domain.PhaseIdle},
	}
}

// SetRunLock adds a cross-process lock taken for every run.
func (e *SyncEngine) SetRunLock(l driven.RunLock) {
	e.runLock = l
}

// SetStatsCache sets the cache invalidated after each committed run.
func (e *SyncEngine) SetStatsCache(c driven.StatsCache) {
	e.stats = c
}

// SetPublisher sets where newly inserted records are announced.
func (e *SyncEngine) SetPublisher(p driven.RecordPublisher) {
	e.publisher = p
}

// Status returns the current phase, counters and persisted progress.
func (e *SyncEngine) Status(ctx context.Context) (*domain.SyncStatus, error) {
	e.mu.RLock()
	status := e.status
	e.mu.RUnlock()

	wm, err := e.state.Watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}
	progress, err := e.state.Bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap progress: %w", err)
	}
	status.Watermark = wm
	status.Bootstrap = progress
	return &status, nil
}

// Reset clears the watermark and any bootstrap marker.
// Records already in the store are kept.
func (e *SyncEngine) Reset(ctx context.Context) error {
	r, err := e.begin(domain.SyncModeIncremental)
	if err != nil {
		return err
	}
	err = e.state.Reset(ctx)
	if err != nil {
		err = fmt.Errorf("reset state: %w", err)
	} else {
		logger.Info("sync state reset")
	}
	r.finish(err)
	return err
}

// ==================== Run lifecycle ====================

// run is one admitted sync run.
type run struct {
	e      *SyncEngine
	report *domain.SyncReport
	unlock func() error
}

// begin admits a run or fails with *domain.ConcurrencyError.
func (e *SyncEngine) begin(mode domain.SyncMode) (*run, error) {
	if !e.runMu.TryLock() {
		e.mu.RLock()
		holder := string(e.status.Mode)
		e.mu.RUnlock()
		return nil, &domain.ConcurrencyError{Holder: holder}
	}

	unlock := func() error { return nil }
	if e.runLock != nil {
		u, err := e.runLock.TryLock()
		if err != nil {
			e.runMu.Unlock()
			return nil, err
		}
		unlock = u
	}

	started := e.now()
	r := &run{
		e:      e,
		unlock: unlock,
		report: &domain.SyncReport{
			RunID:     e.newRunID(),
			Mode:      mode,
			StartedAt: started,
		},
	}

	e.mu.Lock()
	e.status = domain.SyncStatus{
		Phase:     domain.PhaseFetching,
		Mode:      mode,
		RunID:     r.report.RunID,
		StartedAt: started,
	}
	e.mu.Unlock()

	logger.WithFields(map[string]any{"run": r.report.RunID, "mode": mode}).Info("sync started")
	return r, nil
}

// finish records the outcome and releases the locks.
func (r *run) finish(err error) {
	e := r.e
	r.report.Duration = e.now().Sub(r.report.StartedAt)

	e.mu.Lock()
	if err != nil {
		e.status.Phase = domain.PhaseFailed
		e.status.LastError = err.Error()
	} else {
		e.status.Phase = domain.PhaseCommitted
	}
	phase := e.status.Phase
	e.status.Phase = domain.PhaseIdle
	e.status.Segment = ""
	e.mu.Unlock()

	fields := map[string]any{
		"run":       r.report.RunID,
		"phase":     phase,
		"inserted":  r.report.Inserted,
		"updated":   r.report.Updated,
		"discarded": r.report.DiscardedTotal(),
		"duration":  r.report.Duration.Round(time.Millisecond),
	}
	if err != nil {
		logger.WithFields(fields).Errorf("sync failed: %v", err)
	} else {
		logger.WithFields(fields).Info("sync finished")
	}

	if uerr := r.unlock(); uerr != nil {
		logger.Warn("release run lock: %v", uerr)
	}
	e.runMu.Unlock()
}

func (e *SyncEngine) setPhase(phase domain.SyncPhase, segment string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Phase = phase
	if segment != "" {
		e.status.Segment = segment
	}
}

func (e *SyncEngine) addCounters(read, discarded int, res domain.UpsertResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.RowsRead += read
	e.status.Discarded += discarded
	e.status.Inserted += res.Inserted
	e.status.Updated += res.Updated
}

// commitWatermark durably advances the watermark, then drops stale statistics.
func (e *SyncEngine) commitWatermark(ctx context.Context, r *run, wm domain.Watermark) error {
	if err := e.state.SaveWatermark(ctx, wm); err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}
	r.report.WatermarkAfter = wm
	e.invalidateStats(ctx)
	return nil
}

func (e *SyncEngine) invalidateStats(ctx context.Context) {
	if e.stats == nil {
		return
	}
	if err := e.stats.Invalidate(ctx); err != nil {
		logger.Warn("invalidate statistics cache: %v", err)
	}
}

// ==================== Merge pipeline ====================

// mergeResult summarises one extract merged into the store.
type mergeResult struct {
	rows   int64
	latest time.Time
}

// mergeExtract streams an extract through the normaliser into the store in
// batches. keep, if set, drops records before they are batched.
// Cancellation is honoured between batches; committed batches stay committed.
//
//nolint:gocognit // Pipeline with row and batch level bookkeeping
func (e *SyncEngine) mergeExtract(
	ctx context.Context,
	r *run,
	extract *domain.Extract,
	keep func(*domain.Opportunity) bool,
) (mergeResult, error) {
	var res mergeResult
	if extract == nil || extract.Empty {
		return res, nil
	}

	segment := extract.Segment
	e.setPhase(domain.PhaseNormalizing, segment)
	logger.Section("merge " + segment)

	batchSize := e.settings.BatchSize
	if batchSize <= 0 {
		batchSize = domain.DefaultAppSettings().Sync.BatchSize
	}
	batch := make([]domain.Opportunity, 0, batchSize)
	read, discarded := 0, 0

	flush := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(batch) == 0 {
			e.addCounters(read, discarded, domain.UpsertResult{})
			read, discarded = 0, 0
			return nil
		}

		e.setPhase(domain.PhaseMerging, "")
		up, err := e.records.Upsert(ctx, batch)
		if err != nil {
			return fmt.Errorf("merge %s: %w", segment, err)
		}
		r.report.Inserted += up.Inserted
		r.report.Updated += up.Updated
		r.report.Unchanged += up.Unchanged
		e.addCounters(read, discarded, up)
		logger.Debug("merged %d records from %s: %d new, %d updated", len(batch), segment, up.Inserted, up.Updated)

		e.publish(ctx, r.report.RunID, batch, up.InsertedIDs)

		read, discarded = 0, 0
		batch = batch[:0]
		e.setPhase(domain.PhaseNormalizing, "")
		return nil
	}

	for row, err := range e.reader.Rows(ctx, extract) {
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				r.report.RowsRead++
				r.report.Discard(ve.Reason)
				read++
				discarded++
				continue
			}
			return res, fmt.Errorf("read %s: %w", segment, err)
		}

		r.report.RowsRead++
		read++

		rec, ve := e.normaliser.Normalise(row)
		if ve != nil {
			r.report.Discard(ve.Reason)
			discarded++
			continue
		}
		if keep != nil && !keep(rec) {
			r.report.Discard(ReasonBeforeLookback)
			discarded++
			continue
		}
		if rec.Source == "" {
			rec.Source = segment
		}

		batch = append(batch, *rec)
		res.rows++
		if rec.PostedDate.After(res.latest) {
			res.latest = rec.PostedDate
		}

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}

	if err := flush(); err != nil {
		return res, err
	}
	r.report.Segments = append(r.report.Segments, segment)
	return res, nil
}

// publish announces the inserted subset of batch. Failures are logged only.
func (e *SyncEngine) publish(ctx context.Context, runID string, batch []domain.Opportunity, inserted []string) {
	if e.publisher == nil || len(inserted) == 0 {
		return
	}

	ids := make(map[string]struct{}, len(inserted))
	for _, id := range inserted {
		ids[id] = struct{}{}
	}
	fresh := make([]domain.Opportunity, 0, len(inserted))
	for i := range batch {
		if _, ok := ids[batch[i].ID]; ok {
			fresh = append(fresh, batch[i])
			delete(ids, batch[i].ID)
		}
	}

	if err := e.publisher.Publish(ctx, runID, fresh); err != nil {
		logger.Warn("publish %d new records: %v", len(fresh), err)
	}
}
