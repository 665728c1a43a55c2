package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// fetched is the outcome of downloading one bootstrap segment.
type fetched struct {
	extract *domain.Extract
	err     error
}

// Bootstrap loads the fiscal-year archives in order. Progress is persisted
// after every segment, so an interrupted run with the same range resumes
// after the last committed segment. Downloads run ahead of the merge, up to
// the configured parallelism; merges stay in segment order.
func (e *SyncEngine) Bootstrap(ctx context.Context, opts domain.BootstrapOptions) (*domain.SyncReport, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	r, err := e.begin(domain.SyncModeBootstrap)
	if err != nil {
		return nil, err
	}
	err = e.bootstrap(ctx, r, opts)
	r.finish(err)
	if err != nil {
		return r.report, err
	}
	return r.report, nil
}

//nolint:gocognit // Sequential segment loop with resumable bookkeeping
func (e *SyncEngine) bootstrap(ctx context.Context, r *run, opts domain.BootstrapOptions) error {
	wm, err := e.state.Watermark(ctx)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}
	r.report.WatermarkBefore = wm
	r.report.WatermarkAfter = wm

	progress, err := e.loadProgress(ctx, opts)
	if err != nil {
		return err
	}

	segments := progress.Remaining()
	if done := progress.CompletedThrough - progress.StartYear + 1; done > 0 {
		logger.Info("resuming bootstrap after FY%d (%d segments left)", progress.CompletedThrough, len(segments))
	}

	results, stop := e.prefetch(ctx, segments)
	defer stop()

	var rows int64
	var latest time.Time
	for i, seg := range segments {
		e.setPhase(domain.PhaseFetching, seg.Label())

		var res fetched
		select {
		case res = <-results[i]:
		case <-ctx.Done():
			return ctx.Err()
		}

		if res.err != nil {
			if !seg.Current && errors.Is(res.err, domain.ErrNotFound) {
				logger.Info("no archive upstream for %s; skipping", seg.Label())
				r.report.Skipped = append(r.report.Skipped, seg.Label())
				if err := e.completeSegment(ctx, progress, seg); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("fetch %s: %w", seg.Label(), res.err)
		}

		merged, err := e.mergeExtract(ctx, r, res.extract, nil)
		if err != nil {
			return err
		}
		if res.extract.Empty {
			r.report.Skipped = append(r.report.Skipped, seg.Label())
		}
		rows += merged.rows
		if merged.latest.After(latest) {
			latest = merged.latest
		}

		if err := e.completeSegment(ctx, progress, seg); err != nil {
			return err
		}
		e.invalidateStats(ctx)
	}

	if err := e.state.ClearBootstrap(ctx); err != nil {
		return fmt.Errorf("clear bootstrap progress: %w", err)
	}
	return e.commitWatermark(ctx, r, wm.Advance(r.report.StartedAt, latest, rows))
}

// loadProgress returns the marker to continue from, creating one if needed.
func (e *SyncEngine) loadProgress(ctx context.Context, opts domain.BootstrapOptions) (*domain.BootstrapProgress, error) {
	progress, err := e.state.Bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap progress: %w", err)
	}

	if progress != nil && !progress.Matches(opts) {
		if !opts.Restart {
			return nil, fmt.Errorf("%w: in-progress run covers FY%d-FY%d; restart to discard it",
				domain.ErrRangeChanged, progress.StartYear, progress.EndYear)
		}
		logger.Warn("discarding bootstrap progress for FY%d-FY%d", progress.StartYear, progress.EndYear)
		progress = nil
	}

	if progress == nil {
		p := domain.NewBootstrapProgress(opts, e.now())
		if err := e.state.SaveBootstrap(ctx, p); err != nil {
			return nil, fmt.Errorf("save bootstrap progress: %w", err)
		}
		progress = &p
	}
	return progress, nil
}

func (e *SyncEngine) completeSegment(ctx context.Context, p *domain.BootstrapProgress, seg domain.Segment) error {
	p.Complete(seg, e.now())
	if err := e.state.SaveBootstrap(ctx, *p); err != nil {
		return fmt.Errorf("save bootstrap progress: %w", err)
	}
	return nil
}

// prefetch downloads segments in the background, at most e.parallel at a
// time. Each result lands in the channel at the segment's index.
// stop cancels outstanding downloads and waits for them to return.
func (e *SyncEngine) prefetch(ctx context.Context, segments []domain.Segment) ([]chan fetched, func()) {
	results := make([]chan fetched, len(segments))
	for i := range results {
		results[i] = make(chan fetched, 1)
	}

	fctx, cancel := context.WithCancel(ctx)
	g := new(errgroup.Group)
	g.SetLimit(e.parallel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, seg := range segments {
			if fctx.Err() != nil {
				results[i] <- fetched{err: fctx.Err()}
				continue
			}
			g.Go(func() error {
				ex, err := e.fetchSegment(fctx, seg)
				results[i] <- fetched{extract: ex, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	return results, func() {
		cancel()
		<-done
	}
}

func (e *SyncEngine) fetchSegment(ctx context.Context, seg domain.Segment) (*domain.Extract, error) {
	if seg.Current {
		// The bootstrap always reads the whole latest extract.
		return e.fetcher.FetchLatest(ctx, domain.Watermark{})
	}
	return e.fetcher.FetchArchive(ctx, seg.Year)
}
