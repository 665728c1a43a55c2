package domain

import (
	"fmt"
	"time"
)

// Watermark records the last durably committed sync.
// The zero value means nothing has been synced yet.
type Watermark struct {
	// SyncedAt is when the last committed run started fetching.
	SyncedAt time.Time

	// LatestPosted is the highest posted date committed so far.
	LatestPosted time.Time

	// RecordsSeen is the running total of normalised rows merged.
	RecordsSeen int64
}

// IsZero reports whether no sync has ever committed.
func (w Watermark) IsZero() bool {
	return w.SyncedAt.IsZero()
}

// Advance returns the watermark after a run that started at syncedAt
// and merged rows up to latest. It never moves backwards.
func (w Watermark) Advance(syncedAt, latest time.Time, rows int64) Watermark {
	next := w
	if syncedAt.After(next.SyncedAt) {
		next.SyncedAt = syncedAt
	}
	if latest.After(next.LatestPosted) {
		next.LatestPosted = latest
	}
	next.RecordsSeen += rows
	return next
}

// BootstrapProgress marks how far an interrupted bootstrap got.
type BootstrapProgress struct {
	StartYear int
	EndYear   int

	// CompletedThrough is the last fiscal year whose segment committed,
	// or StartYear-1 when none has.
	CompletedThrough int

	// IncludeCurrent is true when the run ends with the latest extract.
	IncludeCurrent bool

	// CurrentDone is true once the latest-extract segment committed.
	CurrentDone bool

	StartedAt time.Time
	UpdatedAt time.Time
}

// NewBootstrapProgress creates a marker for a fresh run.
func NewBootstrapProgress(opts BootstrapOptions, now time.Time) BootstrapProgress {
	return BootstrapProgress{
		StartYear:        opts.StartYear,
		EndYear:          opts.EndYear,
		CompletedThrough: opts.StartYear - 1,
		IncludeCurrent:   opts.IncludeCurrent,
		StartedAt:        now,
		UpdatedAt:        now,
	}
}

// Matches reports whether the marker belongs to the same requested range.
func (p BootstrapProgress) Matches(opts BootstrapOptions) bool {
	return p.StartYear == opts.StartYear &&
		p.EndYear == opts.EndYear &&
		p.IncludeCurrent == opts.IncludeCurrent
}

// Remaining lists the segments still to process, in order.
func (p BootstrapProgress) Remaining() []Segment {
	var segs []Segment //nolint:prealloc // small, bounded by the year range
	for y := p.CompletedThrough + 1; y <= p.EndYear; y++ {
		segs = append(segs, ArchiveSegment(y))
	}
	if p.IncludeCurrent && !p.CurrentDone {
		segs = append(segs, CurrentSegment())
	}
	return segs
}

// Complete records that seg committed.
func (p *BootstrapProgress) Complete(seg Segment, now time.Time) {
	if seg.Current {
		p.CurrentDone = true
	} else if seg.Year > p.CompletedThrough {
		p.CompletedThrough = seg.Year
	}
	p.UpdatedAt = now
}

// Done reports whether every segment committed.
func (p BootstrapProgress) Done() bool {
	return len(p.Remaining()) == 0
}

// Segment is one unit of bootstrap work: a fiscal-year archive or the latest extract.
type Segment struct {
	Year    int
	Current bool
}

// ArchiveSegment returns the segment for a fiscal-year archive.
func ArchiveSegment(year int) Segment {
	return Segment{Year: year}
}

// CurrentSegment returns the segment for the latest extract.
func CurrentSegment() Segment {
	return Segment{Current: true}
}

// Label names the segment in reports and the Source column.
func (s Segment) Label() string {
	if s.Current {
		return "current"
	}
	return fmt.Sprintf("FY%d", s.Year)
}

// FiscalYear returns the U.S. federal fiscal year containing t.
// Fiscal years start on 1 October.
func FiscalYear(t time.Time) int {
	if t.Month() >= time.October {
		return t.Year() + 1
	}
	return t.Year()
}

// BootstrapOptions configures a historical load.
type BootstrapOptions struct {
	StartYear int
	EndYear   int

	// IncludeCurrent appends the latest extract after the archives.
	IncludeCurrent bool

	// Restart discards a progress marker left by a run with a different range.
	Restart bool
}

// Validate rejects ranges that can never be fetched.
func (o BootstrapOptions) Validate() error {
	if o.StartYear <= 0 || o.EndYear <= 0 {
		return fmt.Errorf("%w: start and end year are required", ErrInvalidInput)
	}
	if o.EndYear < o.StartYear {
		return fmt.Errorf("%w: end year %d before start year %d", ErrInvalidInput, o.EndYear, o.StartYear)
	}
	return nil
}

// IncrementalOptions configures a daily update.
type IncrementalOptions struct {
	// Lookback drops rows posted before now-Lookback. Zero keeps all rows.
	Lookback time.Duration

	// Force runs even if the minimum interval since the last sync has not elapsed.
	Force bool
}

// SyncMode identifies the kind of run.
type SyncMode string

// Sync modes.
const (
	SyncModeBootstrap   SyncMode = "bootstrap"
	SyncModeIncremental SyncMode = "incremental"
	SyncModeImport      SyncMode = "import"
)

// SyncPhase is the state of the sync state machine.
type SyncPhase string

// Sync phases, in order. Committed and Failed are terminal for a run.
const (
	PhaseIdle        SyncPhase = "idle"
	PhaseFetching    SyncPhase = "fetching"
	PhaseNormalizing SyncPhase = "normalizing"
	PhaseMerging     SyncPhase = "merging"
	PhaseCommitted   SyncPhase = "committed"
	PhaseFailed      SyncPhase = "failed"
)

// SyncStatus is a point-in-time view of the engine.
type SyncStatus struct {
	Phase   SyncPhase
	Mode    SyncMode
	RunID   string
	Segment string

	RowsRead  int
	Discarded int
	Inserted  int
	Updated   int

	Watermark Watermark
	Bootstrap *BootstrapProgress

	StartedAt time.Time
	LastError string
}

// Running reports whether a run is in progress.
func (s SyncStatus) Running() bool {
	switch s.Phase {
	case PhaseFetching, PhaseNormalizing, PhaseMerging:
		return true
	default:
		return false
	}
}

// SyncReport summarises a finished run.
type SyncReport struct {
	RunID    string
	Mode     SyncMode
	Segments []string

	// Skipped lists segments with no data upstream, e.g. a missing archive year.
	Skipped []string

	RowsRead  int
	Discarded map[string]int
	Inserted  int
	Updated   int
	Unchanged int

	// Empty is true when the source reported no new data.
	Empty bool

	// SkippedRecent is true when the run was skipped because the last sync is too recent.
	SkippedRecent bool

	WatermarkBefore Watermark
	WatermarkAfter  Watermark

	StartedAt time.Time
	Duration  time.Duration
}

// DiscardedTotal sums discards over all reasons.
func (r *SyncReport) DiscardedTotal() int {
	n := 0
	for _, c := range r.Discarded {
		n += c
	}
	return n
}

// Discard counts one rejected row under reason.
func (r *SyncReport) Discard(reason string) {
	if r.Discarded == nil {
		r.Discarded = make(map[string]int)
	}
	r.Discarded[reason]++
}

// RawRow is one CSV record keyed by trimmed header name.
type RawRow struct {
	Line   int
	Values map[string]string
}

// Get returns the value of the first present column among names.
func (r RawRow) Get(names ...string) string {
	for _, n := range names {
		if v, ok := r.Values[n]; ok {
			return v
		}
	}
	return ""
}

// Extract is a downloaded CSV payload ready to be read.
type Extract struct {
	// Name is the upstream file name.
	Name string

	// Path is the local file. Empty when Empty is true.
	Path string

	// Segment labels where the extract came from.
	Segment string

	Size int64

	// LastModified is the upstream modification time, if reported.
	LastModified time.Time

	// Empty is true when the source reported no new data.
	Empty bool
}
