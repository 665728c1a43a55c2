package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermark_AdvanceIsMonotonic(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	w := Watermark{SyncedAt: t0, LatestPosted: t0, RecordsSeen: 10}

	next := w.Advance(t0.Add(24*time.Hour), t0.Add(-48*time.Hour), 5)
	assert.Equal(t, t0.Add(24*time.Hour), next.SyncedAt)
	assert.Equal(t, t0, next.LatestPosted, "latest posted must not move back")
	assert.Equal(t, int64(15), next.RecordsSeen)

	back := next.Advance(t0, time.Time{}, 0)
	assert.Equal(t, next.SyncedAt, back.SyncedAt, "synced-at must not move back")
}

func TestWatermark_IsZero(t *testing.T) {
	assert.True(t, Watermark{}.IsZero())
	assert.False(t, Watermark{SyncedAt: time.Now()}.IsZero())
}

func TestBootstrapProgress_Remaining(t *testing.T) {
	now := time.Now()
	p := NewBootstrapProgress(BootstrapOptions{StartYear: 2018, EndYear: 2020, IncludeCurrent: true}, now)

	require.Equal(t, []Segment{ArchiveSegment(2018), ArchiveSegment(2019), ArchiveSegment(2020), CurrentSegment()}, p.Remaining())

	p.Complete(ArchiveSegment(2018), now)
	p.Complete(ArchiveSegment(2019), now)
	assert.Equal(t, []Segment{ArchiveSegment(2020), CurrentSegment()}, p.Remaining())
	assert.False(t, p.Done())

	p.Complete(ArchiveSegment(2020), now)
	p.Complete(CurrentSegment(), now)
	assert.Empty(t, p.Remaining())
	assert.True(t, p.Done())
}

func TestBootstrapProgress_CompleteNeverRegresses(t *testing.T) {
	p := NewBootstrapProgress(BootstrapOptions{StartYear: 2000, EndYear: 2005}, time.Now())
	p.Complete(ArchiveSegment(2003), time.Now())
	p.Complete(ArchiveSegment(2001), time.Now())

	assert.Equal(t, 2003, p.CompletedThrough)
}

func TestBootstrapProgress_Matches(t *testing.T) {
	opts := BootstrapOptions{StartYear: 2000, EndYear: 2005, IncludeCurrent: true}
	p := NewBootstrapProgress(opts, time.Now())

	assert.True(t, p.Matches(opts))
	assert.False(t, p.Matches(BootstrapOptions{StartYear: 2001, EndYear: 2005, IncludeCurrent: true}))
	assert.False(t, p.Matches(BootstrapOptions{StartYear: 2000, EndYear: 2005}))
}

func TestSegment_Label(t *testing.T) {
	assert.Equal(t, "FY2019", ArchiveSegment(2019).Label())
	assert.Equal(t, "current", CurrentSegment().Label())
}

func TestFiscalYear(t *testing.T) {
	assert.Equal(t, 2024, FiscalYear(time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2025, FiscalYear(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBootstrapOptions_Validate(t *testing.T) {
	assert.NoError(t, BootstrapOptions{StartYear: 1998, EndYear: 2025}.Validate())
	assert.ErrorIs(t, BootstrapOptions{StartYear: 2025, EndYear: 1998}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, BootstrapOptions{}.Validate(), ErrInvalidInput)
}

func TestSyncStatus_Running(t *testing.T) {
	assert.False(t, SyncStatus{Phase: PhaseIdle}.Running())
	assert.True(t, SyncStatus{Phase: PhaseMerging}.Running())
	assert.False(t, SyncStatus{Phase: PhaseFailed}.Running())
}

func TestSyncReport_Discard(t *testing.T) {
	var r SyncReport
	r.Discard("unresolved country")
	r.Discard("unresolved country")
	r.Discard("missing title")

	assert.Equal(t, 2, r.Discarded["unresolved country"])
	assert.Equal(t, 3, r.DiscardedTotal())
}

func TestRawRow_Get(t *testing.T) {
	row := RawRow{Values: map[string]string{"Sol#": "ABC", "Title": ""}}

	assert.Equal(t, "ABC", row.Get("SolicitationNumber", "Sol#"))
	assert.Equal(t, "", row.Get("Title"))
	assert.Equal(t, "", row.Get("Missing"))
}

func TestOpportunity_StatusFields(t *testing.T) {
	a := &Opportunity{ID: "1", Title: "A", Active: true, Type: "Solicitation"}
	b := &Opportunity{ID: "1", Title: "B", Active: false, Type: "Award Notice", Awardee: "Acme"}

	assert.False(t, a.SameStatus(b))
	a.ApplyStatus(b)
	assert.True(t, a.SameStatus(b))
	assert.Equal(t, "A", a.Title, "non-status fields are immutable")
}

func TestFilter_Validate(t *testing.T) {
	now := time.Now()
	assert.NoError(t, Filter{}.Validate())
	assert.ErrorIs(t, Filter{From: now, To: now.Add(-time.Hour)}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Filter{Limit: -1}.Validate(), ErrInvalidInput)
}
