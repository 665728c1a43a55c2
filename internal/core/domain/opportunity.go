package domain

import (
	"strings"
	"time"
)

// Opportunity is a single deduplicated contract opportunity whose place of
// performance resolved to one of the African countries.
type Opportunity struct {
	// ID is the extract's NoticeId, or a derived fingerprint prefixed "h-".
	ID string

	Title              string
	SolicitationNumber string
	Agency             string
	SubTier            string
	Office             string

	// PostedDate is a calendar date in UTC.
	PostedDate time.Time

	// CountryCode is the canonical ISO 3166-1 alpha-3 code.
	CountryCode string
	CountryName string

	// RawCountry is the unmodified place-of-performance value.
	RawCountry string
	PopCity    string

	// Status fields. These are the only fields an upsert may change.
	Type             string
	BaseType         string
	ArchiveType      string
	ArchiveDate      time.Time
	ResponseDeadline time.Time
	Active           bool
	AwardNumber      string
	AwardDate        time.Time
	AwardAmount      string
	Awardee          string

	NAICSCode          string
	SetAside           string
	ContactName        string
	ContactEmail       string
	Link               string
	AdditionalInfoLink string
	Description        string

	// Source labels the extract segment the record was first merged from.
	Source string

	FirstSeenAt time.Time
	UpdatedAt   time.Time
}

// SameStatus reports whether o and other agree on every mutable status field.
func (o *Opportunity) SameStatus(other *Opportunity) bool {
	return o.Type == other.Type &&
		o.BaseType == other.BaseType &&
		o.ArchiveType == other.ArchiveType &&
		o.ArchiveDate.Equal(other.ArchiveDate) &&
		o.ResponseDeadline.Equal(other.ResponseDeadline) &&
		o.Active == other.Active &&
		o.AwardNumber == other.AwardNumber &&
		o.AwardDate.Equal(other.AwardDate) &&
		o.AwardAmount == other.AwardAmount &&
		o.Awardee == other.Awardee
}

// Supersedes reports whether o may replace the status of stored. A row
// posted before the stored one is stale.
func (o *Opportunity) Supersedes(stored *Opportunity) bool {
	return !o.PostedDate.Before(stored.PostedDate)
}

// ApplyStatus copies the mutable status fields, and the posted date they
// belong to, from other.
func (o *Opportunity) ApplyStatus(other *Opportunity) {
	o.PostedDate = other.PostedDate
	o.Type = other.Type
	o.BaseType = other.BaseType
	o.ArchiveType = other.ArchiveType
	o.ArchiveDate = other.ArchiveDate
	o.ResponseDeadline = other.ResponseDeadline
	o.Active = other.Active
	o.AwardNumber = other.AwardNumber
	o.AwardDate = other.AwardDate
	o.AwardAmount = other.AwardAmount
	o.Awardee = other.Awardee
}

// UpsertResult counts the outcome of merging one batch.
type UpsertResult struct {
	Inserted  int
	Updated   int
	Unchanged int

	// InsertedIDs lists the IDs that were new to the store.
	InsertedIDs []string
}

// Add accumulates another batch result.
func (r *UpsertResult) Add(other UpsertResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.InsertedIDs = append(r.InsertedIDs, other.InsertedIDs...)
}

// Filter selects records for Query. Zero values mean "no constraint".
type Filter struct {
	// Countries restricts to these alpha-3 codes.
	Countries []string

	// From and To bound PostedDate inclusively.
	From time.Time
	To   time.Time

	// Agency matches departments whose name starts with this value,
	// ignoring case and surrounding spaces.
	Agency string

	ActiveOnly bool

	// Limit caps the number of records returned. Zero means unlimited.
	Limit int
}

// Validate rejects filters that can never match.
func (f Filter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return ErrInvalidInput
	}
	if f.Limit < 0 {
		return ErrInvalidInput
	}
	return nil
}

// AgencyKey folds an agency name into the indexed form used for matching.
func AgencyKey(agency string) string {
	return strings.ToUpper(strings.TrimSpace(agency))
}

// agencyKeyCeiling sorts after any key that extends a prefix.
const agencyKeyCeiling = "\U0010FFFF"

// AgencyKeyRange returns the half-open range [lo, hi) of agency keys that
// start with prefix under bytewise comparison.
func AgencyKeyRange(prefix string) (lo, hi string) {
	lo = AgencyKey(prefix)
	return lo, lo + agencyKeyCeiling
}

// CountryCount is one entry of the per-country breakdown.
type CountryCount struct {
	Code  string
	Name  string
	Count int
}

// YearCount is one entry of the per-year breakdown.
type YearCount struct {
	Year  int
	Count int
}

// Statistics summarises the record store.
type Statistics struct {
	Total  int
	Active int

	// RecentCount is the number of records posted in the last 30 days.
	RecentCount int
	Last7Days   int
	Last365Days int

	SizeBytes    int64
	LatestPosted time.Time

	// ByCountry is ordered by count descending.
	ByCountry []CountryCount

	// ByYear is ordered by year descending.
	ByYear []YearCount

	GeneratedAt time.Time
}

// SizeMB returns the store size in megabytes.
func (s Statistics) SizeMB() float64 {
	return float64(s.SizeBytes) / (1024 * 1024)
}
