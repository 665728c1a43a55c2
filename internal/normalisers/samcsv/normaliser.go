package samcsv

import (
	"crypto/sha1" //nolint:gosec // identifier derivation, not security
	"encoding/hex"
	"strings"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Discard reasons reported for rejected rows.
const (
	ReasonMissingTitle      = "missing title"
	ReasonInvalidPostedDate = "invalid posted date"
	ReasonMissingCountry    = "missing country"
	ReasonUnresolvedCountry = "unresolved country"
	ReasonMalformedLine     = "malformed line"
)

// fingerprintPrefix marks identifiers derived from row content.
const fingerprintPrefix = "h-"

// Normaliser maps SAM.gov Contract Opportunities rows to records.
// Rows whose place of performance is not an African country are rejected.
type Normaliser struct {
	countries *CountryTable
}

// New creates a normaliser backed by the built-in country table.
func New() *Normaliser {
	return &Normaliser{countries: DefaultTable()}
}

// NewWithTable creates a normaliser with a custom country table.
func NewWithTable(t *CountryTable) *Normaliser {
	return &Normaliser{countries: t}
}

// Countries returns the table used for resolution.
func (n *Normaliser) Countries() *CountryTable {
	return n.countries
}

// Normalise converts one row, or explains why it was discarded.
func (n *Normaliser) Normalise(row domain.RawRow) (*domain.Opportunity, *domain.ValidationError) {
	title := clean(row.Get(ColTitle))
	if title == "" {
		return nil, reject(row, ColTitle, ReasonMissingTitle, nil)
	}

	posted, ok := ParseDate(row.Get(ColPostedDate))
	if !ok {
		return nil, reject(row, ColPostedDate, ReasonInvalidPostedDate, nil)
	}
	posted = dateOnly(posted)

	rawCountry := strings.TrimSpace(row.Get(ColPopCountry))
	if rawCountry == "" {
		return nil, reject(row, ColPopCountry, ReasonMissingCountry, domain.ErrUnresolvedCountry)
	}
	country, ok := n.countries.Resolve(rawCountry)
	if !ok {
		return nil, reject(row, ColPopCountry, ReasonUnresolvedCountry, domain.ErrUnresolvedCountry)
	}

	opp := &domain.Opportunity{
		Title:              title,
		SolicitationNumber: clean(row.Get(ColSolicitation)),
		Agency:             clean(row.Get(ColAgency)),
		SubTier:            clean(row.Get(ColSubTier)),
		Office:             clean(row.Get(ColOffice)),
		PostedDate:         posted,
		CountryCode:        country.Code,
		CountryName:        country.Name,
		RawCountry:         rawCountry,
		PopCity:            clean(row.Get(ColPopCity)),
		Type:               clean(row.Get(ColType)),
		BaseType:           clean(row.Get(ColBaseType)),
		ArchiveType:        clean(row.Get(ColArchiveType)),
		ArchiveDate:        optionalDate(row.Get(ColArchiveDate)),
		ResponseDeadline:   optionalTime(row.Get(ColResponseDeadline)),
		Active:             parseActive(row.Get(ColActive)),
		AwardNumber:        clean(row.Get(ColAwardNumber)),
		AwardDate:          optionalDate(row.Get(ColAwardDate)),
		AwardAmount:        clean(row.Get(ColAwardAmount)),
		Awardee:            clean(row.Get(ColAwardee)),
		NAICSCode:          clean(row.Get(ColNAICS)),
		SetAside:           clean(row.Get(ColSetAside)),
		ContactName:        clean(row.Get(ColContactName)),
		ContactEmail:       clean(row.Get(ColContactEmail)),
		Link:               FixLink(row.Get(ColLink)),
		AdditionalInfoLink: strings.TrimSpace(row.Get(ColAdditionalInfoLink)),
		Description:        strings.TrimSpace(row.Get(ColDescription)),
	}

	if id := strings.TrimSpace(row.Get(ColNoticeID)); id != "" {
		opp.ID = id
	} else {
		opp.ID = Fingerprint(opp)
	}

	return opp, nil
}

// Fingerprint derives a stable identifier from the identifying fields
// of a record. Status fields and free text never contribute, so an award
// or archive update keeps the identifier of the notice it updates.
func Fingerprint(o *domain.Opportunity) string {
	parts := []string{
		fold(o.Title),
		o.PostedDate.Format(time.DateOnly),
		fold(o.SolicitationNumber),
		strings.ToLower(o.Link),
		o.CountryCode,
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|"))) //nolint:gosec // see import
	return fingerprintPrefix + hex.EncodeToString(sum[:])[:24]
}

// FixLink makes relative SAM.gov opportunity links absolute.
func FixLink(link string) string {
	link = strings.TrimSpace(link)
	switch {
	case link == "":
		return ""
	case strings.HasPrefix(link, "http://"), strings.HasPrefix(link, "https://"):
		return link
	case strings.HasPrefix(link, "/opp/"):
		return "https://sam.gov" + link
	case strings.HasPrefix(link, "opp/"):
		return "https://sam.gov/" + link
	default:
		return link
	}
}

func reject(row domain.RawRow, field, reason string, err error) *domain.ValidationError {
	return &domain.ValidationError{Line: row.Line, Field: field, Reason: reason, Err: err}
}

// clean trims and collapses internal whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// fold is clean plus lower-casing, for identity comparisons.
func fold(s string) string {
	return strings.ToLower(clean(s))
}

func parseActive(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1", "active":
		return true
	default:
		return false
	}
}

func optionalDate(s string) time.Time {
	t, ok := ParseDate(s)
	if !ok {
		return time.Time{}
	}
	return dateOnly(t)
}

func optionalTime(s string) time.Time {
	t, ok := ParseDate(s)
	if !ok {
		return time.Time{}
	}
	return t.UTC()
}
