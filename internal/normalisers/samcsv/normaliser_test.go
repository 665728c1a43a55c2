package samcsv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

func testRow(values map[string]string) domain.RawRow {
	base := map[string]string{
		ColNoticeID:   "abc123",
		ColTitle:      "Water Well Construction",
		ColPostedDate: "2024-03-05 10:15:00.123-05",
		ColPopCountry: "KEN",
		ColType:       "Solicitation",
		ColActive:     "Yes",
		ColLink:       "/opp/abc123/view",
	}
	for k, v := range values {
		base[k] = v
	}
	return domain.RawRow{Line: 2, Values: base}
}

func TestNormalise_Success(t *testing.T) {
	n := New()

	opp, verr := n.Normalise(testRow(nil))

	require.Nil(t, verr)
	require.NotNil(t, opp)
	assert.Equal(t, "abc123", opp.ID)
	assert.Equal(t, "KEN", opp.CountryCode)
	assert.Equal(t, "Kenya", opp.CountryName)
	assert.Equal(t, "KEN", opp.RawCountry)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), opp.PostedDate)
	assert.True(t, opp.Active)
	assert.Equal(t, "https://sam.gov/opp/abc123/view", opp.Link)
}

func TestNormalise_ExampleCountries(t *testing.T) {
	n := New()

	kenya, verr := n.Normalise(testRow(map[string]string{ColNoticeID: "1", ColPopCountry: "Kenya"}))
	require.Nil(t, verr)
	assert.Equal(t, "KEN", kenya.CountryCode)

	_, verr = n.Normalise(testRow(map[string]string{ColNoticeID: "2", ColPopCountry: "France"}))
	require.NotNil(t, verr)
	assert.Equal(t, ReasonUnresolvedCountry, verr.Reason)
	assert.ErrorIs(t, verr, domain.ErrUnresolvedCountry)

	civ, verr := n.Normalise(testRow(map[string]string{ColNoticeID: "3", ColPopCountry: "Cote d'Ivoire"}))
	require.Nil(t, verr)
	assert.Equal(t, "CIV", civ.CountryCode)
}

func TestNormalise_RequiredFields(t *testing.T) {
	n := New()

	tests := []struct {
		name   string
		values map[string]string
		reason string
	}{
		{"missing title", map[string]string{ColTitle: "   "}, ReasonMissingTitle},
		{"missing posted date", map[string]string{ColPostedDate: ""}, ReasonInvalidPostedDate},
		{"garbage posted date", map[string]string{ColPostedDate: "next tuesday"}, ReasonInvalidPostedDate},
		{"missing country", map[string]string{ColPopCountry: ""}, ReasonMissingCountry},
		{"non-african iso3", map[string]string{ColPopCountry: "ITA"}, ReasonUnresolvedCountry},
		{"placeholder", map[string]string{ColPopCountry: "N/A"}, ReasonUnresolvedCountry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, verr := n.Normalise(testRow(tt.values))
			assert.Nil(t, opp)
			require.NotNil(t, verr)
			assert.Equal(t, tt.reason, verr.Reason)
			assert.Equal(t, 2, verr.Line)
		})
	}
}

func TestNormalise_FingerprintWhenNoNoticeID(t *testing.T) {
	n := New()

	row := testRow(map[string]string{ColNoticeID: "", ColDescription: "first draft"})
	first, verr := n.Normalise(row)
	require.Nil(t, verr)
	assert.Regexp(t, `^h-[0-9a-f]{24}$`, first.ID)

	again, verr := n.Normalise(row)
	require.Nil(t, verr)
	assert.Equal(t, first.ID, again.ID, "normalisation is deterministic")

	edited, verr := n.Normalise(testRow(map[string]string{ColNoticeID: "", ColDescription: "revised text"}))
	require.Nil(t, verr)
	assert.Equal(t, first.ID, edited.ID, "description does not affect identity")

	spaced, verr := n.Normalise(testRow(map[string]string{ColNoticeID: "", ColTitle: "  Water  Well Construction "}))
	require.Nil(t, verr)
	assert.Equal(t, first.ID, spaced.ID, "whitespace does not affect identity")

	other, verr := n.Normalise(testRow(map[string]string{ColNoticeID: "", ColTitle: "Road Repair"}))
	require.Nil(t, verr)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestNormalise_FingerprintIgnoresStatusFields(t *testing.T) {
	n := New()

	open, verr := n.Normalise(testRow(map[string]string{ColNoticeID: ""}))
	require.Nil(t, verr)

	awarded, verr := n.Normalise(testRow(map[string]string{
		ColNoticeID:    "",
		ColType:        "Award Notice",
		ColActive:      "No",
		ColAwardNumber: "W91-24-C-0001",
		ColAwardee:     "Acme Ltd",
	}))
	require.Nil(t, verr)

	assert.Equal(t, open.ID, awarded.ID)
	assert.Equal(t, "Award Notice", awarded.Type)
	assert.False(t, open.SameStatus(awarded))
}

func TestNormalise_PostedTimeOfDayIgnored(t *testing.T) {
	n := New()

	a, _ := n.Normalise(testRow(map[string]string{ColNoticeID: "", ColPostedDate: "2024-03-05"}))
	b, _ := n.Normalise(testRow(map[string]string{ColNoticeID: "", ColPostedDate: "03/05/2024"}))

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.ID, b.ID)
}

func TestNormalise_OptionalFields(t *testing.T) {
	n := New()

	opp, verr := n.Normalise(testRow(map[string]string{
		ColAwardDate:        "2024-04-01",
		ColResponseDeadline: "2024-04-15T14:00:00-04:00",
		ColArchiveDate:      "not a date",
		ColActive:           "No",
	}))

	require.Nil(t, verr)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), opp.AwardDate)
	assert.Equal(t, time.Date(2024, 4, 15, 18, 0, 0, 0, time.UTC), opp.ResponseDeadline)
	assert.True(t, opp.ArchiveDate.IsZero())
	assert.False(t, opp.Active)
}

func TestFixLink(t *testing.T) {
	tests := map[string]string{
		"":                              "",
		"https://sam.gov/opp/x/view":    "https://sam.gov/opp/x/view",
		"/opp/x/view":                   "https://sam.gov/opp/x/view",
		"opp/x/view":                    "https://sam.gov/opp/x/view",
		"  http://example.org/notice  ": "http://example.org/notice",
		"something-else":                "something-else",
	}
	for in, want := range tests {
		assert.Equal(t, want, FixLink(in), in)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"2024-03-05 10:15:00", time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC)},
		{"03/05/2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"3/5/2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"2024-03-05 10-15-00", time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		require.True(t, ok, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.in, got)
	}

	_, ok := ParseDate("2024-13-45")
	assert.False(t, ok)
}

func TestCanonicalHeader(t *testing.T) {
	assert.Equal(t, ColNoticeID, CanonicalHeader("NoticeId"))
	assert.Equal(t, ColNoticeID, CanonicalHeader(" Notice ID "))
	assert.Equal(t, ColNoticeID, CanonicalHeader("DocumentID"))
	assert.Equal(t, ColSolicitation, CanonicalHeader("Solicitation Number"))
	assert.Equal(t, ColPopCountry, CanonicalHeader("\uFEFFPopCountry"))
	assert.Equal(t, ColAwardAmount, CanonicalHeader("Award$"))
	assert.Equal(t, "Unknown Column", CanonicalHeader(" Unknown Column"))
}
