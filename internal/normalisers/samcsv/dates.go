package samcsv

import (
	"strings"
	"time"
)

// dateLayouts are tried in order. Fractional seconds are accepted after
// any seconds field without being listed.
var dateLayouts = []string{
	time.DateOnly,
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05-07:00",
	time.DateTime,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15-04-05",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"2006/01/02",
}

// ParseDate parses the date formats seen across SAM.gov extracts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateOnly drops the clock, keeping the calendar date as written.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
