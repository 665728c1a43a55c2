package sqlite

import (
	"database/sql"
	"time"
)

// timestampLayout is fixed-width UTC so text columns sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// formatTimestamp renders t in timestampLayout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// formatNullableTime is formatTimestamp with NULL for the zero time.
func formatNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTimestamp(t)
}

// parseNullableTime reads a timestamp column. Values written by older
// builds in plain RFC3339 still parse. Anything else becomes the zero time.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timestampLayout, s.String); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s.String); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
