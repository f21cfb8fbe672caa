package record

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the wire format for every timestamp column in the
// tabular exports: day-first with second precision, e.g. "25/12/2025 09:30:00".
const TimestampLayout = "02/01/2006 15:04:05"

// ParseTimestamp parses an export timestamp. The layout is strict: the
// normalizer rejects anything the exports should not contain rather than
// guessing at ambiguous formats.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// ParseOptionalTimestamp parses a timestamp column that may be empty
// (e.g. last_opened). An empty or whitespace-only value yields the zero
// time and no error.
func ParseOptionalTimestamp(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return ParseTimestamp(s)
}

// FormatTimestamp renders a timestamp in the export layout.
// The zero time renders as the empty string, mirroring ParseOptionalTimestamp.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}
