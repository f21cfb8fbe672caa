package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp_DayFirst(t *testing.T) {
	// 03/04 must be the 3rd of April, not the 4th of March.
	got, err := ParseTimestamp("03/04/2025 10:00:05")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, time.April, 3, 10, 0, 5, 0, time.UTC), got)
}

func TestParseTimestamp_TrimsWhitespace(t *testing.T) {
	got, err := ParseTimestamp("  25/12/2025 09:30:00 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.December, 25, 9, 30, 0, 0, time.UTC), got)
}

func TestParseTimestamp_RejectsOtherLayouts(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"iso date", "2025-04-03 10:00:05"},
		{"missing seconds", "03/04/2025 10:00"},
		{"empty", ""},
		{"garbage", "not a date"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTimestamp(tc.input)
			assert.Error(t, err)
		})
	}
}

func TestParseOptionalTimestamp_EmptyIsZero(t *testing.T) {
	got, err := ParseOptionalTimestamp("   ")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestParseOptionalTimestamp_NonEmptyStillStrict(t *testing.T) {
	_, err := ParseOptionalTimestamp("2025-01-01")
	assert.Error(t, err)
}

func TestFormatTimestamp_RoundTrip(t *testing.T) {
	ts := time.Date(2025, time.April, 3, 10, 0, 5, 0, time.UTC)

	formatted := FormatTimestamp(ts)
	assert.Equal(t, "03/04/2025 10:00:05", formatted)

	back, err := ParseTimestamp(formatted)
	require.NoError(t, err)
	assert.True(t, ts.Equal(back))
}

func TestFormatTimestamp_ZeroIsEmpty(t *testing.T) {
	assert.Equal(t, "", FormatTimestamp(time.Time{}))
}
