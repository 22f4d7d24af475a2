package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysmayal/tracking-engine/generic"
)

func TestDate_AddMonths_ClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		from   string
		months int
		want   string
	}{
		{"2025-01-31", 1, "2025-02-28"},
		{"2024-01-31", 1, "2024-02-29"},
		{"2024-02-29", 24, "2026-02-28"},
		{"2025-03-15", 24, "2027-03-15"},
		{"2025-12-31", 2, "2026-02-28"},
		{"2025-03-31", -1, "2025-02-28"},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			got := generic.MustParseDate(tt.from).AddMonths(tt.months)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestDaysBetween(t *testing.T) {
	from := generic.NewDate(2025, time.February, 20)

	assert.Equal(t, 9, generic.DaysBetween(from, generic.NewDate(2025, time.March, 1)))
	assert.Equal(t, -9, generic.DaysBetween(generic.NewDate(2025, time.March, 1), from))
	assert.Equal(t, 0, generic.DaysBetween(from, from))
	assert.Equal(t, 366, generic.DaysBetween(generic.NewDate(2024, time.January, 1), generic.NewDate(2025, time.January, 1)))
}

func TestDaysBetween_DistantDates(t *testing.T) {
	// GIVEN: Dates centuries apart, beyond what a time.Duration can hold
	// WHEN: Counting the days between them
	// THEN: The calendar distance is exact in both directions

	today := generic.NewDate(2025, time.March, 1)

	assert.Equal(t, -118763, generic.DaysBetween(today, generic.NewDate(1700, time.January, 1)))
	assert.Equal(t, 118763, generic.DaysBetween(generic.NewDate(1700, time.January, 1), today))
	assert.Equal(t, 182621, generic.DaysBetween(today, generic.NewDate(2525, time.March, 1)))
}

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate(" 2025-03-01 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(generic.NewDate(2025, time.March, 1)))

	d, err = generic.ParseDate("2025-03-01T23:59:59Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", d.String())

	for _, bad := range []string{"", "01/03/2025", "2025-02-30", "tomorrow", "0001-01-01", "0001-01-01T00:00:00Z"} {
		_, err := generic.ParseDate(bad)
		assert.ErrorIs(t, err, generic.ErrInvalidDate, bad)
	}
}

func TestDate_JSON(t *testing.T) {
	type doc struct {
		Expiry generic.Date `json:"expiry"`
		Review generic.Date `json:"review"`
	}

	b, err := json.Marshal(doc{Expiry: generic.NewDate(2025, time.June, 30)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"expiry":"2025-06-30","review":null}`, string(b))

	var got doc
	require.NoError(t, json.Unmarshal([]byte(`{"expiry":"2025-06-30","review":""}`), &got))
	assert.Equal(t, "2025-06-30", got.Expiry.String())
	assert.True(t, got.Review.IsZero())

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"expiry":"June"}`), &got), generic.ErrInvalidDate)
}
