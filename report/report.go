/*
Package report builds dashboard summaries over tracked records.

PURPOSE:
  Aggregates one entity type's records for the dashboard: how many sit in
  each status, the average progress, how far along the portfolio is, and
  which dates fall due soon. Reports read records, they never derive or
  patch anything.

PROGRESS BUCKETS:
  Starting         0..24
  In Progress     25..49
  Advanced        50..74
  Nearly Complete 75..99
  Completed       100

DECIMALS:
  Averages and shares use shopspring/decimal rounded to one place, so a
  report is identical across platforms and re-runs.

SEE ALSO:
  - generic/schema.go: DateFields and Band used here
  - api/handlers.go: GET /api/reports/{entity_type}
*/
package report

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sysmayal/tracking-engine/generic"
)

// DefaultWithinDays is the look-ahead for Upcoming when none is given.
const DefaultWithinDays = 90

// UnsetStatus is the StatusCounts key for records without a status.
const UnsetStatus = "Unset"

// =============================================================================
// TYPES
// =============================================================================

// Summary is the dashboard view of one entity type.
type Summary struct {
	EntityType        generic.EntityType `json:"entity_type"`
	Today             generic.Date       `json:"today"`
	Total             int                `json:"total"`
	StatusCounts      map[string]int     `json:"status_counts"`
	AveragePercentage decimal.Decimal    `json:"average_percentage"`
	CompletedShare    decimal.Decimal    `json:"completed_share"` // percent of records in the completed status
	Buckets           []Bucket           `json:"buckets,omitempty"`
	Overdue           int                `json:"overdue"`
	Upcoming          []Upcoming         `json:"upcoming"`
}

// Bucket counts records whose percentage falls in [Min, Max].
type Bucket struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// Upcoming is one watched date falling within the look-ahead window.
type Upcoming struct {
	RecordID generic.RecordID `json:"record_id"`
	Field    generic.Field    `json:"field"`
	Date     generic.Date     `json:"date"`
	Days     int              `json:"days"`
}

func newBuckets() []Bucket {
	return []Bucket{
		{Label: "Starting", Min: 0, Max: 24},
		{Label: "In Progress", Min: 25, Max: 49},
		{Label: "Advanced", Min: 50, Max: 74},
		{Label: "Nearly Complete", Min: 75, Max: 99},
		{Label: "Completed", Min: 100, Max: 100},
	}
}

// =============================================================================
// SUMMARIZE
// =============================================================================

// Summarize aggregates the records of schema.EntityType. Records of other
// types are ignored. within <= 0 means DefaultWithinDays.
func Summarize(schema generic.Schema, records []generic.Record, today generic.Date, within int) Summary {
	if within <= 0 {
		within = DefaultWithinDays
	}
	s := Summary{
		EntityType:        schema.EntityType,
		Today:             today,
		StatusCounts:      make(map[string]int),
		AveragePercentage: decimal.Zero,
		CompletedShare:    decimal.Zero,
		Upcoming:          []Upcoming{},
	}
	if schema.HasPercentage() {
		s.Buckets = newBuckets()
	}

	sum := decimal.Zero
	scored := 0
	completed := 0
	horizon := today.AddDays(within)

	for _, r := range records {
		if r.EntityType != schema.EntityType {
			continue
		}
		s.Total++

		status := r.Fields.String(schema.StatusField)
		if status == "" {
			status = UnsetStatus
		}
		s.StatusCounts[status]++
		if schema.CompletedStatus != "" && status == schema.CompletedStatus {
			completed++
		}

		if schema.HasPercentage() {
			if pct, set, err := r.Fields.Percentage(schema.PercentageField); err == nil && set {
				sum = sum.Add(decimal.NewFromInt(int64(pct)))
				scored++
				for i := range s.Buckets {
					if pct >= s.Buckets[i].Min && pct <= s.Buckets[i].Max {
						s.Buckets[i].Count++
					}
				}
			}
		}

		for _, field := range schema.DateFields() {
			d, set, err := r.Fields.Date(field)
			if err != nil || !set {
				continue
			}
			switch {
			case d.Before(today):
				s.Overdue++
			case !d.After(horizon):
				s.Upcoming = append(s.Upcoming, Upcoming{
					RecordID: r.ID,
					Field:    field,
					Date:     d,
					Days:     generic.DaysBetween(today, d),
				})
			}
		}
	}

	if scored > 0 {
		s.AveragePercentage = sum.Div(decimal.NewFromInt(int64(scored))).Round(1)
	}
	if s.Total > 0 && schema.CompletedStatus != "" {
		s.CompletedShare = decimal.NewFromInt(int64(completed)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(s.Total))).
			Round(1)
	}

	sort.SliceStable(s.Upcoming, func(i, j int) bool {
		if !s.Upcoming[i].Date.Equal(s.Upcoming[j].Date) {
			return s.Upcoming[i].Date.Before(s.Upcoming[j].Date)
		}
		return s.Upcoming[i].RecordID < s.Upcoming[j].RecordID
	})
	return s
}
