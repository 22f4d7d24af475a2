/*
Package generic provides the core status derivation engine.

PURPOSE:
  This package contains entity-agnostic types and rules for keeping a tracked
  record's status, progress percentage and dates consistent. Whether the record
  is a market research study, a product compliance file or a distribution
  organization, the same engine derives the patch and the date alerts; only
  the per-entity Schema differs.

KEY CONCEPTS IN THIS FILE (types.go):
  - Field: Name of a record field ("research_status", "expiry_date")
  - Snapshot: Immutable view of one record's current field values
  - Patch: Field updates proposed by the engine, applied by the caller
  - Alert: Advisory, non-persisted signal about date-driven urgency

DESIGN PRINCIPLES:
  1. Purity: Snapshot in, patch out. The engine never mutates its input
  2. Caller-supplied time: "today" is an argument, never the wall clock
  3. One engine: Entity differences live in Schema tables, not in branches
  4. Errors as values: Partial results travel with their field errors

USAGE:
  engine := generic.NewEngine(generic.DefaultRegistry)
  result, err := engine.Derive(generic.Input{
      EntityType: "Research",
      Snapshot:   generic.Snapshot{"research_status": "Analysis", "completion_percentage": 0},
      Trigger:    "completion_percentage",
      Today:      generic.NewDate(2025, time.March, 1),
  })
  // result.Patch == {"research_status": "Planning"}

SEE ALSO:
  - schema.go: Per-entity configuration table
  - engine.go: Derive and Defaults
  - alerts.go: Date alert evaluation
*/
package generic

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Field is the name of a record field.
type Field string

// EntityType names one of the registered record kinds.
type EntityType string

// TriggerRefresh is the empty trigger: a full refresh or initial load.
const TriggerRefresh Field = ""

// =============================================================================
// SNAPSHOT - Current field values of one record
// =============================================================================

// Snapshot holds untyped field values as they come out of a document store:
// strings, numbers, Date, time.Time or nil.
type Snapshot map[Field]any

// Clone returns a shallow copy.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// IsSet reports whether the field holds a non-empty value.
func (s Snapshot) IsSet(f Field) bool {
	v, ok := s[f]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case Date:
		return !t.IsZero()
	case *Date:
		return t != nil && !t.IsZero()
	case time.Time:
		return !t.IsZero()
	}
	return true
}

// String returns the field as a trimmed string ("" when unset).
func (s Snapshot) String(f Field) string {
	if !s.IsSet(f) {
		return ""
	}
	switch t := s[f].(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Percentage reads an integer percentage in 0..100.
// Returns set=false when the field is unset.
func (s Snapshot) Percentage(f Field) (value int, set bool, err error) {
	if !s.IsSet(f) {
		return 0, false, nil
	}
	raw := s[f]
	invalid := &InvalidFieldError{Field: f, Value: raw, Err: ErrInvalidPercentage}

	switch t := raw.(type) {
	case int:
		value = t
	case int32:
		value = int(t)
	case int64:
		value = int(t)
	case float64:
		if t != math.Trunc(t) {
			return 0, true, invalid
		}
		value = int(t)
	case json.Number:
		// Same rule as float64: the store decodes 50.0 as a Number.
		n, convErr := t.Float64()
		if convErr != nil || n != math.Trunc(n) || n < 0 || n > 100 {
			return 0, true, invalid
		}
		value = int(n)
	case string:
		n, convErr := strconv.Atoi(strings.TrimSpace(t))
		if convErr != nil {
			return 0, true, invalid
		}
		value = n
	default:
		return 0, true, invalid
	}

	if value < 0 || value > 100 {
		return 0, true, invalid
	}
	return value, true, nil
}

// Date reads a calendar day. Returns set=false when the field is unset.
func (s Snapshot) Date(f Field) (Date, bool, error) {
	if !s.IsSet(f) {
		return Date{}, false, nil
	}
	raw := s[f]
	switch t := raw.(type) {
	case Date:
		return t, true, nil
	case *Date:
		return *t, true, nil
	case time.Time:
		if d := DateOf(t); !d.IsZero() {
			return d, true, nil
		}
		return Date{}, true, &InvalidFieldError{Field: f, Value: raw, Err: ErrInvalidDate}
	case string:
		d, err := ParseDate(t)
		if err != nil {
			return Date{}, true, &InvalidFieldError{Field: f, Value: raw, Err: ErrInvalidDate}
		}
		return d, true, nil
	default:
		return Date{}, true, &InvalidFieldError{Field: f, Value: raw, Err: ErrInvalidDate}
	}
}

// =============================================================================
// PATCH - Proposed field updates
// =============================================================================

// Patch maps fields to new values: int percentages, string statuses, Date dates.
type Patch map[Field]any

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool { return len(p) == 0 }

// Apply returns a new snapshot with the patch applied. The input is not modified.
func (p Patch) Apply(s Snapshot) Snapshot {
	out := s.Clone()
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge copies other's entries into p, other winning on conflicts.
func (p Patch) Merge(other Patch) Patch {
	if p == nil {
		p = Patch{}
	}
	for k, v := range other {
		p[k] = v
	}
	return p
}

// =============================================================================
// PRIORITY - Advisory weight, no derivation effect
// =============================================================================

// Priority is the advisory urgency of a record.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// AllPriorities returns all valid priority values in order.
func AllPriorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
}

// IsPriority reports whether s is exactly one of AllPriorities.
func IsPriority(s string) bool {
	for _, p := range AllPriorities() {
		if string(p) == s {
			return true
		}
	}
	return false
}

// ParsePriority parses a priority, case-insensitive. Empty means Medium.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical, nil
	case "high":
		return PriorityHigh, nil
	case "medium", "":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return PriorityMedium, fmt.Errorf("invalid priority: %q", s)
	}
}

// Weight returns a numeric weight for sorting (lower = more urgent).
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}
