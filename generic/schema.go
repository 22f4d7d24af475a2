/*
schema.go - Per-entity derivation tables

PURPOSE:
  Defines the configuration that makes the single engine behave like the
  Research, Compliance or Organization form logic. A Schema is the contract
  between an entity's status vocabulary and the derived fields.

KEY CONCEPTS:
  - StatusField / PercentageField: The pair kept consistent by the engine
  - CompletedStatus: percentage 100 <=> this status
  - ZeroStatus: percentage 0 => this status (percentage-triggered only)
  - StatusDefaults: Status -> default percentage (fixed, keep or force)
  - DateRules: Date fields that raise Expired/ExpiringSoon or Overdue/DueSoon
  - OffsetRules: Derive an unset date from another (approval + 24 months)
  - StatusDateRules: Derive an unset date when a status is chosen
  - ScoreRules: Factor score for an unset percentage
  - LookupRules: Fill an unset field from another field's value
  - LoadDefaults: Values for unset fields when a record is created

DEFAULT MODES:
  DefaultFixed:
    - Applied only when the percentage is unset or zero
    - A manually entered nonzero percentage wins over the status

  DefaultKeep:
    - The percentage on file stays ("On Hold")

  DefaultForce:
    - Applied whenever it differs ("Cancelled" -> 0)

EXAMPLE:
  schema := Schema{
      EntityType:      "Research",
      StatusField:     "research_status",
      PercentageField: "completion_percentage",
      CompletedStatus: "Completed",
      ZeroStatus:      "Planning",
      StatusDefaults: map[string]StatusDefault{
          "Analysis":  Fixed(70),
          "On Hold":   Keep(),
          "Cancelled": Force(0),
      },
  }

SEE ALSO:
  - engine.go: Applies these tables
  - factory/schema.go: JSON/YAML documents for schemas
*/
package generic

import (
	"fmt"
	"sort"
)

// =============================================================================
// STATUS DEFAULTS
// =============================================================================

// DefaultMode controls when a status default percentage is applied.
type DefaultMode string

const (
	DefaultFixed DefaultMode = "fixed" // only when percentage unset or zero
	DefaultKeep  DefaultMode = "keep"  // percentage on file stays
	DefaultForce DefaultMode = "force" // always, when different
)

// StatusDefault is the percentage a status implies.
type StatusDefault struct {
	Mode       DefaultMode
	Percentage int
}

func Fixed(pct int) StatusDefault { return StatusDefault{Mode: DefaultFixed, Percentage: pct} }
func Keep() StatusDefault         { return StatusDefault{Mode: DefaultKeep} }
func Force(pct int) StatusDefault { return StatusDefault{Mode: DefaultForce, Percentage: pct} }

// =============================================================================
// DERIVED FIELD RULES
// =============================================================================

// OffsetRule sets Target = Source + Months/Days when Target is unset.
// Fires when Source is the trigger or on refresh.
type OffsetRule struct {
	Source Field
	Target Field
	Months int
	Days   int
}

// StatusDateRule sets Target = today + Months/Days when the status becomes
// Status and Target is unset. Fires on the status trigger.
type StatusDateRule struct {
	Status string
	Target Field
	Months int
	Days   int
}

// ScoreComponent adds Points[value] for the field's value, plus PresentPoints
// when the field is set at all.
type ScoreComponent struct {
	Field         Field
	Points        map[string]int
	PresentPoints int
}

// ScoreRule computes a factor score for an unset or zero percentage.
// It fires on any of Triggers, and only when every RequireAll field is set.
type ScoreRule struct {
	Triggers   []Field
	RequireAll []Field
	Components []ScoreComponent
	Cap        int
}

// LookupRule sets Target = Values[Source] when Target is unset.
// Fires on the Source trigger.
type LookupRule struct {
	Source Field
	Target Field
	Values map[string]string
}

// LoadDefault fills an unset field when a record is created.
// Value is a literal; with FromToday the value is today + Months/Days.
type LoadDefault struct {
	Field     Field
	Value     string
	FromToday bool
	Months    int
	Days      int
}

// Band maps a minimum percentage to an indicator color.
type Band struct {
	Min   int
	Color string
}

// =============================================================================
// SCHEMA
// =============================================================================

// Schema is the complete derivation table for one entity type.
type Schema struct {
	EntityType EntityType
	Name       string

	StatusField     Field
	PercentageField Field // empty: entity has no progress percentage
	Statuses        []string

	CompletedStatus string
	ZeroStatus      string
	StatusDefaults  map[string]StatusDefault

	// ReopenPercentage replaces a stale 100 when the status moves off the
	// completed status into a keep-mode status.
	ReopenPercentage int

	DateRules       []DateRule
	OffsetRules     []OffsetRule
	StatusDateRules []StatusDateRule
	ScoreRules      []ScoreRule
	LookupRules     []LookupRule
	LoadDefaults    []LoadDefault

	Bands []Band
}

// HasPercentage reports whether the entity tracks a progress percentage.
func (s Schema) HasPercentage() bool { return s.PercentageField != "" }

// IsStatus reports whether v belongs to the status enum. An empty enum accepts anything.
func (s Schema) IsStatus(v string) bool {
	if len(s.Statuses) == 0 {
		return true
	}
	for _, st := range s.Statuses {
		if st == v {
			return true
		}
	}
	return false
}

// DateFields returns the fields watched by date rules, in rule order.
func (s Schema) DateFields() []Field {
	fields := make([]Field, 0, len(s.DateRules))
	for _, r := range s.DateRules {
		fields = append(fields, r.Field)
	}
	return fields
}

// Band returns the indicator color for a percentage, or "" without bands.
func (s Schema) Band(pct int) string {
	bands := make([]Band, len(s.Bands))
	copy(bands, s.Bands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Min > bands[j].Min })
	for _, b := range bands {
		if pct >= b.Min {
			return b.Color
		}
	}
	return ""
}

// Validate checks the table for internal consistency.
func (s Schema) Validate() error {
	if s.EntityType == "" {
		return fmt.Errorf("%w: entity type is required", ErrInvalidSchema)
	}
	if s.StatusField == "" {
		return fmt.Errorf("%w: %s: status field is required", ErrInvalidSchema, s.EntityType)
	}
	if s.HasPercentage() && s.CompletedStatus == "" {
		return fmt.Errorf("%w: %s: completed status is required with a percentage field", ErrInvalidSchema, s.EntityType)
	}
	for _, st := range []string{s.CompletedStatus, s.ZeroStatus} {
		if st != "" && !s.IsStatus(st) {
			return fmt.Errorf("%w: %s: status %q not in enum", ErrInvalidSchema, s.EntityType, st)
		}
	}
	for status, def := range s.StatusDefaults {
		if !s.IsStatus(status) {
			return fmt.Errorf("%w: %s: default for unknown status %q", ErrInvalidSchema, s.EntityType, status)
		}
		switch def.Mode {
		case DefaultFixed, DefaultKeep, DefaultForce:
		default:
			return fmt.Errorf("%w: %s: status %q has mode %q", ErrInvalidSchema, s.EntityType, status, def.Mode)
		}
		if def.Percentage < 0 || def.Percentage > 100 {
			return fmt.Errorf("%w: %s: status %q default %d outside 0..100", ErrInvalidSchema, s.EntityType, status, def.Percentage)
		}
	}
	if s.ReopenPercentage < 0 || s.ReopenPercentage > 100 {
		return fmt.Errorf("%w: %s: reopen percentage outside 0..100", ErrInvalidSchema, s.EntityType)
	}
	for _, r := range s.DateRules {
		if r.Field == "" {
			return fmt.Errorf("%w: %s: date rule without field", ErrInvalidSchema, s.EntityType)
		}
		switch r.Kind {
		case DateExpiry, DateReview, DateAudit:
		default:
			return fmt.Errorf("%w: %s: date rule %s has kind %q", ErrInvalidSchema, s.EntityType, r.Field, r.Kind)
		}
	}
	for _, r := range s.OffsetRules {
		if r.Source == "" || r.Target == "" {
			return fmt.Errorf("%w: %s: offset rule needs source and target", ErrInvalidSchema, s.EntityType)
		}
	}
	for _, r := range s.StatusDateRules {
		if r.Target == "" || !s.IsStatus(r.Status) {
			return fmt.Errorf("%w: %s: status date rule for %q is incomplete", ErrInvalidSchema, s.EntityType, r.Status)
		}
	}
	if len(s.ScoreRules) > 0 && !s.HasPercentage() {
		return fmt.Errorf("%w: %s: score rules need a percentage field", ErrInvalidSchema, s.EntityType)
	}
	for _, r := range s.LookupRules {
		if r.Source == "" || r.Target == "" {
			return fmt.Errorf("%w: %s: lookup rule needs source and target", ErrInvalidSchema, s.EntityType)
		}
	}
	return nil
}
