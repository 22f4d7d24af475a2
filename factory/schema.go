/*
Package factory provides schema document to Go conversion.

PURPOSE:
  Converts JSON or YAML schema documents into generic.Schema values. The
  per-entity tables (status defaults, date windows, offsets) stay explicit
  configuration: an operator can override the built-in Research, Compliance
  or Organization table by dropping a document in the schemas directory.

DOCUMENT FORMAT (JSON with comments and trailing commas, or YAML):
  {
    "entity_type": "Research",
    "status_field": "research_status",
    "percentage_field": "completion_percentage",
    "completed_status": "Completed",
    "zero_status": "Planning",
    "statuses": ["Planning", "In Progress", "Completed", "On Hold", "Cancelled"],
    "status_defaults": {
      "In Progress": {"mode": "fixed", "percentage": 30},
      "On Hold":     {"mode": "keep"},
      "Cancelled":   {"mode": "force", "percentage": 0},  // always reset
    },
    "date_rules": [
      {"field": "expiry_date", "kind": "expiry", "window_days": 30}
    ],
    "offset_rules": [
      {"source": "approval_date", "target": "expiry_date", "months": 24}
    ]
  }

KEY FEATURES:
  - hujson.Standardize strips comments and trailing commas before decoding
  - Unknown modes and kinds are rejected by generic.Schema.Validate
  - ToDocument is the inverse, used by "trackctl schema show" and the store

USAGE:
  factory := NewSchemaFactory()
  schema, err := factory.ParseFile("schemas/research.jsonc")
  schemas, err := factory.LoadDir("schemas")
  err = factory.Apply(generic.DefaultRegistry, schemas)

SEE ALSO:
  - generic/schema.go: Schema type definition
  - research/, compliance/, organization/: Built-in schemas
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sysmayal/tracking-engine/generic"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// SchemaDocument is the JSON/YAML representation of a schema.
type SchemaDocument struct {
	EntityType       string                      `json:"entity_type" yaml:"entity_type"`
	Name             string                      `json:"name,omitempty" yaml:"name,omitempty"`
	StatusField      string                      `json:"status_field" yaml:"status_field"`
	PercentageField  string                      `json:"percentage_field,omitempty" yaml:"percentage_field,omitempty"`
	Statuses         []string                    `json:"statuses,omitempty" yaml:"statuses,omitempty"`
	CompletedStatus  string                      `json:"completed_status,omitempty" yaml:"completed_status,omitempty"`
	ZeroStatus       string                      `json:"zero_status,omitempty" yaml:"zero_status,omitempty"`
	StatusDefaults   map[string]StatusDefaultDoc `json:"status_defaults,omitempty" yaml:"status_defaults,omitempty"`
	ReopenPercentage int                         `json:"reopen_percentage,omitempty" yaml:"reopen_percentage,omitempty"`
	DateRules        []DateRuleDoc               `json:"date_rules,omitempty" yaml:"date_rules,omitempty"`
	OffsetRules      []OffsetRuleDoc             `json:"offset_rules,omitempty" yaml:"offset_rules,omitempty"`
	StatusDateRules  []StatusDateRuleDoc         `json:"status_date_rules,omitempty" yaml:"status_date_rules,omitempty"`
	ScoreRules       []ScoreRuleDoc              `json:"score_rules,omitempty" yaml:"score_rules,omitempty"`
	LookupRules      []LookupRuleDoc             `json:"lookup_rules,omitempty" yaml:"lookup_rules,omitempty"`
	LoadDefaults     []LoadDefaultDoc            `json:"load_defaults,omitempty" yaml:"load_defaults,omitempty"`
	Bands            []BandDoc                   `json:"bands,omitempty" yaml:"bands,omitempty"`
}

// StatusDefaultDoc represents a status default percentage.
type StatusDefaultDoc struct {
	Mode       string `json:"mode" yaml:"mode"` // fixed, keep, force
	Percentage int    `json:"percentage,omitempty" yaml:"percentage,omitempty"`
}

type DateRuleDoc struct {
	Field      string `json:"field" yaml:"field"`
	Kind       string `json:"kind" yaml:"kind"` // expiry, review, audit
	WindowDays int    `json:"window_days,omitempty" yaml:"window_days,omitempty"`
}

type OffsetRuleDoc struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Months int    `json:"months,omitempty" yaml:"months,omitempty"`
	Days   int    `json:"days,omitempty" yaml:"days,omitempty"`
}

type StatusDateRuleDoc struct {
	Status string `json:"status" yaml:"status"`
	Target string `json:"target" yaml:"target"`
	Months int    `json:"months,omitempty" yaml:"months,omitempty"`
	Days   int    `json:"days,omitempty" yaml:"days,omitempty"`
}

type ScoreRuleDoc struct {
	Triggers   []string            `json:"triggers" yaml:"triggers"`
	RequireAll []string            `json:"require_all,omitempty" yaml:"require_all,omitempty"`
	Components []ScoreComponentDoc `json:"components" yaml:"components"`
	Cap        int                 `json:"cap,omitempty" yaml:"cap,omitempty"`
}

type ScoreComponentDoc struct {
	Field         string         `json:"field" yaml:"field"`
	Points        map[string]int `json:"points,omitempty" yaml:"points,omitempty"`
	PresentPoints int            `json:"present_points,omitempty" yaml:"present_points,omitempty"`
}

type LookupRuleDoc struct {
	Source string            `json:"source" yaml:"source"`
	Target string            `json:"target" yaml:"target"`
	Values map[string]string `json:"values" yaml:"values"`
}

type LoadDefaultDoc struct {
	Field     string `json:"field" yaml:"field"`
	Value     string `json:"value,omitempty" yaml:"value,omitempty"`
	FromToday bool   `json:"from_today,omitempty" yaml:"from_today,omitempty"`
	Months    int    `json:"months,omitempty" yaml:"months,omitempty"`
	Days      int    `json:"days,omitempty" yaml:"days,omitempty"`
}

type BandDoc struct {
	Min   int    `json:"min" yaml:"min"`
	Color string `json:"color" yaml:"color"`
}

// =============================================================================
// SCHEMA FACTORY
// =============================================================================

// SchemaFactory converts schema documents to generic.Schema.
type SchemaFactory struct{}

// NewSchemaFactory creates a new schema factory.
func NewSchemaFactory() *SchemaFactory {
	return &SchemaFactory{}
}

// ParseJSON parses a JSON (or JSON with comments) document.
func (f *SchemaFactory) ParseJSON(data []byte) (generic.Schema, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return generic.Schema{}, fmt.Errorf("failed to parse schema JSON: %w", err)
	}
	var doc SchemaDocument
	if err := json.Unmarshal(standardized, &doc); err != nil {
		return generic.Schema{}, fmt.Errorf("failed to parse schema JSON: %w", err)
	}
	return f.FromDocument(doc)
}

// ParseYAML parses a YAML document.
func (f *SchemaFactory) ParseYAML(data []byte) (generic.Schema, error) {
	var doc SchemaDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return generic.Schema{}, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	return f.FromDocument(doc)
}

// ParseFile picks the format from the file extension.
func (f *SchemaFactory) ParseFile(path string) (generic.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return generic.Schema{}, fmt.Errorf("read schema %s: %w", path, err)
	}
	var schema generic.Schema
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		schema, err = f.ParseYAML(data)
	case ".json", ".jsonc", ".hujson":
		schema, err = f.ParseJSON(data)
	default:
		return generic.Schema{}, fmt.Errorf("%w: unsupported schema file %s", generic.ErrInvalidSchema, path)
	}
	if err != nil {
		return generic.Schema{}, fmt.Errorf("%s: %w", path, err)
	}
	return schema, nil
}

// LoadDir parses every schema document in dir, ordered by file name.
// Files with other extensions are ignored.
func (f *SchemaFactory) LoadDir(dir string) ([]generic.Schema, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json", ".jsonc", ".hujson":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	schemas := make([]generic.Schema, 0, len(names))
	for _, name := range names {
		s, err := f.ParseFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

// Apply registers the schemas, replacing built-in tables of the same entity type.
func (f *SchemaFactory) Apply(registry *generic.Registry, schemas []generic.Schema) error {
	for _, s := range schemas {
		if err := registry.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// FromDocument converts a SchemaDocument to a validated generic.Schema.
func (f *SchemaFactory) FromDocument(doc SchemaDocument) (generic.Schema, error) {
	s := generic.Schema{
		EntityType:       generic.EntityType(doc.EntityType),
		Name:             doc.Name,
		StatusField:      generic.Field(doc.StatusField),
		PercentageField:  generic.Field(doc.PercentageField),
		Statuses:         doc.Statuses,
		CompletedStatus:  doc.CompletedStatus,
		ZeroStatus:       doc.ZeroStatus,
		ReopenPercentage: doc.ReopenPercentage,
	}

	if len(doc.StatusDefaults) > 0 {
		s.StatusDefaults = make(map[string]generic.StatusDefault, len(doc.StatusDefaults))
		for status, d := range doc.StatusDefaults {
			s.StatusDefaults[status] = generic.StatusDefault{Mode: generic.DefaultMode(d.Mode), Percentage: d.Percentage}
		}
	}
	for _, r := range doc.DateRules {
		s.DateRules = append(s.DateRules, generic.DateRule{
			Field:      generic.Field(r.Field),
			Kind:       generic.DateRuleKind(r.Kind),
			WindowDays: r.WindowDays,
		})
	}
	for _, r := range doc.OffsetRules {
		s.OffsetRules = append(s.OffsetRules, generic.OffsetRule{
			Source: generic.Field(r.Source),
			Target: generic.Field(r.Target),
			Months: r.Months,
			Days:   r.Days,
		})
	}
	for _, r := range doc.StatusDateRules {
		s.StatusDateRules = append(s.StatusDateRules, generic.StatusDateRule{
			Status: r.Status,
			Target: generic.Field(r.Target),
			Months: r.Months,
			Days:   r.Days,
		})
	}
	for _, r := range doc.ScoreRules {
		rule := generic.ScoreRule{
			Triggers:   toFields(r.Triggers),
			RequireAll: toFields(r.RequireAll),
			Cap:        r.Cap,
		}
		for _, c := range r.Components {
			rule.Components = append(rule.Components, generic.ScoreComponent{
				Field:         generic.Field(c.Field),
				Points:        c.Points,
				PresentPoints: c.PresentPoints,
			})
		}
		s.ScoreRules = append(s.ScoreRules, rule)
	}
	for _, r := range doc.LookupRules {
		s.LookupRules = append(s.LookupRules, generic.LookupRule{
			Source: generic.Field(r.Source),
			Target: generic.Field(r.Target),
			Values: r.Values,
		})
	}
	for _, d := range doc.LoadDefaults {
		s.LoadDefaults = append(s.LoadDefaults, generic.LoadDefault{
			Field:     generic.Field(d.Field),
			Value:     d.Value,
			FromToday: d.FromToday,
			Months:    d.Months,
			Days:      d.Days,
		})
	}
	for _, b := range doc.Bands {
		s.Bands = append(s.Bands, generic.Band{Min: b.Min, Color: b.Color})
	}

	if err := s.Validate(); err != nil {
		return generic.Schema{}, err
	}
	return s, nil
}

// ToDocument converts a generic.Schema to a SchemaDocument.
func (f *SchemaFactory) ToDocument(s generic.Schema) SchemaDocument {
	doc := SchemaDocument{
		EntityType:       string(s.EntityType),
		Name:             s.Name,
		StatusField:      string(s.StatusField),
		PercentageField:  string(s.PercentageField),
		Statuses:         s.Statuses,
		CompletedStatus:  s.CompletedStatus,
		ZeroStatus:       s.ZeroStatus,
		ReopenPercentage: s.ReopenPercentage,
	}

	if len(s.StatusDefaults) > 0 {
		doc.StatusDefaults = make(map[string]StatusDefaultDoc, len(s.StatusDefaults))
		for status, d := range s.StatusDefaults {
			doc.StatusDefaults[status] = StatusDefaultDoc{Mode: string(d.Mode), Percentage: d.Percentage}
		}
	}
	for _, r := range s.DateRules {
		doc.DateRules = append(doc.DateRules, DateRuleDoc{Field: string(r.Field), Kind: string(r.Kind), WindowDays: r.WindowDays})
	}
	for _, r := range s.OffsetRules {
		doc.OffsetRules = append(doc.OffsetRules, OffsetRuleDoc{Source: string(r.Source), Target: string(r.Target), Months: r.Months, Days: r.Days})
	}
	for _, r := range s.StatusDateRules {
		doc.StatusDateRules = append(doc.StatusDateRules, StatusDateRuleDoc{Status: r.Status, Target: string(r.Target), Months: r.Months, Days: r.Days})
	}
	for _, r := range s.ScoreRules {
		rd := ScoreRuleDoc{Triggers: fromFields(r.Triggers), RequireAll: fromFields(r.RequireAll), Cap: r.Cap}
		for _, c := range r.Components {
			rd.Components = append(rd.Components, ScoreComponentDoc{Field: string(c.Field), Points: c.Points, PresentPoints: c.PresentPoints})
		}
		doc.ScoreRules = append(doc.ScoreRules, rd)
	}
	for _, r := range s.LookupRules {
		doc.LookupRules = append(doc.LookupRules, LookupRuleDoc{Source: string(r.Source), Target: string(r.Target), Values: r.Values})
	}
	for _, d := range s.LoadDefaults {
		doc.LoadDefaults = append(doc.LoadDefaults, LoadDefaultDoc{
			Field: string(d.Field), Value: d.Value, FromToday: d.FromToday, Months: d.Months, Days: d.Days,
		})
	}
	for _, b := range s.Bands {
		doc.Bands = append(doc.Bands, BandDoc{Min: b.Min, Color: b.Color})
	}
	return doc
}

// MarshalJSON renders a schema as an indented JSON document.
func (f *SchemaFactory) MarshalJSON(s generic.Schema) ([]byte, error) {
	return json.MarshalIndent(f.ToDocument(s), "", "  ")
}

// =============================================================================
// HELPERS
// =============================================================================

func toFields(names []string) []generic.Field {
	if len(names) == 0 {
		return nil
	}
	out := make([]generic.Field, len(names))
	for i, n := range names {
		out[i] = generic.Field(n)
	}
	return out
}

func fromFields(fields []generic.Field) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}
