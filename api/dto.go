/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Errors:
    ErrorResponse

  Derive:
    DeriveRequest, DeriveResponse, FieldErrorDTO

  Entities:
    EntityDTO (wraps factory.SchemaDocument)

  Records:
    RecordDTO, CreateRecordRequest, EditRecordRequest, RecordResponse,
    RecordAlertsResponse, DerivationDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

DATES:
  Dates travel as "YYYY-MM-DD" strings. An empty "today" means the
  server's current day.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/schema.go: SchemaDocument type
*/
package api

import (
	"time"

	"github.com/sysmayal/tracking-engine/factory"
	"github.com/sysmayal/tracking-engine/generic"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DERIVE
// =============================================================================

// DeriveRequest is the stateless derive contract.
type DeriveRequest struct {
	EntityType   generic.EntityType `json:"entity_type"`
	Snapshot     generic.Snapshot   `json:"snapshot"`
	TriggerField generic.Field      `json:"trigger_field"`
	Today        string             `json:"today"`
}

// DeriveResponse carries the patch, the alerts and any per-field errors.
type DeriveResponse struct {
	Patch  generic.Patch   `json:"patch"`
	Alerts []generic.Alert `json:"alerts"`
	Errors []FieldErrorDTO `json:"errors"`
}

// FieldErrorDTO is one field the engine skipped.
type FieldErrorDTO struct {
	Field   generic.Field `json:"field"`
	Value   any           `json:"value,omitempty"`
	Message string        `json:"message"`
}

// =============================================================================
// ENTITIES
// =============================================================================

// EntityDTO describes one registered entity type.
type EntityDTO struct {
	EntityType generic.EntityType     `json:"entity_type"`
	Schema     factory.SchemaDocument `json:"schema"`
	Override   bool                   `json:"override"`
}

// =============================================================================
// RECORDS
// =============================================================================

// RecordDTO represents a stored record in API responses.
type RecordDTO struct {
	ID         generic.RecordID   `json:"id"`
	EntityType generic.EntityType `json:"entity_type"`
	Fields     generic.Snapshot   `json:"fields"`
	Band       string             `json:"band,omitempty"`
	Priority   generic.Priority   `json:"priority,omitempty"`
	CreatedAt  string             `json:"created_at"`
	UpdatedAt  string             `json:"updated_at,omitempty"`
}

// CreateRecordRequest is the request to create a record.
type CreateRecordRequest struct {
	EntityType generic.EntityType `json:"entity_type"`
	Fields     generic.Snapshot   `json:"fields"`
	Today      string             `json:"today"`
}

// EditRecordRequest is one user edit. A null value clears the field.
type EditRecordRequest struct {
	Field generic.Field `json:"field"`
	Value any           `json:"value"`
	Today string        `json:"today"`
}

// RecordResponse is returned by create and edit.
type RecordResponse struct {
	Record RecordDTO       `json:"record"`
	Patch  generic.Patch   `json:"patch"`
	Alerts []generic.Alert `json:"alerts"`
	Errors []FieldErrorDTO `json:"errors"`
}

// RecordAlertsResponse is a refresh derivation of one stored record.
type RecordAlertsResponse struct {
	RecordID generic.RecordID `json:"record_id"`
	Today    generic.Date     `json:"today"`
	Alerts   []generic.Alert  `json:"alerts"`
	Errors   []FieldErrorDTO  `json:"errors"`
}

// DerivationDTO is one audit log entry.
type DerivationDTO struct {
	ID      string          `json:"id"`
	Trigger generic.Field   `json:"trigger"`
	Edit    generic.Patch   `json:"edit"`
	Patch   generic.Patch   `json:"patch"`
	Alerts  []generic.Alert `json:"alerts"`
	Errors  []string        `json:"errors"`
	Today   generic.Date    `json:"today"`
	At      string          `json:"at"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	EntityType  generic.EntityType `json:"entity_type"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	Today      string `json:"today"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRecordDTO(schema generic.Schema, r generic.Record) RecordDTO {
	dto := RecordDTO{
		ID:         r.ID,
		EntityType: r.EntityType,
		Fields:     r.Fields,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
	}
	if !r.UpdatedAt.IsZero() {
		dto.UpdatedAt = r.UpdatedAt.Format(time.RFC3339)
	}
	if schema.HasPercentage() {
		if pct, set, err := r.Fields.Percentage(schema.PercentageField); err == nil && set {
			dto.Band = schema.Band(pct)
		}
	}
	if p, err := generic.ParsePriority(r.Fields.String(priorityField)); err == nil && r.Fields.IsSet(priorityField) {
		dto.Priority = p
	}
	return dto
}

func toFieldErrorDTOs(err error) []FieldErrorDTO {
	out := []FieldErrorDTO{}
	for _, fe := range generic.FieldErrors(err) {
		out = append(out, FieldErrorDTO{Field: fe.Field, Value: fe.Value, Message: fe.Error()})
	}
	return out
}

func toDerivationDTO(e generic.DerivationEntry) DerivationDTO {
	return DerivationDTO{
		ID:      e.ID,
		Trigger: e.Trigger,
		Edit:    e.Edit,
		Patch:   e.Patch,
		Alerts:  orEmptyAlerts(e.Alerts),
		Errors:  e.Errors,
		Today:   e.Today,
		At:      e.At.Format(time.RFC3339),
	}
}

func orEmptyAlerts(alerts []generic.Alert) []generic.Alert {
	if alerts == nil {
		return []generic.Alert{}
	}
	return alerts
}

// LastSweepResponse is the last sweep plus the next scheduled run, when the
// scheduler is running.
type LastSweepResponse struct {
	SweepResult
	NextRun *time.Time `json:"next_run,omitempty"`
}
