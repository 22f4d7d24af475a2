/*
handlers.go - HTTP API handlers for the tracking engine

PURPOSE:
  Exposes the derivation engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine and the record store.

ENDPOINTS:
  Entities:
    GET    /api/entities                  List registered schemas
    GET    /api/entities/{entity_type}    Get one schema
    PUT    /api/entities/{entity_type}    Store a schema override

  Derive:
    POST   /api/derive                    Stateless derive (no storage)

  Records:
    GET    /api/records                   List records (?entity_type=)
    POST   /api/records                   Create record (defaults + refresh)
    GET    /api/records/{id}              Get record
    PATCH  /api/records/{id}              Apply one user edit and derive
    GET    /api/records/{id}/alerts       Refresh-derive alerts (?today=)
    GET    /api/records/{id}/derivations  Derivation audit log

  Alerts and reports:
    GET    /api/alerts                    Sweep all records (?today=)
    GET    /api/alerts/last-sweep         Last scheduler sweep
    GET    /api/reports/{entity_type}     Dashboard summary (?today=&within=)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Records and derivation log (transactional)
  - Engine/Registry: Schema lookup and derivation
  - Schemas: Optional schema override storage
  - Scheduler: Optional, for the last sweep

REQUEST FLOW (edit):
  1. Parse the edit {field, value, today}
  2. Apply the edit to the stored snapshot
  3. Derive with the edited field as trigger
  4. Apply edit + patch and append the audit entry in one transaction
  5. Return record, patch, alerts and skipped fields

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Unknown entity type, malformed dates, invalid schema
  - 404: Record or schema not found
  - 500: Internal errors
  Per-field derivation errors are not request failures: they are listed
  under "errors" next to the partial patch.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Alert sweeps
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sysmayal/tracking-engine/factory"
	"github.com/sysmayal/tracking-engine/generic"
	"github.com/sysmayal/tracking-engine/report"
	"github.com/sysmayal/tracking-engine/store/sqlite"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the handlers need.
type Store interface {
	generic.TxStore
	Reset(ctx context.Context) error
}

// SchemaStore persists schema overrides.
type SchemaStore interface {
	SaveSchema(ctx context.Context, schema generic.Schema) error
	GetSchema(ctx context.Context, entityType generic.EntityType) (*sqlite.SchemaRecord, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         Store
	Schemas       SchemaStore // nil disables PUT /api/entities/{entity_type}
	Registry      *generic.Registry
	Engine        *generic.Engine
	SchemaFactory *factory.SchemaFactory
	Scheduler     *AlertScheduler
	Logger        *zap.Logger

	// Now is the server clock; "today" defaults to its calendar day.
	Now func() time.Time

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler over the given store and registry.
func NewHandler(store Store, registry *generic.Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:         store,
		Registry:      registry,
		Engine:        generic.NewEngine(registry),
		SchemaFactory: factory.NewSchemaFactory(),
		Logger:        logger.Named("api"),
		Now:           time.Now,
	}
}

// =============================================================================
// ENTITY HANDLERS
// =============================================================================

// ListEntities returns all registered schemas.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	schemas := h.Registry.Schemas()
	dtos := make([]EntityDTO, len(schemas))
	for i, s := range schemas {
		dtos[i] = h.toEntityDTO(r.Context(), s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEntity returns one schema.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	schema, err := h.Registry.Lookup(generic.EntityType(chi.URLParam(r, "entity_type")))
	if err != nil {
		h.fail(w, "Unknown entity type", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toEntityDTO(r.Context(), schema))
}

// PutEntity stores a schema override and registers it.
func (h *Handler) PutEntity(w http.ResponseWriter, r *http.Request) {
	if h.Schemas == nil {
		writeError(w, http.StatusNotImplemented, "Schema overrides are not stored by this server", nil)
		return
	}
	entityType := generic.EntityType(chi.URLParam(r, "entity_type"))

	var doc factory.SchemaDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if doc.EntityType == "" {
		doc.EntityType = string(entityType)
	}
	if generic.EntityType(doc.EntityType) != entityType {
		writeError(w, http.StatusBadRequest, "entity_type does not match the URL", nil)
		return
	}

	schema, err := h.SchemaFactory.FromDocument(doc)
	if err != nil {
		h.fail(w, "Invalid schema", err)
		return
	}
	if err := h.Schemas.SaveSchema(r.Context(), schema); err != nil {
		h.fail(w, "Failed to save schema", err)
		return
	}
	if err := h.Registry.Register(schema); err != nil {
		h.fail(w, "Failed to register schema", err)
		return
	}
	h.Logger.Info("schema override applied", zap.String("entity_type", string(entityType)))
	writeJSON(w, http.StatusOK, h.toEntityDTO(r.Context(), schema))
}

func (h *Handler) toEntityDTO(ctx context.Context, s generic.Schema) EntityDTO {
	dto := EntityDTO{EntityType: s.EntityType, Schema: h.SchemaFactory.ToDocument(s)}
	if h.Schemas != nil {
		if _, err := h.Schemas.GetSchema(ctx, s.EntityType); err == nil {
			dto.Override = true
		}
	}
	return dto
}

// =============================================================================
// DERIVE HANDLER
// =============================================================================

// Derive runs the engine on a posted snapshot. Nothing is stored.
func (h *Handler) Derive(w http.ResponseWriter, r *http.Request) {
	var req DeriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	today, err := h.parseToday(req.Today)
	if err != nil {
		h.fail(w, "Invalid today", err)
		return
	}
	if req.Snapshot == nil {
		req.Snapshot = generic.Snapshot{}
	}

	result, err := h.Engine.Derive(generic.Input{
		EntityType: req.EntityType,
		Snapshot:   req.Snapshot,
		Trigger:    req.TriggerField,
		Today:      today,
	})
	if result == nil {
		h.fail(w, "Derivation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, DeriveResponse{
		Patch:  result.Patch,
		Alerts: orEmptyAlerts(result.Alerts),
		Errors: toFieldErrorDTOs(err),
	})
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListRecords returns all records, optionally filtered by entity_type.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	filter := generic.RecordFilter{EntityType: generic.EntityType(r.URL.Query().Get("entity_type"))}
	records, err := h.Store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}

	dtos := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		schema, _ := h.Registry.Lookup(rec.EntityType)
		dtos = append(dtos, toRecordDTO(schema, rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRecord returns one record.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.Get(r.Context(), generic.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Record not found", err)
		return
	}
	schema, _ := h.Registry.Lookup(rec.EntityType)
	writeJSON(w, http.StatusOK, toRecordDTO(schema, rec))
}

// CreateRecord fills load defaults, refresh-derives and stores a new record.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	today, err := h.parseToday(req.Today)
	if err != nil {
		h.fail(w, "Invalid today", err)
		return
	}

	rec, result, err := h.createRecord(r.Context(), req.EntityType, req.Fields, today)
	if result == nil {
		h.fail(w, "Failed to create record", err)
		return
	}

	schema, _ := h.Registry.Lookup(rec.EntityType)
	writeJSON(w, http.StatusCreated, RecordResponse{
		Record: toRecordDTO(schema, rec),
		Patch:  result.Patch,
		Alerts: orEmptyAlerts(result.Alerts),
		Errors: toFieldErrorDTOs(err),
	})
}

// createRecord returns a nil result on fatal errors. A non-nil result may
// come with per-field errors.
func (h *Handler) createRecord(ctx context.Context, entityType generic.EntityType, fields generic.Snapshot, today generic.Date) (generic.Record, *generic.Result, error) {
	if fields == nil {
		fields = generic.Snapshot{}
	}
	defaults, err := h.Engine.Defaults(entityType, fields, today)
	if err != nil {
		return generic.Record{}, nil, err
	}
	schema, err := h.Engine.Registry.Lookup(entityType)
	if err != nil {
		return generic.Record{}, nil, err
	}
	if err := validateFields(schema, fields); err != nil {
		return generic.Record{}, nil, err
	}
	snap := defaults.Apply(fields)

	result, deriveErr := h.Engine.Derive(generic.Input{
		EntityType: entityType,
		Snapshot:   snap,
		Trigger:    generic.TriggerRefresh,
		Today:      today,
	})
	if result == nil {
		return generic.Record{}, nil, deriveErr
	}

	now := h.Now().UTC()
	rec := generic.Record{
		ID:         generic.RecordID(uuid.NewString()),
		EntityType: entityType,
		Fields:     result.Patch.Apply(snap),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = h.Store.WithTx(ctx, func(tx generic.Store) error {
		if err := tx.Save(ctx, rec); err != nil {
			return err
		}
		return tx.Derivations().Append(ctx, generic.DerivationEntry{
			ID:       uuid.NewString(),
			RecordID: rec.ID,
			Trigger:  generic.TriggerRefresh,
			Edit:     defaults,
			Patch:    result.Patch,
			Alerts:   result.Alerts,
			Errors:   errorStrings(deriveErr),
			Today:    today,
			At:       now,
		})
	})
	if err != nil {
		return generic.Record{}, nil, err
	}

	h.Logger.Debug("record created",
		zap.String("record_id", string(rec.ID)),
		zap.String("entity_type", string(entityType)),
		zap.Int("alerts", len(result.Alerts)))
	return rec, result, deriveErr
}

// EditRecord applies one user edit, derives with the edited field as
// trigger and stores edit and patch together.
func (h *Handler) EditRecord(w http.ResponseWriter, r *http.Request) {
	id := generic.RecordID(chi.URLParam(r, "id"))

	var req EditRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.Field == "" {
		writeError(w, http.StatusBadRequest, "field is required", nil)
		return
	}
	today, err := h.parseToday(req.Today)
	if err != nil {
		h.fail(w, "Invalid today", err)
		return
	}

	rec, result, deriveErr, err := h.editRecord(r.Context(), id, req.Field, req.Value, today)
	if err != nil {
		h.fail(w, "Failed to edit record", err)
		return
	}

	h.Logger.Debug("record edited",
		zap.String("record_id", string(id)),
		zap.String("field", string(req.Field)),
		zap.Int("patched", len(result.Patch)))

	schema, _ := h.Registry.Lookup(rec.EntityType)
	writeJSON(w, http.StatusOK, RecordResponse{
		Record: toRecordDTO(schema, rec),
		Patch:  result.Patch,
		Alerts: orEmptyAlerts(result.Alerts),
		Errors: toFieldErrorDTOs(deriveErr),
	})
}

// editRecord returns the stored record and the engine result. deriveErr
// carries per-field errors of a partial derivation; err is fatal.
func (h *Handler) editRecord(ctx context.Context, id generic.RecordID, field generic.Field, value any, today generic.Date) (rec generic.Record, result *generic.Result, deriveErr error, err error) {
	err = h.Store.WithTx(ctx, func(tx generic.Store) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}

		edit := generic.Patch{field: value}
		schema, err := h.Engine.Registry.Lookup(current.EntityType)
		if err != nil {
			return err
		}
		if err := validateFields(schema, generic.Snapshot(edit)); err != nil {
			return err
		}
		result, deriveErr = h.Engine.Derive(generic.Input{
			EntityType: current.EntityType,
			Snapshot:   edit.Apply(current.Fields),
			Trigger:    field,
			Today:      today,
		})
		if result == nil {
			return deriveErr
		}

		now := h.Now().UTC()
		applied := generic.Patch{}.Merge(edit).Merge(result.Patch)
		rec, err = tx.ApplyPatch(ctx, id, applied, now)
		if err != nil {
			return err
		}
		return tx.Derivations().Append(ctx, generic.DerivationEntry{
			ID:       uuid.NewString(),
			RecordID: id,
			Trigger:  field,
			Edit:     edit,
			Patch:    result.Patch,
			Alerts:   result.Alerts,
			Errors:   errorStrings(deriveErr),
			Today:    today,
			At:       now,
		})
	})
	return rec, result, deriveErr, err
}

// GetRecordAlerts refresh-derives a stored record without changing it.
func (h *Handler) GetRecordAlerts(w http.ResponseWriter, r *http.Request) {
	today, err := h.parseToday(r.URL.Query().Get("today"))
	if err != nil {
		h.fail(w, "Invalid today", err)
		return
	}
	rec, err := h.Store.Get(r.Context(), generic.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Record not found", err)
		return
	}

	result, err := h.Engine.Derive(generic.Input{
		EntityType: rec.EntityType,
		Snapshot:   rec.Fields,
		Trigger:    generic.TriggerRefresh,
		Today:      today,
	})
	if result == nil {
		h.fail(w, "Derivation failed", err)
		return
	}
	generic.SortAlerts(result.Alerts)

	writeJSON(w, http.StatusOK, RecordAlertsResponse{
		RecordID: rec.ID,
		Today:    today,
		Alerts:   orEmptyAlerts(result.Alerts),
		Errors:   toFieldErrorDTOs(err),
	})
}

// GetDerivations returns a record's audit log, oldest first.
func (h *Handler) GetDerivations(w http.ResponseWriter, r *http.Request) {
	id := generic.RecordID(chi.URLParam(r, "id"))
	if _, err := h.Store.Get(r.Context(), id); err != nil {
		h.fail(w, "Record not found", err)
		return
	}
	entries, err := h.Store.Derivations().List(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load derivations", err)
		return
	}

	dtos := make([]DerivationDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toDerivationDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ALERT AND REPORT HANDLERS
// =============================================================================

// SweepAlerts refresh-derives every record for the given day.
func (h *Handler) SweepAlerts(w http.ResponseWriter, r *http.Request) {
	today, err := h.parseToday(r.URL.Query().Get("today"))
	if err != nil {
		h.fail(w, "Invalid today", err)
		return
	}
	result, err := Sweep(r.Context(), h.Store, h.Engine, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetLastSweep returns the scheduler's most recent sweep.
func (h *Handler) GetLastSweep(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusNotFound, "Scheduler is not running", nil)
		return
	}
	result, ok := h.Scheduler.LastSweep()
	if !ok {
		writeError(w, http.StatusNotFound, "No sweep has run yet", nil)
		return
	}
	resp := LastSweepResponse{SweepResult: result}
	if next, running := h.Scheduler.GetNextRunTime(); running {
		resp.NextRun = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetReport summarizes one entity type's records.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	schema, err := h.Registry.Lookup(generic.EntityType(chi.URLParam(r, "entity_type")))
	if err != nil {
		h.fail(w, "Unknown entity type", err)
		return
	}
	today, err := h.parseToday(r.URL.Query().Get("today"))
	if err != nil {
		h.fail(w, "Invalid today", err)
		return
	}
	within := 0
	if v := r.URL.Query().Get("within"); v != "" {
		within, err = strconv.Atoi(v)
		if err != nil || within < 0 {
			writeError(w, http.StatusBadRequest, "within must be a non-negative number of days", err)
			return
		}
	}

	records, err := h.Store.List(r.Context(), generic.RecordFilter{EntityType: schema.EntityType})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}
	writeJSON(w, http.StatusOK, report.Summarize(schema, records, today, within))
}

// ResetDatabase clears all data (for testing/demo purposes).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

// parseToday parses a "YYYY-MM-DD" day; empty means the server's today.
func (h *Handler) parseToday(s string) (generic.Date, error) {
	if s == "" {
		return generic.DateOf(h.Now()), nil
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.Date{}, &generic.InvalidFieldError{Field: "today", Value: s, Err: generic.ErrInvalidDate}
	}
	return d, nil
}

// validateFields rejects statuses outside the schema's set and unknown
// priorities. Unset fields pass.
func validateFields(schema generic.Schema, fields generic.Snapshot) error {
	var errs []error
	if fields.IsSet(schema.StatusField) && !schema.IsStatus(fields.String(schema.StatusField)) {
		errs = append(errs, &generic.InvalidFieldError{
			Field: schema.StatusField, Value: fields[schema.StatusField], Err: generic.ErrInvalidStatus,
		})
	}
	if fields.IsSet(priorityField) && !generic.IsPriority(fields.String(priorityField)) {
		errs = append(errs, &generic.InvalidFieldError{
			Field: priorityField, Value: fields[priorityField], Err: generic.ErrInvalidPriority,
		})
	}
	return errors.Join(errs...)
}

// fail maps engine and store errors to HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case generic.IsNotFound(err):
		status = http.StatusNotFound
	case generic.IsClientError(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func errorStrings(err error) []string {
	fields := generic.FieldErrors(err)
	if len(fields) == 0 {
		if err != nil {
			return []string{err.Error()}
		}
		return nil
	}
	out := make([]string, len(fields))
	for i, fe := range fields {
		out[i] = fe.Error()
	}
	return out
}
