/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	records for demos. Records go through the same create and edit flows
	as API clients, so every loaded record carries its derivation log.

AVAILABLE SCENARIOS:

	research-portfolio:  Studies across the pipeline, one completed by percentage
	compliance-renewals: Approvals expired, expiring and due for review
	partner-network:     Distributors and regulators with agreements and audits

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create records with load defaults and a refresh derivation
 3. Replay user edits through the edit flow

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "compliance-renewals", "today": "2025-03-01"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: createRecord, editRecord
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sysmayal/tracking-engine/compliance"
	"github.com/sysmayal/tracking-engine/generic"
	"github.com/sysmayal/tracking-engine/organization"
	"github.com/sysmayal/tracking-engine/research"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "research-portfolio",
		Name:        "Research Portfolio",
		Description: "Studies across the pipeline; one reaches 100% and completes itself",
		EntityType:  research.EntityType,
	},
	{
		ID:          "compliance-renewals",
		Name:        "Compliance Renewals",
		Description: "Expired, expiring and review-due compliance records",
		EntityType:  compliance.EntityType,
	},
	{
		ID:          "partner-network",
		Name:        "Partner Network",
		Description: "Distributors and regulators with agreements and audits",
		EntityType:  organization.EntityType,
	},
}

var errScenarioNotFound = errors.New("scenario not found")

// scenarioEdit is one user edit replayed after creation.
type scenarioEdit struct {
	Record int
	Field  generic.Field
	Value  any
}

type scenarioData struct {
	EntityType generic.EntityType
	Records    []generic.Snapshot
	Edits      []scenarioEdit
}

// scenarioFor builds the data relative to today so alerts are always visible.
func scenarioFor(id string, today generic.Date) (scenarioData, error) {
	switch id {
	case "research-portfolio":
		return scenarioData{
			EntityType: research.EntityType,
			Records: []generic.Snapshot{
				{research.FieldTitle: "Shelf-life study", research.FieldStatus: string(research.StatusPlanning),
					research.FieldResearcher: "Dr. Amadi", research.FieldPriority: string(generic.PriorityHigh)},
				{research.FieldTitle: "Consumer panel", research.FieldStatus: string(research.StatusDataCollection),
					research.FieldTargetDate: today.AddMonths(2)},
				{research.FieldTitle: "Packaging trial", research.FieldStatus: string(research.StatusReporting)},
				{research.FieldTitle: "Legacy formula", research.FieldStatus: string(research.StatusOnHold),
					research.FieldPercentage: 40, research.FieldPriority: string(generic.PriorityLow)},
			},
			Edits: []scenarioEdit{
				{Record: 1, Field: research.FieldStatus, Value: string(research.StatusAnalysis)},
				{Record: 2, Field: research.FieldPercentage, Value: 100},
			},
		}, nil

	case "compliance-renewals":
		return scenarioData{
			EntityType: compliance.EntityType,
			Records: []generic.Snapshot{
				{compliance.FieldProduct: "Vitamin D3", compliance.FieldRegulatoryBody: "FDA",
					compliance.FieldPriority: string(generic.PriorityCritical)},
				{compliance.FieldProduct: "Omega Blend", compliance.FieldRegulatoryBody: "EFSA",
					compliance.FieldStatus: string(compliance.StatusCompliant)},
				{compliance.FieldProduct: "Iron Plus", compliance.FieldRegulatoryBody: "TGA",
					compliance.FieldNextReviewDate: today.AddDays(5)},
			},
			Edits: []scenarioEdit{
				// Expiry lands 20 days out, inside the warning window.
				{Record: 1, Field: compliance.FieldApprovalDate, Value: today.AddMonths(-24).AddDays(20)},
				// Approved 25 months ago: already expired.
				{Record: 0, Field: compliance.FieldApprovalDate, Value: today.AddMonths(-25)},
				{Record: 2, Field: compliance.FieldApprovalStatus, Value: compliance.ApprovalApproved},
				{Record: 2, Field: compliance.FieldTestingStatus, Value: compliance.TestingInProgress},
			},
		}, nil

	case "partner-network":
		return scenarioData{
			EntityType: organization.EntityType,
			Records: []generic.Snapshot{
				{organization.FieldName: "Northwind Distribution", organization.FieldType: string(organization.TypeDistributor),
					organization.FieldAgreementExpiry: today.AddDays(20)},
				{organization.FieldName: "National Food Authority", organization.FieldType: string(organization.TypeRegulatoryBody),
					organization.FieldNextAuditDue: today.AddDays(-3)},
				{organization.FieldName: "Harbor Retail", organization.FieldStatus: string(organization.StatusPending)},
			},
			Edits: []scenarioEdit{
				{Record: 2, Field: organization.FieldType, Value: string(organization.TypeRetailer)},
			},
		}, nil
	}
	return scenarioData{}, fmt.Errorf("%w: %s", errScenarioNotFound, id)
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

// LoadScenario resets the database and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	today, err := h.parseToday(req.Today)
	if err != nil {
		h.fail(w, "Invalid today", err)
		return
	}

	ids, err := h.loadScenario(r.Context(), req.ScenarioID, today)
	if errors.Is(err, errScenarioNotFound) {
		writeError(w, http.StatusNotFound, "Unknown scenario", err)
		return
	}
	if err != nil {
		h.fail(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "loaded",
		"scenario":   req.ScenarioID,
		"record_ids": ids,
	})
}

func (h *Handler) loadScenario(ctx context.Context, id string, today generic.Date) ([]generic.RecordID, error) {
	data, err := scenarioFor(id, today)
	if err != nil {
		return nil, err
	}
	if err := h.Store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}

	ids := make([]generic.RecordID, 0, len(data.Records))
	for _, fields := range data.Records {
		rec, result, err := h.createRecord(ctx, data.EntityType, fields, today)
		if result == nil {
			return nil, err
		}
		ids = append(ids, rec.ID)
	}
	for _, e := range data.Edits {
		if _, _, _, err := h.editRecord(ctx, ids[e.Record], e.Field, e.Value, today); err != nil {
			return nil, fmt.Errorf("replay %s on record %d: %w", e.Field, e.Record, err)
		}
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.Logger.Info("scenario loaded",
		zap.String("scenario", id),
		zap.Int("records", len(ids)))
	return ids, nil
}
