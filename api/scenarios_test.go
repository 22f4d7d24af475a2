/*
scenarios_test.go - Tests for the demo scenarios

Each scenario must load through the create/edit flows and leave the
records in the state its description promises.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysmayal/tracking-engine/compliance"
	"github.com/sysmayal/tracking-engine/generic"
	"github.com/sysmayal/tracking-engine/research"
)

var scenarioToday = generic.NewDate(2025, 3, 1)

func TestScenario_ResearchPortfolio(t *testing.T) {
	// GIVEN: The research portfolio scenario
	// WHEN: Loading it
	// THEN: The Reporting study that reached 100% is Completed and the
	//       Analysis edit set 70%

	h, _ := setupTestHandler(t)
	ctx := context.Background()

	ids, err := h.loadScenario(ctx, "research-portfolio", scenarioToday)
	require.NoError(t, err)
	require.Len(t, ids, 4)

	rec, err := h.Store.Get(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, string(research.StatusCompleted), rec.Fields.String(research.FieldStatus))

	rec, err = h.Store.Get(ctx, ids[1])
	require.NoError(t, err)
	pct, _, err := rec.Fields.Percentage(research.FieldPercentage)
	require.NoError(t, err)
	assert.Equal(t, 70, pct)

	entries, err := h.Store.Derivations().List(ctx, ids[1])
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestScenario_ComplianceRenewals(t *testing.T) {
	// GIVEN: The compliance renewals scenario
	// WHEN: Sweeping on the load day
	// THEN: One expired record, one expiring soon, one review due soon,
	//       and the approved record carries its factor score, which the
	//       later testing edit leaves alone

	h, _ := setupTestHandler(t)
	ctx := context.Background()

	ids, err := h.loadScenario(ctx, "compliance-renewals", scenarioToday)
	require.NoError(t, err)

	result, err := Sweep(ctx, h.Store, h.Engine, scenarioToday)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Records)
	assert.Equal(t, 1, result.Fatal)
	assert.Equal(t, 2, result.Warnings)
	require.NotEmpty(t, result.Alerts)
	assert.Equal(t, ids[0], result.Alerts[0].RecordID)
	assert.Equal(t, generic.AlertExpired, result.Alerts[0].Kind)
	assert.Equal(t, generic.PriorityCritical, result.Alerts[0].Priority)

	rec, err := h.Store.Get(ctx, ids[2])
	require.NoError(t, err)
	pct, _, err := rec.Fields.Percentage(compliance.FieldPercentage)
	require.NoError(t, err)
	assert.Equal(t, 50, pct)
}

func TestScenario_PartnerNetwork(t *testing.T) {
	h, _ := setupTestHandler(t)
	ctx := context.Background()

	ids, err := h.loadScenario(ctx, "partner-network", scenarioToday)
	require.NoError(t, err)

	rec, err := h.Store.Get(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, "Pending Review", rec.Fields.String("regulatory_status"))

	result, err := Sweep(ctx, h.Store, h.Engine, scenarioToday)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fatal)
	assert.Equal(t, 1, result.Warnings)
}

func TestScenario_ReloadReplacesRecords(t *testing.T) {
	h, router := setupTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "partner-network", "today": "2025-03-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, router, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "research-portfolio", "today": "2025-03-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	records, err := h.Store.List(context.Background(), generic.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 4)

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "research-portfolio")
}

func TestScenario_Unknown(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "nope"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
