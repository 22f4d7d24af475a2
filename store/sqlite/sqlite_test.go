package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysmayal/tracking-engine/compliance"
	"github.com/sysmayal/tracking-engine/generic"
	"github.com/sysmayal/tracking-engine/research"
	"github.com/sysmayal/tracking-engine/store/sqlite"
	"go.uber.org/zap"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:", sqlite.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var (
	ctx    = context.Background()
	t0     = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	march1 = generic.NewDate(2025, time.March, 1)
)

func researchRecord(id string, fields generic.Snapshot) generic.Record {
	return generic.Record{ID: generic.RecordID(id), EntityType: research.EntityType, Fields: fields, CreatedAt: t0}
}

// =============================================================================
// RECORD STORE
// =============================================================================

func TestRecords_SaveGet(t *testing.T) {
	// GIVEN: A saved research record with a Date, an int and a string
	// WHEN: It is read back
	// THEN: Every field reads through the Snapshot accessors unchanged

	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, researchRecord("r1", generic.Snapshot{
		research.FieldStatus:     "Analysis",
		research.FieldPercentage: 70,
		research.FieldDate:       march1,
	})))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, research.EntityType, got.EntityType)
	assert.Equal(t, "Analysis", got.Fields.String(research.FieldStatus))

	pct, set, err := got.Fields.Percentage(research.FieldPercentage)
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, 70, pct)

	d, set, err := got.Fields.Date(research.FieldDate)
	require.NoError(t, err)
	assert.True(t, set)
	assert.True(t, d.Equal(march1))
	assert.True(t, got.CreatedAt.Equal(t0))
}

func TestRecords_GetMissing(t *testing.T) {
	_, err := newTestStore(t).Get(ctx, "nope")

	assert.ErrorIs(t, err, generic.ErrRecordNotFound)
	assert.True(t, generic.IsNotFound(err))
}

func TestRecords_ListFilterAndOrder(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, researchRecord("r2", generic.Snapshot{})))

	first := researchRecord("r1", generic.Snapshot{})
	first.CreatedAt = t0.Add(-time.Hour)
	require.NoError(t, store.Save(ctx, first))

	require.NoError(t, store.Save(ctx, generic.Record{
		ID: "c1", EntityType: compliance.EntityType, Fields: generic.Snapshot{}, CreatedAt: t0,
	}))

	all, err := store.List(ctx, generic.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	studies, err := store.List(ctx, generic.RecordFilter{EntityType: research.EntityType})
	require.NoError(t, err)
	require.Len(t, studies, 2)
	assert.Equal(t, generic.RecordID("r1"), studies[0].ID)
	assert.Equal(t, generic.RecordID("r2"), studies[1].ID)
}

func TestRecords_ApplyPatch(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, researchRecord("r1", generic.Snapshot{research.FieldStatus: "Analysis"})))

	later := t0.Add(2 * time.Hour)
	got, err := store.ApplyPatch(ctx, "r1", generic.Patch{research.FieldPercentage: 70}, later)

	require.NoError(t, err)
	pct, _, err := got.Fields.Percentage(research.FieldPercentage)
	require.NoError(t, err)
	assert.Equal(t, 70, pct)
	assert.Equal(t, "Analysis", got.Fields.String(research.FieldStatus))
	assert.True(t, got.UpdatedAt.Equal(later))
	assert.True(t, got.CreatedAt.Equal(t0))

	_, err = store.ApplyPatch(ctx, "missing", generic.Patch{}, later)
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)
}

// =============================================================================
// DERIVATION LOG
// =============================================================================

func TestDerivations_AppendList(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, researchRecord("r1", generic.Snapshot{})))

	log := store.Derivations()
	require.NoError(t, log.Append(ctx, generic.DerivationEntry{
		RecordID: "r1",
		Trigger:  research.FieldStatus,
		Edit:     generic.Patch{research.FieldStatus: "Completed"},
		Patch:    generic.Patch{research.FieldPercentage: 100},
		Today:    march1,
		At:       t0,
	}))
	require.NoError(t, log.Append(ctx, generic.DerivationEntry{
		RecordID: "r1",
		Trigger:  compliance.FieldExpiryDate,
		Alerts: []generic.Alert{{
			Kind: generic.AlertExpired, Field: compliance.FieldExpiryDate, Days: -2,
			Severity: generic.SeverityFatal, Date: march1.AddDays(-2),
		}},
		Errors: []string{"invalid date"},
		At:     t0.Add(time.Minute),
	}))

	entries, err := log.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, research.FieldStatus, entries[0].Trigger)
	assert.Equal(t, "Completed", generic.Snapshot(entries[0].Edit).String(research.FieldStatus))
	assert.True(t, entries[0].Today.Equal(march1))
	assert.Empty(t, entries[0].Alerts)

	require.Len(t, entries[1].Alerts, 1)
	assert.Equal(t, generic.SeverityFatal, entries[1].Alerts[0].Severity)
	assert.Equal(t, -2, entries[1].Alerts[0].Days)
	assert.Equal(t, []string{"invalid date"}, entries[1].Errors)
	assert.True(t, entries[1].Today.IsZero())
}

func TestDerivations_UnknownRecord(t *testing.T) {
	err := newTestStore(t).Derivations().Append(ctx, generic.DerivationEntry{RecordID: "ghost", At: t0})

	assert.ErrorIs(t, err, generic.ErrRecordNotFound)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_CommitAndRollback(t *testing.T) {
	// GIVEN: A stored record
	// WHEN: A transaction patches it, logs, then fails
	// THEN: Neither the patch nor the log entry survives

	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, researchRecord("r1", generic.Snapshot{research.FieldStatus: "Planning"})))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx generic.Store) error {
		if _, err := tx.ApplyPatch(ctx, "r1", generic.Patch{research.FieldStatus: "Analysis"}, t0); err != nil {
			return err
		}
		if err := tx.Derivations().Append(ctx, generic.DerivationEntry{RecordID: "r1", At: t0}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Planning", got.Fields.String(research.FieldStatus))
	entries, err := store.Derivations().List(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Committed transaction
	err = store.WithTx(ctx, func(tx generic.Store) error {
		_, err := tx.ApplyPatch(ctx, "r1", generic.Patch{research.FieldStatus: "Analysis"}, t0)
		if err != nil {
			return err
		}
		return tx.Derivations().Append(ctx, generic.DerivationEntry{RecordID: "r1", At: t0})
	})
	require.NoError(t, err)

	got, err = store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Analysis", got.Fields.String(research.FieldStatus))
	entries, err = store.Derivations().List(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// =============================================================================
// SCHEMA OVERRIDES
// =============================================================================

func TestSchemas_SaveLoad(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSchema(ctx, research.EntityType)
	assert.ErrorIs(t, err, generic.ErrSchemaNotFound)

	custom := research.Schema()
	custom.StatusDefaults[string(research.StatusAnalysis)] = generic.Fixed(65)
	require.NoError(t, store.SaveSchema(ctx, custom))
	require.NoError(t, store.SaveSchema(ctx, custom))

	rec, err := store.GetSchema(ctx, research.EntityType)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, generic.Fixed(65), rec.Schema.StatusDefaults[string(research.StatusAnalysis)])

	registry := generic.NewRegistry()
	registry.MustRegister(research.Schema())
	n, err := store.LoadSchemas(ctx, registry)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	result, err := generic.NewEngine(registry).Derive(generic.Input{
		EntityType: research.EntityType,
		Snapshot:   generic.Snapshot{research.FieldStatus: "Analysis"},
		Trigger:    research.FieldStatus,
		Today:      march1,
	})
	require.NoError(t, err)
	assert.Equal(t, 65, result.Patch[research.FieldPercentage])

	require.NoError(t, store.DeleteSchema(ctx, research.EntityType))
	schemas, err := store.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Empty(t, schemas)
}

func TestSchemas_RejectInvalid(t *testing.T) {
	err := newTestStore(t).SaveSchema(ctx, generic.Schema{EntityType: "Broken"})

	assert.ErrorIs(t, err, generic.ErrInvalidSchema)
}

func TestReset_KeepsSchemaOverrides(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, researchRecord("r1", generic.Snapshot{})))
	require.NoError(t, store.Derivations().Append(ctx, generic.DerivationEntry{RecordID: "r1", At: t0}))
	require.NoError(t, store.SaveSchema(ctx, research.Schema()))

	require.NoError(t, store.Reset(ctx))

	records, err := store.List(ctx, generic.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
	entries, err := store.Derivations().List(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = store.GetSchema(ctx, research.EntityType)
	assert.NoError(t, err)
}
