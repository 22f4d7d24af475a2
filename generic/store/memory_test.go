package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysmayal/tracking-engine/generic"
	"github.com/sysmayal/tracking-engine/generic/store"
)

var (
	ctx = context.Background()
	t0  = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
)

func record(id string, created time.Time) generic.Record {
	return generic.Record{
		ID:         generic.RecordID(id),
		EntityType: "Research",
		Fields:     generic.Snapshot{"research_status": "Planning"},
		CreatedAt:  created,
	}
}

func TestMemory_SaveGetList(t *testing.T) {
	m := store.NewMemory()
	require.NoError(t, m.Save(ctx, record("b", t0)))
	require.NoError(t, m.Save(ctx, record("a", t0.Add(time.Hour))))
	require.NoError(t, m.Save(ctx, generic.Record{ID: "c", EntityType: "Compliance", CreatedAt: t0}))

	got, err := m.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Planning", got.Fields.String("research_status"))

	list, err := m.List(ctx, generic.RecordFilter{EntityType: "Research"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, generic.RecordID("b"), list[0].ID)
	assert.Equal(t, generic.RecordID("a"), list[1].ID)

	_, err = m.Get(ctx, "zzz")
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)

	assert.Error(t, m.Save(ctx, generic.Record{EntityType: "Research"}))
}

func TestMemory_SaveIsolatesFields(t *testing.T) {
	// GIVEN: A record saved from a caller-owned map
	// WHEN: The caller mutates the map afterwards
	// THEN: The stored record is unaffected

	m := store.NewMemory()
	r := record("a", t0)
	require.NoError(t, m.Save(ctx, r))
	r.Fields["research_status"] = "Cancelled"

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Planning", got.Fields.String("research_status"))
}

func TestMemory_ApplyPatchAndLog(t *testing.T) {
	m := store.NewMemory()
	require.NoError(t, m.Save(ctx, record("a", t0)))

	later := t0.Add(time.Minute)
	got, err := m.ApplyPatch(ctx, "a", generic.Patch{"completion_percentage": 10}, later)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Fields["completion_percentage"])
	assert.True(t, got.UpdatedAt.Equal(later))

	require.NoError(t, m.Derivations().Append(ctx, generic.DerivationEntry{RecordID: "a", At: later}))
	assert.ErrorIs(t, m.Derivations().Append(ctx, generic.DerivationEntry{RecordID: "nope"}), generic.ErrRecordNotFound)

	entries, err := m.Derivations().List(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTxMemory_Rollback(t *testing.T) {
	// GIVEN: A transactional memory store with one record
	// WHEN: A transaction patches and logs, then returns an error
	// THEN: The record and its log are restored

	m := store.NewTxMemory()
	require.NoError(t, m.Save(ctx, record("a", t0)))

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx generic.Store) error {
		if _, err := tx.ApplyPatch(ctx, "a", generic.Patch{"research_status": "Analysis"}, t0); err != nil {
			return err
		}
		if err := tx.Derivations().Append(ctx, generic.DerivationEntry{RecordID: "a", At: t0}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Planning", got.Fields.String("research_status"))
	entries, err := m.Derivations().List(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, m.WithTx(ctx, func(tx generic.Store) error {
		_, err := tx.ApplyPatch(ctx, "a", generic.Patch{"research_status": "Analysis"}, t0)
		return err
	}))
	got, err = m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Analysis", got.Fields.String("research_status"))
}
