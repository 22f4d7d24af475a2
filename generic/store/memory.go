// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sysmayal/tracking-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	records     map[generic.RecordID]generic.Record
	derivations map[generic.RecordID][]generic.DerivationEntry
}

func NewMemory() *Memory {
	return &Memory{
		records:     make(map[generic.RecordID]generic.Record),
		derivations: make(map[generic.RecordID][]generic.DerivationEntry),
	}
}

// Save inserts or replaces a record.
func (m *Memory) Save(_ context.Context, r generic.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(r)
}

func (m *Memory) saveLocked(r generic.Record) error {
	if r.ID == "" || r.EntityType == "" {
		return fmt.Errorf("record id and entity type are required")
	}
	r.Fields = r.Fields.Clone()
	if existing, ok := m.records[r.ID]; ok && r.CreatedAt.IsZero() {
		r.CreatedAt = existing.CreatedAt
	}
	m.records[r.ID] = r
	return nil
}

func (m *Memory) Get(_ context.Context, id generic.RecordID) (generic.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *Memory) getLocked(id generic.RecordID) (generic.Record, error) {
	r, ok := m.records[id]
	if !ok {
		return generic.Record{}, fmt.Errorf("%w: %s", generic.ErrRecordNotFound, id)
	}
	r.Fields = r.Fields.Clone()
	return r, nil
}

func (m *Memory) List(_ context.Context, filter generic.RecordFilter) ([]generic.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(filter), nil
}

func (m *Memory) listLocked(filter generic.RecordFilter) []generic.Record {
	result := make([]generic.Record, 0, len(m.records))
	for _, r := range m.records {
		if filter.Matches(r) {
			r.Fields = r.Fields.Clone()
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *Memory) ApplyPatch(_ context.Context, id generic.RecordID, patch generic.Patch, at time.Time) (generic.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(id, patch, at)
}

func (m *Memory) applyLocked(id generic.RecordID, patch generic.Patch, at time.Time) (generic.Record, error) {
	r, ok := m.records[id]
	if !ok {
		return generic.Record{}, fmt.Errorf("%w: %s", generic.ErrRecordNotFound, id)
	}
	r.Fields = patch.Apply(r.Fields)
	r.UpdatedAt = at
	m.records[id] = r
	r.Fields = r.Fields.Clone()
	return r, nil
}

// Derivations returns the derivation log view of this store.
func (m *Memory) Derivations() generic.DerivationLog { return memoryLog{m: m, locked: false} }

// =============================================================================
// DERIVATION LOG
// =============================================================================

type memoryLog struct {
	m      *Memory
	locked bool // caller already holds m.mu (inside WithTx)
}

func (l memoryLog) Append(_ context.Context, entry generic.DerivationEntry) error {
	if !l.locked {
		l.m.mu.Lock()
		defer l.m.mu.Unlock()
	}
	if _, ok := l.m.records[entry.RecordID]; !ok {
		return fmt.Errorf("%w: %s", generic.ErrRecordNotFound, entry.RecordID)
	}
	l.m.derivations[entry.RecordID] = append(l.m.derivations[entry.RecordID], entry)
	return nil
}

func (l memoryLog) List(_ context.Context, recordID generic.RecordID) ([]generic.DerivationEntry, error) {
	if !l.locked {
		l.m.mu.RLock()
		defer l.m.mu.RUnlock()
	}
	entries := l.m.derivations[recordID]
	result := make([]generic.DerivationEntry, len(entries))
	copy(result, entries)
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	recordsCopy := make(map[generic.RecordID]generic.Record, len(tm.records))
	for k, v := range tm.records {
		v.Fields = v.Fields.Clone()
		recordsCopy[k] = v
	}
	derivationsCopy := make(map[generic.RecordID][]generic.DerivationEntry, len(tm.derivations))
	for k, v := range tm.derivations {
		derivationsCopy[k] = append([]generic.DerivationEntry{}, v...)
	}
	return memorySnapshot{records: recordsCopy, derivations: derivationsCopy}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.records = s.records
	tm.derivations = s.derivations
}

type memorySnapshot struct {
	records     map[generic.RecordID]generic.Record
	derivations map[generic.RecordID][]generic.DerivationEntry
}

// txMemoryView runs against the parent while WithTx holds its lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) Save(_ context.Context, r generic.Record) error {
	return tv.parent.saveLocked(r)
}

func (tv *txMemoryView) Get(_ context.Context, id generic.RecordID) (generic.Record, error) {
	return tv.parent.getLocked(id)
}

func (tv *txMemoryView) List(_ context.Context, filter generic.RecordFilter) ([]generic.Record, error) {
	return tv.parent.listLocked(filter), nil
}

func (tv *txMemoryView) ApplyPatch(_ context.Context, id generic.RecordID, patch generic.Patch, at time.Time) (generic.Record, error) {
	return tv.parent.applyLocked(id, patch, at)
}

func (tv *txMemoryView) Derivations() generic.DerivationLog {
	return memoryLog{m: tv.parent, locked: true}
}
