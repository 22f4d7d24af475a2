/*
store.go - Persistence interfaces for tracked records and their derivations

PURPOSE:
  Defines the boundary between callers of the engine and the database. The
  engine itself never touches a store: a caller loads a Record, passes its
  Fields as the Snapshot, and persists the returned Patch through ApplyPatch.

KEY INTERFACES:
  RecordStore:   Tracked records (save, get, list, apply patch)
  DerivationLog: Append-only audit of every derivation applied to a record
  TxStore:       Both, with atomic multi-write transactions

EDIT FLOW:
  store.WithTx(ctx, func(tx Store) error {
      rec, _ := tx.ApplyPatch(ctx, id, userEdit, now)   // 1. user edit
      res, err := engine.Derive(...)                     // 2. derive once
      rec, _ = tx.ApplyPatch(ctx, id, res.Patch, now)    // 3. engine patch
      return tx.Append(ctx, entry)                       // 4. audit
  })
  The engine's patch is applied once and never fed back as a new trigger.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: Produces the patches stored here
  - api/handlers.go: The edit flow
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// RECORDS
// =============================================================================

// RecordID identifies a tracked record.
type RecordID string

// Record is one tracked Organization, Research or Compliance document.
type Record struct {
	ID         RecordID
	EntityType EntityType
	Fields     Snapshot
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RecordFilter narrows List. Zero value lists everything.
type RecordFilter struct {
	EntityType EntityType
}

// Matches reports whether r passes the filter.
func (f RecordFilter) Matches(r Record) bool {
	return f.EntityType == "" || f.EntityType == r.EntityType
}

// RecordStore persists tracked records.
type RecordStore interface {
	// Save inserts or replaces a record. ID and EntityType are required.
	Save(ctx context.Context, r Record) error

	// Get returns ErrRecordNotFound when the record does not exist.
	Get(ctx context.Context, id RecordID) (Record, error)

	// List returns matching records ordered by CreatedAt, then ID.
	List(ctx context.Context, filter RecordFilter) ([]Record, error)

	// ApplyPatch merges the patch into the record's fields and returns the result.
	ApplyPatch(ctx context.Context, id RecordID, patch Patch, at time.Time) (Record, error)
}

// =============================================================================
// DERIVATION LOG - Append-only, one entry per applied derivation
// =============================================================================

// DerivationEntry records one derivation applied to a record.
type DerivationEntry struct {
	ID       string
	RecordID RecordID
	Trigger  Field
	Edit     Patch // the user edit that caused the derivation
	Patch    Patch // the engine's patch, as applied
	Alerts   []Alert
	Errors   []string // partial-success field errors
	Today    Date
	At       time.Time
}

// DerivationLog stores derivation entries. Append-only.
type DerivationLog interface {
	Append(ctx context.Context, entry DerivationEntry) error

	// List returns a record's entries oldest first.
	List(ctx context.Context, recordID RecordID) ([]DerivationEntry, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// Store groups records and their derivation log.
type Store interface {
	RecordStore
	Derivations() DerivationLog
}

// TxStore wraps Store with transaction support.
// If fn returns an error, every write made through tx is rolled back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
