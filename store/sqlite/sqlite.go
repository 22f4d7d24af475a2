/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the record persistence interfaces (RecordStore, DerivationLog,
  TxStore) and stores schema override documents, using SQLite.

INTERFACES IMPLEMENTED:
  generic.RecordStore:   Tracked records, fields kept as a JSON document
  generic.DerivationLog: Append-only audit of applied derivations
  generic.TxStore:       Edit + derive + patch + audit in one transaction

KEY TABLES:
  records:     One row per tracked record (fields_json)
  derivations: Immutable log of applied patches and the alerts at the time
  schemas:     Per-entity schema override documents (versioned)

FIELD VALUES:
  Fields are stored as JSON. A Date comes back as its "YYYY-MM-DD" string and
  numbers come back as json.Number; generic.Snapshot reads both forms.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so an
  in-memory database is shared by every query and a transaction never waits
  on a second connection.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/tracking.db", sqlite.WithLogger(logger))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sysmayal/tracking-engine/factory"
	"github.com/sysmayal/tracking-engine/generic"
	"go.uber.org/zap"
)

// timeLayout sorts lexicographically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	store.logger.Debug("sqlite store opened", zap.String("path", dbPath))
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Tracked records
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		fields_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_entity_type
		ON records(entity_type, created_at);

	-- Derivations (append-only)
	CREATE TABLE IF NOT EXISTS derivations (
		id TEXT PRIMARY KEY,
		record_id TEXT NOT NULL REFERENCES records(id),
		trigger_field TEXT NOT NULL,
		edit_json TEXT NOT NULL,
		patch_json TEXT NOT NULL,
		alerts_json TEXT NOT NULL,
		errors_json TEXT NOT NULL,
		today TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_derivations_record
		ON derivations(record_id, at);

	-- Schema overrides
	CREATE TABLE IF NOT EXISTS schemas (
		entity_type TEXT PRIMARY KEY,
		document_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// RECORD STORE (generic.RecordStore interface)
// =============================================================================

// Save inserts or replaces a record. CreatedAt is kept on replace.
func (s *Store) Save(ctx context.Context, r generic.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRecord(ctx, s.db, r)
}

func saveRecord(ctx context.Context, q querier, r generic.Record) error {
	if r.ID == "" || r.EntityType == "" {
		return fmt.Errorf("record id and entity type are required")
	}
	fieldsJSON, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	now := time.Now().UTC()
	createdAt, updatedAt := r.CreatedAt, r.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := `
		INSERT INTO records (id, entity_type, fields_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entity_type = excluded.entity_type,
			fields_json = excluded.fields_json,
			updated_at = excluded.updated_at
	`
	_, err = q.ExecContext(ctx, query,
		r.ID, r.EntityType, string(fieldsJSON),
		formatTime(createdAt), formatTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id generic.RecordID) (generic.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRecord(ctx, s.db, id)
}

func getRecord(ctx context.Context, q querier, id generic.RecordID) (generic.Record, error) {
	row := q.QueryRowContext(ctx,
		"SELECT id, entity_type, fields_json, created_at, updated_at FROM records WHERE id = ?", id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Record{}, fmt.Errorf("%w: %s", generic.ErrRecordNotFound, id)
	}
	return r, err
}

// List returns matching records ordered by creation.
func (s *Store) List(ctx context.Context, filter generic.RecordFilter) ([]generic.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRecords(ctx, s.db, filter)
}

func listRecords(ctx context.Context, q querier, filter generic.RecordFilter) ([]generic.Record, error) {
	query := "SELECT id, entity_type, fields_json, created_at, updated_at FROM records"
	var args []any
	if filter.EntityType != "" {
		query += " WHERE entity_type = ?"
		args = append(args, filter.EntityType)
	}
	query += " ORDER BY created_at, id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []generic.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ApplyPatch merges a patch into the stored fields.
func (s *Store) ApplyPatch(ctx context.Context, id generic.RecordID, patch generic.Patch, at time.Time) (generic.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return applyPatch(ctx, s.db, id, patch, at)
}

func applyPatch(ctx context.Context, q querier, id generic.RecordID, patch generic.Patch, at time.Time) (generic.Record, error) {
	r, err := getRecord(ctx, q, id)
	if err != nil {
		return generic.Record{}, err
	}
	r.Fields = patch.Apply(r.Fields)
	r.UpdatedAt = at.UTC()
	if err := saveRecord(ctx, q, r); err != nil {
		return generic.Record{}, err
	}
	// Re-read so callers see the stored representation of every field.
	return getRecord(ctx, q, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (generic.Record, error) {
	var r generic.Record
	var fieldsJSON, createdAt, updatedAt string
	if err := row.Scan(&r.ID, &r.EntityType, &fieldsJSON, &createdAt, &updatedAt); err != nil {
		return generic.Record{}, err
	}
	fields, err := decodeSnapshot(fieldsJSON)
	if err != nil {
		return generic.Record{}, fmt.Errorf("record %s: %w", r.ID, err)
	}
	r.Fields = fields
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// DERIVATION LOG (generic.DerivationLog interface)
// =============================================================================

// Derivations returns the derivation log backed by this store.
func (s *Store) Derivations() generic.DerivationLog {
	return &derivationLog{q: s.db, mu: &s.mu}
}

type derivationLog struct {
	q  querier
	mu *sync.RWMutex // nil inside WithTx, the lock is already held
}

func (l *derivationLog) Append(ctx context.Context, entry generic.DerivationEntry) error {
	if l.mu != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	editJSON, _ := json.Marshal(orEmptyPatch(entry.Edit))
	patchJSON, _ := json.Marshal(orEmptyPatch(entry.Patch))
	alertsJSON, _ := json.Marshal(orEmptyAlerts(entry.Alerts))
	errorsJSON, _ := json.Marshal(orEmptyStrings(entry.Errors))

	query := `
		INSERT INTO derivations
		(id, record_id, trigger_field, edit_json, patch_json, alerts_json, errors_json, today, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := l.q.ExecContext(ctx, query,
		entry.ID, entry.RecordID, string(entry.Trigger),
		string(editJSON), string(patchJSON), string(alertsJSON), string(errorsJSON),
		nullString(entry.Today.String()), formatTime(entry.At),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %s", generic.ErrRecordNotFound, entry.RecordID)
		}
		if isUniqueConstraintError(err) {
			return fmt.Errorf("derivation %s already logged", entry.ID)
		}
		return fmt.Errorf("failed to append derivation: %w", err)
	}
	return nil
}

func (l *derivationLog) List(ctx context.Context, recordID generic.RecordID) ([]generic.DerivationEntry, error) {
	if l.mu != nil {
		l.mu.RLock()
		defer l.mu.RUnlock()
	}

	rows, err := l.q.QueryContext(ctx, `
		SELECT id, record_id, trigger_field, edit_json, patch_json, alerts_json, errors_json, today, at
		FROM derivations
		WHERE record_id = ?
		ORDER BY at, id
	`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []generic.DerivationEntry{}
	for rows.Next() {
		var e generic.DerivationEntry
		var trigger, editJSON, patchJSON, alertsJSON, errorsJSON, at string
		var today sql.NullString
		if err := rows.Scan(&e.ID, &e.RecordID, &trigger, &editJSON, &patchJSON, &alertsJSON, &errorsJSON, &today, &at); err != nil {
			return nil, err
		}
		e.Trigger = generic.Field(trigger)

		edit, err := decodeSnapshot(editJSON)
		if err != nil {
			return nil, err
		}
		patch, err := decodeSnapshot(patchJSON)
		if err != nil {
			return nil, err
		}
		e.Edit = generic.Patch(edit)
		e.Patch = generic.Patch(patch)
		if err := json.Unmarshal([]byte(alertsJSON), &e.Alerts); err != nil {
			return nil, fmt.Errorf("derivation %s alerts: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(errorsJSON), &e.Errors); err != nil {
			return nil, fmt.Errorf("derivation %s errors: %w", e.ID, err)
		}
		if today.Valid {
			e.Today, _ = generic.ParseDate(today.String)
		}
		e.At = parseTime(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Save(ctx context.Context, r generic.Record) error {
	return saveRecord(ctx, ts.tx, r)
}

func (ts *txStore) Get(ctx context.Context, id generic.RecordID) (generic.Record, error) {
	return getRecord(ctx, ts.tx, id)
}

func (ts *txStore) List(ctx context.Context, filter generic.RecordFilter) ([]generic.Record, error) {
	return listRecords(ctx, ts.tx, filter)
}

func (ts *txStore) ApplyPatch(ctx context.Context, id generic.RecordID, patch generic.Patch, at time.Time) (generic.Record, error) {
	return applyPatch(ctx, ts.tx, id, patch, at)
}

func (ts *txStore) Derivations() generic.DerivationLog {
	return &derivationLog{q: ts.tx}
}

// =============================================================================
// SCHEMA STORE - Override documents
// =============================================================================

// SchemaRecord is a stored schema override.
type SchemaRecord struct {
	EntityType generic.EntityType
	Schema     generic.Schema
	Version    int
	UpdatedAt  time.Time
}

// SaveSchema stores a schema override, bumping its version.
func (s *Store) SaveSchema(ctx context.Context, schema generic.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(factory.NewSchemaFactory().ToDocument(schema))
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO schemas (entity_type, document_json, version, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(entity_type) DO UPDATE SET
			document_json = excluded.document_json,
			version = schemas.version + 1,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, schema.EntityType, string(doc), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save schema: %w", err)
	}
	s.logger.Info("schema override saved", zap.String("entity_type", string(schema.EntityType)))
	return nil
}

// GetSchema returns the stored override, or ErrSchemaNotFound.
func (s *Store) GetSchema(ctx context.Context, entityType generic.EntityType) (*SchemaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT entity_type, document_json, version, updated_at FROM schemas WHERE entity_type = ?", entityType)
	rec, err := scanSchema(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrSchemaNotFound, entityType)
	}
	return rec, err
}

// ListSchemas returns all stored overrides ordered by entity type.
func (s *Store) ListSchemas(ctx context.Context) ([]SchemaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT entity_type, document_json, version, updated_at FROM schemas ORDER BY entity_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SchemaRecord
	for rows.Next() {
		rec, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// DeleteSchema removes an override. The built-in table applies again after restart.
func (s *Store) DeleteSchema(ctx context.Context, entityType generic.EntityType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM schemas WHERE entity_type = ?", entityType)
	return err
}

// LoadSchemas registers every stored override into the registry.
func (s *Store) LoadSchemas(ctx context.Context, registry *generic.Registry) (int, error) {
	records, err := s.ListSchemas(ctx)
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if err := registry.Register(rec.Schema); err != nil {
			return 0, err
		}
		s.logger.Info("schema override loaded",
			zap.String("entity_type", string(rec.EntityType)),
			zap.Int("version", rec.Version))
	}
	return len(records), nil
}

func scanSchema(row scanner) (*SchemaRecord, error) {
	var rec SchemaRecord
	var docJSON, updatedAt string
	if err := row.Scan(&rec.EntityType, &docJSON, &rec.Version, &updatedAt); err != nil {
		return nil, err
	}
	schema, err := factory.NewSchemaFactory().ParseJSON([]byte(docJSON))
	if err != nil {
		return nil, fmt.Errorf("stored schema %s: %w", rec.EntityType, err)
	}
	rec.Schema = schema
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset clears records and derivations (for testing/demo purposes).
// Schema overrides survive.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"derivations", "records"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func decodeSnapshot(data string) (generic.Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var fields generic.Snapshot
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	if fields == nil {
		fields = generic.Snapshot{}
	}
	return fields, nil
}

func orEmptyPatch(p generic.Patch) generic.Patch {
	if p == nil {
		return generic.Patch{}
	}
	return p
}

func orEmptyAlerts(a []generic.Alert) []generic.Alert {
	if a == nil {
		return []generic.Alert{}
	}
	return a
}

func orEmptyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
