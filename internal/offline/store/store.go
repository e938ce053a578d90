// Package store provides the local durable store for the offline subsystem.
//
// The store is an embedded SQLite database opened in WAL mode, which gives
// the durability guarantee the offline workflow depends on: a write has hit
// disk before the call returns, and writes within one collection are
// serialized by SQLite's transaction model.
//
// Two tables back the whole subsystem:
//   - records: per-collection key-value storage for cached reference data
//     and write-through order snapshots
//   - sync_queue: the pending-mutation queue drained by the synchronizer
//
// The store performs no implicit retry; a failed read or write surfaces as
// an error wrapping ErrStorage and the caller decides what to do.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/model"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrStorage marks a local read/write failure (quota, corruption, engine
// unavailable). Callers use errors.Is to distinguish storage failures from
// logic errors like ErrNotFound.
var ErrStorage = errors.New("storage failure")

// ErrNotFound is returned when a requested record or queue entry does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite connection with the offline subsystem's schema.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a store at the given path, creating parent directories as
// needed. The database is opened in WAL mode with a busy timeout so
// concurrent readers never block writers.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(".dineease/offline.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create database directory: %v", ErrStorage, err)
	}

	connStr := path
	if !strings.HasPrefix(connStr, "file:") {
		connStr = "file:" + connStr
	}
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrStorage, err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", ErrStorage, err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := st.conn.Exec(pragma); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("%w: failed to apply %q: %v", ErrStorage, pragma, err)
		}
	}

	return st, nil
}

// RawDB returns the underlying sql.DB connection for integration with
// libraries that expect one.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("%w: failed to close database: %v", ErrStorage, err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the records and sync_queue tables if they don't exist.
// Idempotent, safe to call on every startup.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		payload TEXT NOT NULL,
		cached_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		enqueued_at TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);
	CREATE INDEX IF NOT EXISTS idx_queue_enqueued ON sync_queue(enqueued_at);
	CREATE INDEX IF NOT EXISTS idx_queue_retries ON sync_queue(retry_count);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %v", ErrStorage, err)
	}

	return nil
}

// PutRecord upserts a single record into a collection.
func (s *Store) PutRecord(ctx context.Context, collection model.Collection, rec model.CachedRecord) error {
	query := `
	INSERT INTO records (collection, id, payload, cached_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(collection, id) DO UPDATE SET
		payload = excluded.payload,
		cached_at = excluded.cached_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		string(collection),
		rec.ID,
		string(rec.Payload),
		rec.CachedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to put record %s/%s: %v", ErrStorage, collection, rec.ID, err)
	}

	return nil
}

// PutRecords upserts a batch of records into one collection inside a single
// transaction, so a bulk cache refresh is all-or-nothing.
func (s *Store) PutRecords(ctx context.Context, collection model.Collection, recs []model.CachedRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO records (collection, id, payload, cached_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(collection, id) DO UPDATE SET
		payload = excluded.payload,
		cached_at = excluded.cached_at
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: failed to prepare upsert: %v", ErrStorage, err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			string(collection),
			rec.ID,
			string(rec.Payload),
			rec.CachedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("%w: failed to put record %s/%s: %v", ErrStorage, collection, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit batch put: %v", ErrStorage, err)
	}

	return nil
}

// GetRecord fetches a single record by id. Returns ErrNotFound if absent.
func (s *Store) GetRecord(ctx context.Context, collection model.Collection, id string) (*model.CachedRecord, error) {
	query := `SELECT id, payload, cached_at FROM records WHERE collection = ? AND id = ?`

	row := s.conn.QueryRowContext(ctx, query, string(collection), id)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get record %s/%s: %v", ErrStorage, collection, id, err)
	}

	return rec, nil
}

// ListRecords returns all records in a collection in insertion order
// (cached_at ascending, id as tiebreaker).
func (s *Store) ListRecords(ctx context.Context, collection model.Collection) ([]model.CachedRecord, error) {
	query := `
	SELECT id, payload, cached_at FROM records
	WHERE collection = ?
	ORDER BY cached_at ASC, id ASC
	`

	rows, err := s.conn.QueryContext(ctx, query, string(collection))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list records in %s: %v", ErrStorage, collection, err)
	}
	defer rows.Close()

	var recs []model.CachedRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan record in %s: %v", ErrStorage, collection, err)
		}
		recs = append(recs, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating records in %s: %v", ErrStorage, collection, err)
	}

	return recs, nil
}

// DeleteRecord removes a record. Returns nil if it doesn't exist (idempotent).
func (s *Store) DeleteRecord(ctx context.Context, collection model.Collection, id string) error {
	query := `DELETE FROM records WHERE collection = ? AND id = ?`
	if _, err := s.conn.ExecContext(ctx, query, string(collection), id); err != nil {
		return fmt.Errorf("%w: failed to delete record %s/%s: %v", ErrStorage, collection, id, err)
	}
	return nil
}

// CountRecords returns the number of records in a collection.
func (s *Store) CountRecords(ctx context.Context, collection model.Collection) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", string(collection)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count records in %s: %v", ErrStorage, collection, err)
	}
	return count, nil
}

// ClearCollections removes all records in the given collections inside one
// transaction. The sync queue is untouched; queued mutations are never
// discarded by a cache clear.
func (s *Store) ClearCollections(ctx context.Context, collections ...model.Collection) error {
	if len(collections) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	for _, c := range collections {
		if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE collection = ?", string(c)); err != nil {
			return fmt.Errorf("%w: failed to clear collection %s: %v", ErrStorage, c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit clear: %v", ErrStorage, err)
	}

	return nil
}

// scanRecord scans one record row. The scan argument abstracts over
// sql.Row.Scan and sql.Rows.Scan.
func scanRecord(scan func(dest ...any) error) (*model.CachedRecord, error) {
	var rec model.CachedRecord
	var payload, cachedAt string

	if err := scan(&rec.ID, &payload, &cachedAt); err != nil {
		return nil, err
	}

	rec.Payload = []byte(payload)
	t, err := time.Parse(time.RFC3339Nano, cachedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cached_at: %w", err)
	}
	rec.CachedAt = t

	return &rec, nil
}
