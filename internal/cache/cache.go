// Package cache is a durable, SQLite-backed mirror of replica-set desired
// specs, keyed by UID, that survives a node reboot. It is the only
// component that mutates its backing file; all reads and writes are
// mediated through the Cache type.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Record is one stored replica-set spec blob.
type Record struct {
	UID  string
	Spec json.RawMessage
}

// SerializationError indicates the caller supplied a value that cannot
// be encoded to JSON. It is a bug, not a transient condition, so callers
// are expected to propagate it rather than retry.
type SerializationError struct {
	UID string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cache: serializing spec for uid %q: %v", e.UID, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// StorageError wraps any I/O failure against the underlying SQLite file.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// New creates a Cache backed by the SQLite file at path. Call Init before
// any Save/LoadAll.
func New(path string) *Cache {
	return &Cache{path: path}
}

// Cache is a durable mirror of replica-set desired specs. The store is an
// append/replace log with no versioning: only the latest spec for a UID
// is retained.
type Cache struct {
	path string
	db   *sql.DB
}

// Init is idempotent: it creates the parent directory and the backing
// table if either is missing, and opens the database handle for reuse by
// Save and LoadAll.
func (c *Cache) Init(ctx context.Context) error {
	dir := filepath.Dir(c.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &StorageError{Op: "mkdir parent directories", Err: err}
		}
	}

	db, err := sql.Open("sqlite", c.path)
	if err != nil {
		return &StorageError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1) // SQLite serializes writers anyway; avoid lock contention

	const ddl = `CREATE TABLE IF NOT EXISTS rs (uid TEXT PRIMARY KEY, spec TEXT)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return &StorageError{Op: "create table", Err: err}
	}

	c.db = db
	return nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Save upserts the spec blob under uid. A re-save for the same UID
// replaces prior content (last-writer-wins); this is safe to call
// concurrently for distinct UIDs.
func (c *Cache) Save(ctx context.Context, uid string, spec json.RawMessage) error {
	if !json.Valid(spec) {
		return &SerializationError{UID: uid, Err: fmt.Errorf("spec is not valid JSON")}
	}

	const upsert = `
		INSERT INTO rs (uid, spec) VALUES (?, ?)
		ON CONFLICT(uid) DO UPDATE SET spec = excluded.spec`
	if _, err := c.db.ExecContext(ctx, upsert, uid, string(spec)); err != nil {
		return &StorageError{Op: "upsert", Err: err}
	}
	return nil
}

// LoadAll returns every stored spec blob. Order is unspecified. This is
// used only at cold boot.
func (c *Cache) LoadAll(ctx context.Context) ([]Record, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT uid, spec FROM rs`)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var uid, spec string
		if err := rows.Scan(&uid, &spec); err != nil {
			return nil, &StorageError{Op: "scan", Err: err}
		}
		out = append(out, Record{UID: uid, Spec: json.RawMessage(spec)})
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate rows", Err: err}
	}
	return out, nil
}
