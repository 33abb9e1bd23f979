package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist. The path must sit on a local filesystem;
// SQLite locking is unreliable on network mounts.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := validateSQLiteFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Basic health check + apply a few safe pragmas.
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing. Safe to call on every
// startup.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
  id               TEXT PRIMARY KEY,
  event_type       TEXT NOT NULL,
  source           TEXT NOT NULL,
  source_event_id  TEXT,
  correlation_id   TEXT,
  payload          JSON,
  headers          JSON,
  status           TEXT NOT NULL,
  received_at      TEXT NOT NULL,
  processed_at     TEXT,
  error_message    TEXT,
  retry_count      INTEGER NOT NULL DEFAULT 0,
  related_event_id TEXT,
  approval_state   TEXT,
  callback_status  TEXT,
  callback_at      TEXT
);`,
		`CREATE TABLE IF NOT EXISTS service_state (
  name       TEXT PRIMARY KEY,
  state      JSON NOT NULL DEFAULT '{}',
  updated_at TEXT
);`,
		`CREATE INDEX IF NOT EXISTS events_status_received_at_idx ON events(status, received_at);`,
		`CREATE INDEX IF NOT EXISTS events_source_received_at_idx ON events(source, received_at);`,
		`CREATE INDEX IF NOT EXISTS events_correlation_id_idx ON events(correlation_id);`,
		`CREATE INDEX IF NOT EXISTS events_source_event_id_idx ON events(source_event_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
