// Package store provides the durable SessionStore and CronStore
// implementations backed by an embedded SQLite database, grounded on
// original_source/plug/cron/scheduler.py's CronStore (WAL + foreign_keys
// pragmas, the exact cron_jobs/cron_runs schema) and
// internal/store/session_store.go's interface shape.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore opens one embedded database and serves both SessionStore and
// CronStore from it — spec §6 requires "SessionStore and CronStore are
// opened from filesystem paths" but does not require separate files, and a
// single writer connection is simplest to keep WAL-safe in one process.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path, applies
// pragmas required by spec §6 (WAL mode, foreign keys on), and runs pending
// migrations.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SessionStore/CronStore are single-writer from the single process
	// (spec §5); a single connection avoids SQLITE_BUSY entirely instead of
	// relying on busy_timeout retries.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", pragma, err)
		}
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Sessions returns a SessionStore view over this database.
func (s *SQLiteStore) Sessions() SessionStore { return &sqliteSessionStore{db: s.db} }

// Cron returns a CronStore view over this database.
func (s *SQLiteStore) Cron() CronStore { return &sqliteCronStore{db: s.db} }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable, for the health endpoint's
// store-reachability check (spec §6's health probe).
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
