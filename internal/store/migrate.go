package store

import (
	"database/sql"
	"fmt"
)

// schemaStatements creates the sessions/messages/cron_jobs/cron_runs tables
// and the indexes spec §6 requires: messages(channel_id, id),
// messages(channel_id, compacted), cron_jobs(enabled, next_run),
// cron_runs(job_id, started_at). "channel_id" in that list is this schema's
// "location" column — the opaque partition key spec §3 defines.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		location   TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		location      TEXT NOT NULL REFERENCES sessions(location) ON DELETE CASCADE,
		role          TEXT NOT NULL,
		content       TEXT NOT NULL DEFAULT '',
		tool_calls    TEXT,
		tool_call_id  TEXT,
		tool_name     TEXT,
		token_count   INTEGER NOT NULL DEFAULT 0,
		compacted     INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_location_id ON messages(location, id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_location_compacted ON messages(location, compacted)`,
	`CREATE TABLE IF NOT EXISTS cron_jobs (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		enabled            INTEGER NOT NULL DEFAULT 1,
		schedule_kind      TEXT NOT NULL,
		schedule_at        REAL,
		schedule_every_ms  INTEGER,
		schedule_cron_expr TEXT,
		schedule_tz        TEXT,
		payload_kind       TEXT NOT NULL,
		payload_text       TEXT NOT NULL DEFAULT '',
		payload_model      TEXT,
		payload_timeout_s  INTEGER NOT NULL DEFAULT 0,
		target_location    TEXT,
		next_run           REAL,
		last_run           REAL,
		run_count          INTEGER NOT NULL DEFAULT 0,
		created_at         REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cron_jobs_enabled_next_run ON cron_jobs(enabled, next_run)`,
	`CREATE TABLE IF NOT EXISTS cron_runs (
		id          TEXT PRIMARY KEY,
		job_id      TEXT NOT NULL REFERENCES cron_jobs(id) ON DELETE CASCADE,
		started_at  REAL NOT NULL,
		finished_at REAL,
		status      TEXT NOT NULL,
		result_text TEXT,
		error_text  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cron_runs_job_started ON cron_runs(job_id, started_at)`,
}

// applyMigrations creates the schema if it does not already exist. There is
// no forward-migration machinery beyond CREATE-IF-NOT-EXISTS: this store has
// only ever shipped one schema version.
func applyMigrations(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: apply schema: %w", err)
		}
	}
	return nil
}
