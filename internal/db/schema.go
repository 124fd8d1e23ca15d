package db

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the version recorded for the schema below.
const SchemaVersion = 1

// SchemaSQL is the complete schema for the build report store.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Tests use it via
// GetSchemaSQL() instead of hardcoding CREATE TABLE statements, so a
// repository query referencing a missing column fails at test time.
const SchemaSQL = `
-- One row per build invocation
CREATE TABLE IF NOT EXISTS build_runs (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	data_path TEXT NOT NULL,
	locale TEXT NOT NULL,
	events INTEGER NOT NULL DEFAULT 0,
	chapters INTEGER NOT NULL DEFAULT 0,
	entries INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_build_runs_started ON build_runs(started_at);

-- Diagnostics and failures collected during a run
CREATE TABLE IF NOT EXISTS build_problems (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	file TEXT,
	message TEXT NOT NULL,
	fatal INTEGER NOT NULL DEFAULT 0 CHECK(fatal IN (0, 1)),
	FOREIGN KEY (run_id) REFERENCES build_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_build_problems_run ON build_problems(run_id);
`

// InitSchema creates the schema and records its version.
func InitSchema(conn *sql.DB) error {
	if _, err := conn.Exec(SchemaSQL); err != nil {
		return err
	}
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	var current sql.NullInt64
	if err := conn.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&current); err != nil {
		return err
	}
	if current.Valid && current.Int64 > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current.Int64, SchemaVersion)
	}
	if !current.Valid || current.Int64 < SchemaVersion {
		if _, err := conn.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
			return err
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}

// Version returns the schema version recorded in the database.
func Version(conn *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := conn.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}
