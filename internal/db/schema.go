package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(). When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Bump the version list so fresh installs mark it applied
//
// Timestamps are stored as fixed-width UTC text (see sqlite.formatTime) so
// they sort lexicographically. Lock times are unix milliseconds so expiry can
// be evaluated inside a single statement.
const SchemaSQL = `
-- Event log (append-only)
CREATE TABLE IF NOT EXISTS events (
	sequence INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	stream_type TEXT NOT NULL CHECK(stream_type IN ('mission', 'sortie')),
	stream_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	causation_id TEXT,
	occurred_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_type, stream_id, sequence);
CREATE INDEX IF NOT EXISTS idx_events_causation ON events(causation_id);
CREATE INDEX IF NOT EXISTS idx_events_correlation ON events(correlation_id);

CREATE TRIGGER IF NOT EXISTS events_no_update BEFORE UPDATE ON events
BEGIN
	SELECT RAISE(ABORT, 'events are append-only');
END;

CREATE TRIGGER IF NOT EXISTS events_no_delete BEFORE DELETE ON events
BEGIN
	SELECT RAISE(ABORT, 'events are append-only');
END;

-- Missions (projection of mission streams)
CREATE TABLE IF NOT EXISTS missions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL CHECK(status IN ('planned', 'in_progress', 'paused', 'completed', 'failed', 'cancelled')) DEFAULT 'planned',
	progress_percent INTEGER NOT NULL DEFAULT 0,
	tasks TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	started_at TEXT,
	completed_at TEXT,
	last_sequence INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_missions_status ON missions(status);

-- Sorties (projection of sortie streams)
CREATE TABLE IF NOT EXISTS sorties (
	id TEXT PRIMARY KEY,
	mission_id TEXT NOT NULL,
	title TEXT NOT NULL,
	agent_id TEXT,
	status TEXT NOT NULL CHECK(status IN ('planned', 'in_progress', 'paused', 'completed', 'failed', 'cancelled')) DEFAULT 'planned',
	progress_percent INTEGER NOT NULL DEFAULT 0,
	tasks TEXT NOT NULL DEFAULT '[]',
	tasks_done TEXT NOT NULL DEFAULT '[]',
	files_modified TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	last_sequence INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sorties_mission ON sorties(mission_id);

-- Locks (resource registry)
CREATE TABLE IF NOT EXISTS locks (
	id TEXT PRIMARY KEY,
	resource_key TEXT NOT NULL,
	holder_id TEXT NOT NULL,
	purpose TEXT,
	acquired_at_ms INTEGER NOT NULL,
	released_at_ms INTEGER,
	release_reason TEXT,
	timeout_ms INTEGER NOT NULL CHECK(timeout_ms > 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_locks_unreleased_resource ON locks(resource_key) WHERE released_at_ms IS NULL;
CREATE INDEX IF NOT EXISTS idx_locks_holder ON locks(holder_id);

-- Messages (queued between aggregates)
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	stream_id TEXT NOT NULL,
	sender TEXT,
	payload TEXT NOT NULL,
	delivered INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	delivered_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_messages_pending ON messages(stream_id, delivered);

-- Checkpoints (immutable except consumed_at)
CREATE TABLE IF NOT EXISTS checkpoints (
	id TEXT PRIMARY KEY,
	mission_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	trigger_type TEXT NOT NULL CHECK(trigger_type IN ('manual', 'progress', 'error')),
	trigger_details TEXT,
	progress_percent INTEGER NOT NULL DEFAULT 0,
	sorties_snapshot TEXT NOT NULL DEFAULT '[]',
	active_locks_snapshot TEXT NOT NULL DEFAULT '[]',
	pending_messages_snapshot TEXT NOT NULL DEFAULT '[]',
	recovery_context TEXT NOT NULL DEFAULT '{}',
	created_by TEXT,
	schema_version INTEGER NOT NULL,
	consumed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_mission ON checkpoints(mission_id, created_at);

-- Progress marks (one automatic checkpoint per mission threshold)
CREATE TABLE IF NOT EXISTS progress_marks (
	mission_id TEXT NOT NULL,
	threshold INTEGER NOT NULL,
	checkpoint_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (mission_id, threshold)
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// InitSchema creates the schema on a fresh database or runs pending
// migrations on an existing one.
func InitSchema(db *sql.DB) error {
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('schema_version', 'events')").Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	if tableCount > 0 {
		return RunMigrations(db)
	}

	// Completely fresh install - create the current schema directly and
	// mark every migration as applied.
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	for _, m := range migrations {
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return tx.Commit()
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
