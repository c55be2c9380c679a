package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_event_log_and_projections",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_progress_marks",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_lock_release_reason",
		Up:      migrationV3,
	},
}

// LatestVersion returns the highest known migration version.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// RunMigrations executes all pending migrations, each in its own transaction.
func RunMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
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

		CREATE TABLE IF NOT EXISTS locks (
			id TEXT PRIMARY KEY,
			resource_key TEXT NOT NULL,
			holder_id TEXT NOT NULL,
			purpose TEXT,
			acquired_at_ms INTEGER NOT NULL,
			released_at_ms INTEGER,
			timeout_ms INTEGER NOT NULL CHECK(timeout_ms > 0)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_locks_unreleased_resource ON locks(resource_key) WHERE released_at_ms IS NULL;
		CREATE INDEX IF NOT EXISTS idx_locks_holder ON locks(holder_id);

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
	`)
	return err
}

func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS progress_marks (
			mission_id TEXT NOT NULL,
			threshold INTEGER NOT NULL,
			checkpoint_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (mission_id, threshold)
		)
	`)
	return err
}

func migrationV3(tx *sql.Tx) error {
	exists, err := columnExists(tx, "locks", "release_reason")
	if err != nil || exists {
		return err
	}
	_, err = tx.Exec(`ALTER TABLE locks ADD COLUMN release_reason TEXT`)
	return err
}

func columnExists(tx *sql.Tx, table, column string) (bool, error) {
	var count int
	err := tx.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	return count > 0, nil
}
