package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/ports/secondary"
)

// CheckpointRepository implements secondary.CheckpointRepository with SQLite.
type CheckpointRepository struct {
	db DBTX
}

// NewCheckpointRepository creates a new SQLite checkpoint repository.
func NewCheckpointRepository(db DBTX) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

const checkpointColumns = `id, mission_id, created_at, trigger_type, trigger_details, progress_percent,
	sorties_snapshot, active_locks_snapshot, pending_messages_snapshot, recovery_context,
	created_by, schema_version, consumed_at`

// Create persists a new checkpoint.
func (r *CheckpointRepository) Create(ctx context.Context, cp *secondary.CheckpointRecord) error {
	if cp.ID == "" {
		return fmt.Errorf("checkpoint ID must be pre-populated by service layer")
	}

	sorties, err := toJSON(nonNil(cp.Sorties))
	if err != nil {
		return err
	}
	locks, err := toJSON(nonNil(cp.Locks))
	if err != nil {
		return err
	}
	messages, err := toJSON(nonNil(cp.Messages))
	if err != nil {
		return err
	}
	rc, err := toJSON(cp.Context)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO checkpoints ("+checkpointColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		cp.ID, cp.MissionID, formatTime(cp.CreatedAt), cp.Trigger, nullString(cp.TriggerDetails), cp.ProgressPercent,
		sorties, locks, messages, rc, nullString(cp.CreatedBy), cp.SchemaVersion, nullTime(cp.ConsumedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	return nil
}

// GetByID retrieves a checkpoint by its ID.
func (r *CheckpointRepository) GetByID(ctx context.Context, id string) (*secondary.CheckpointRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+checkpointColumns+" FROM checkpoints WHERE id = ?", id)
	record, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("checkpoint", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return record, nil
}

// List retrieves checkpoints matching the given filters, newest first.
func (r *CheckpointRepository) List(ctx context.Context, filters secondary.CheckpointFilters) ([]*secondary.CheckpointRecord, error) {
	query := "SELECT " + checkpointColumns + " FROM checkpoints WHERE 1 = 1"
	args := []any{}

	if filters.MissionID != "" {
		query += " AND mission_id = ?"
		args = append(args, filters.MissionID)
	}
	if !filters.IncludeConsumed {
		query += " AND consumed_at IS NULL"
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	return r.query(ctx, query, args...)
}

// LatestUnconsumed returns the newest un-consumed checkpoint of a mission, or nil.
func (r *CheckpointRepository) LatestUnconsumed(ctx context.Context, missionID string) (*secondary.CheckpointRecord, error) {
	list, err := r.List(ctx, secondary.CheckpointFilters{MissionID: missionID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// MarkConsumed sets consumed_at, guarded by consumed_at IS NULL unless
// re-consumption is allowed.
func (r *CheckpointRepository) MarkConsumed(ctx context.Context, id string, now time.Time, allowReconsume bool) (bool, error) {
	query := "UPDATE checkpoints SET consumed_at = ? WHERE id = ?"
	if !allowReconsume {
		query += " AND consumed_at IS NULL"
	}
	result, err := r.db.ExecContext(ctx, query, formatTime(now), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark checkpoint consumed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read consume result: %w", err)
	}
	return n == 1, nil
}

// Delete removes checkpoints by ID and returns how many were deleted.
func (r *CheckpointRepository) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM checkpoints WHERE id IN ("+placeholders(len(ids))+")",
		stringArgs(ids)...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	return n, nil
}

// MarkedThresholds returns the progress thresholds already checkpointed for a mission.
func (r *CheckpointRepository) MarkedThresholds(ctx context.Context, missionID string) (map[int]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT threshold FROM progress_marks WHERE mission_id = ?", missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress marks: %w", err)
	}
	defer rows.Close()

	marked := make(map[int]bool)
	for rows.Next() {
		var th int
		if err := rows.Scan(&th); err != nil {
			return nil, fmt.Errorf("failed to scan progress mark: %w", err)
		}
		marked[th] = true
	}
	return marked, rows.Err()
}

// MarkThresholds records thresholds as checkpointed. The primary key makes a
// second mark of the same threshold fail.
func (r *CheckpointRepository) MarkThresholds(ctx context.Context, missionID string, thresholds []int, checkpointID string, now time.Time) error {
	for _, th := range thresholds {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO progress_marks (mission_id, threshold, checkpoint_id, created_at) VALUES (?, ?, ?, ?)",
			missionID, th, checkpointID, formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("failed to mark threshold %d: %w", th, err)
		}
	}
	return nil
}

func (r *CheckpointRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.CheckpointRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*secondary.CheckpointRecord
	for rows.Next() {
		record, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, record)
	}
	return checkpoints, rows.Err()
}

func scanCheckpoint(row rowScanner) (*secondary.CheckpointRecord, error) {
	var (
		createdAt  string
		details    sql.NullString
		sorties    string
		locks      string
		messages   string
		rc         string
		createdBy  sql.NullString
		consumedAt sql.NullString
	)
	record := &secondary.CheckpointRecord{}
	if err := row.Scan(&record.ID, &record.MissionID, &createdAt, &record.Trigger, &details, &record.ProgressPercent,
		&sorties, &locks, &messages, &rc, &createdBy, &record.SchemaVersion, &consumedAt); err != nil {
		return nil, err
	}
	record.TriggerDetails = details.String
	record.CreatedBy = createdBy.String

	if err := fromJSON(sorties, &record.Sorties); err != nil {
		return nil, err
	}
	if err := fromJSON(locks, &record.Locks); err != nil {
		return nil, err
	}
	if err := fromJSON(messages, &record.Messages); err != nil {
		return nil, err
	}
	if err := fromJSON(rc, &record.Context); err != nil {
		return nil, err
	}

	var err error
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.ConsumedAt, err = parseNullTime(consumedAt); err != nil {
		return nil, err
	}
	return record, nil
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

var _ secondary.CheckpointRepository = (*CheckpointRepository)(nil)
