package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/flotilla/internal/core/errs"
	coremission "github.com/example/flotilla/internal/core/mission"
	"github.com/example/flotilla/internal/ports/secondary"
)

// MissionRepository implements secondary.MissionRepository with SQLite.
type MissionRepository struct {
	db DBTX
}

// NewMissionRepository creates a new SQLite mission repository.
func NewMissionRepository(db DBTX) *MissionRepository {
	return &MissionRepository{db: db}
}

const missionColumns = "id, title, description, status, progress_percent, tasks, metadata, created_at, updated_at, started_at, completed_at, last_sequence"

// GetByID retrieves a mission by its ID.
func (r *MissionRepository) GetByID(ctx context.Context, id string) (*secondary.MissionRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+missionColumns+" FROM missions WHERE id = ?", id)
	record, err := scanMission(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("mission", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	return record, nil
}

// List retrieves missions matching the given filters.
func (r *MissionRepository) List(ctx context.Context, filters secondary.MissionFilters) ([]*secondary.MissionRecord, error) {
	query := "SELECT " + missionColumns + " FROM missions"
	args := []any{}

	if filters.Status != "" {
		query += " WHERE status = ?"
		args = append(args, filters.Status)
	}

	query += " ORDER BY id ASC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	var missions []*secondary.MissionRecord
	for rows.Next() {
		record, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		missions = append(missions, record)
	}
	return missions, rows.Err()
}

// Save inserts or updates the projection row. created_at is kept from the
// first write.
func (r *MissionRepository) Save(ctx context.Context, m *secondary.MissionRecord) error {
	if m.ID == "" {
		return fmt.Errorf("mission ID must be pre-populated by service layer")
	}
	tasks, err := stringList(m.Tasks)
	if err != nil {
		return err
	}
	metadata := m.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := toJSON(metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO missions (`+missionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			progress_percent = excluded.progress_percent,
			tasks = excluded.tasks,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			last_sequence = excluded.last_sequence`,
		m.ID, m.Title, nullString(m.Description), m.Status, m.ProgressPercent, tasks, meta,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt), nullTime(m.StartedAt), nullTime(m.CompletedAt), m.LastSequence,
	)
	if err != nil {
		return fmt.Errorf("failed to save mission: %w", err)
	}
	return nil
}

// GetNextID returns the next available mission ID.
// Uses core function for ID format to keep business logic in the functional core.
func (r *MissionRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(SUBSTR(id, 9) AS INTEGER)), 0) FROM missions",
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next mission ID: %w", err)
	}

	return coremission.GenerateMissionID(maxID), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMission(row rowScanner) (*secondary.MissionRecord, error) {
	var (
		desc        sql.NullString
		tasks       string
		meta        string
		createdAt   string
		updatedAt   string
		startedAt   sql.NullString
		completedAt sql.NullString
	)
	record := &secondary.MissionRecord{}
	if err := row.Scan(&record.ID, &record.Title, &desc, &record.Status, &record.ProgressPercent,
		&tasks, &meta, &createdAt, &updatedAt, &startedAt, &completedAt, &record.LastSequence); err != nil {
		return nil, err
	}

	record.Description = desc.String
	if err := fromJSON(tasks, &record.Tasks); err != nil {
		return nil, err
	}
	if err := fromJSON(meta, &record.Metadata); err != nil {
		return nil, err
	}
	if len(record.Metadata) == 0 {
		record.Metadata = nil
	}
	if len(record.Tasks) == 0 {
		record.Tasks = nil
	}

	var err error
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if record.StartedAt, err = parseNullTime(startedAt); err != nil {
		return nil, err
	}
	if record.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	return record, nil
}

var _ secondary.MissionRepository = (*MissionRepository)(nil)
