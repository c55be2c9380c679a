package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/flotilla/internal/core/errs"
	coremission "github.com/example/flotilla/internal/core/mission"
	"github.com/example/flotilla/internal/ports/secondary"
)

// SortieRepository implements secondary.SortieRepository with SQLite.
type SortieRepository struct {
	db DBTX
}

// NewSortieRepository creates a new SQLite sortie repository.
func NewSortieRepository(db DBTX) *SortieRepository {
	return &SortieRepository{db: db}
}

const sortieColumns = "id, mission_id, title, agent_id, status, progress_percent, tasks, tasks_done, files_modified, created_at, updated_at, last_sequence"

// GetByID retrieves a sortie by its ID.
func (r *SortieRepository) GetByID(ctx context.Context, id string) (*secondary.SortieRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+sortieColumns+" FROM sorties WHERE id = ?", id)
	record, err := scanSortie(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("sortie", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sortie: %w", err)
	}
	return record, nil
}

// ListByMission retrieves the sorties of a mission ordered by ID.
func (r *SortieRepository) ListByMission(ctx context.Context, missionID string) ([]*secondary.SortieRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sortieColumns+" FROM sorties WHERE mission_id = ? ORDER BY id ASC",
		missionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sorties: %w", err)
	}
	defer rows.Close()

	var sorties []*secondary.SortieRecord
	for rows.Next() {
		record, err := scanSortie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sortie: %w", err)
		}
		sorties = append(sorties, record)
	}
	return sorties, rows.Err()
}

// Save inserts or updates the projection row in place; created_at is kept
// from the first write.
func (r *SortieRepository) Save(ctx context.Context, s *secondary.SortieRecord) error {
	if s.ID == "" {
		return fmt.Errorf("sortie ID must be pre-populated by service layer")
	}
	tasks, err := stringList(s.Tasks)
	if err != nil {
		return err
	}
	done, err := stringList(s.TasksDone)
	if err != nil {
		return err
	}
	files, err := stringList(s.FilesModified)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sorties (`+sortieColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			agent_id = excluded.agent_id,
			status = excluded.status,
			progress_percent = excluded.progress_percent,
			tasks = excluded.tasks,
			tasks_done = excluded.tasks_done,
			files_modified = excluded.files_modified,
			updated_at = excluded.updated_at,
			last_sequence = excluded.last_sequence`,
		s.ID, s.MissionID, s.Title, nullString(s.AgentID), s.Status, s.ProgressPercent, tasks, done, files,
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt), s.LastSequence,
	)
	if err != nil {
		return fmt.Errorf("failed to save sortie: %w", err)
	}
	return nil
}

// GetNextID returns the next available sortie ID.
func (r *SortieRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(SUBSTR(id, 8) AS INTEGER)), 0) FROM sorties",
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next sortie ID: %w", err)
	}

	return coremission.GenerateSortieID(maxID), nil
}

func scanSortie(row rowScanner) (*secondary.SortieRecord, error) {
	var (
		agent     sql.NullString
		tasks     string
		done      string
		files     string
		createdAt string
		updatedAt string
	)
	record := &secondary.SortieRecord{}
	if err := row.Scan(&record.ID, &record.MissionID, &record.Title, &agent, &record.Status, &record.ProgressPercent,
		&tasks, &done, &files, &createdAt, &updatedAt, &record.LastSequence); err != nil {
		return nil, err
	}

	record.AgentID = agent.String
	for _, col := range []struct {
		raw  string
		dest *[]string
	}{{tasks, &record.Tasks}, {done, &record.TasksDone}, {files, &record.FilesModified}} {
		if err := fromJSON(col.raw, col.dest); err != nil {
			return nil, err
		}
		if len(*col.dest) == 0 {
			*col.dest = nil
		}
	}

	var err error
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return record, nil
}

var _ secondary.SortieRepository = (*SortieRepository)(nil)
