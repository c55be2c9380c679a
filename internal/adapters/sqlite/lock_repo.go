package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/ports/secondary"
)

// LockRepository implements secondary.LockRepository with SQLite.
// Times are unix milliseconds so activity is decided inside the statement.
type LockRepository struct {
	db DBTX
}

// NewLockRepository creates a new SQLite lock repository.
func NewLockRepository(db DBTX) *LockRepository {
	return &LockRepository{db: db}
}

const lockColumns = "id, resource_key, holder_id, purpose, acquired_at_ms, released_at_ms, release_reason, timeout_ms"

// activeLock is the predicate for "unreleased and not timed out" given now in ms.
const activeLock = "released_at_ms IS NULL AND ? - acquired_at_ms < timeout_ms"

// TryInsert inserts rec only when no active lock exists on its resource key.
// The guard and the insert are one statement, and the partial unique index on
// unreleased keys rejects anything that slips past it.
func (r *LockRepository) TryInsert(ctx context.Context, rec *secondary.LockRecord, now time.Time) (bool, error) {
	if rec.ID == "" {
		return false, fmt.Errorf("lock ID must be pre-populated by service layer")
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO locks (id, resource_key, holder_id, purpose, acquired_at_ms, timeout_ms)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM locks WHERE resource_key = ? AND `+activeLock+`
		)`,
		rec.ID, rec.ResourceKey, rec.HolderID, nullString(rec.Purpose), rec.AcquiredAt.UnixMilli(), rec.TimeoutMs,
		rec.ResourceKey, now.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert lock: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lock insert result: %w", err)
	}
	return n == 1, nil
}

// ActiveForResource returns the active lock on a key, or nil.
func (r *LockRepository) ActiveForResource(ctx context.Context, resourceKey string, now time.Time) (*secondary.LockRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+lockColumns+" FROM locks WHERE resource_key = ? AND "+activeLock+" LIMIT 1",
		resourceKey, now.UnixMilli(),
	)
	record, err := scanLock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active lock: %w", err)
	}
	return record, nil
}

// GetByID retrieves a lock by its ID.
func (r *LockRepository) GetByID(ctx context.Context, id string) (*secondary.LockRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+lockColumns+" FROM locks WHERE id = ?", id)
	record, err := scanLock(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("lock", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}
	return record, nil
}

// MarkReleased sets released_at when the lock is still unreleased.
func (r *LockRepository) MarkReleased(ctx context.Context, id string, now time.Time, reason string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE locks SET released_at_ms = ?, release_reason = ? WHERE id = ? AND released_at_ms IS NULL",
		now.UnixMilli(), nullString(reason), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to release lock: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read release result: %w", err)
	}
	return n == 1, nil
}

// ListActive returns unreleased, unexpired locks ordered by acquisition.
func (r *LockRepository) ListActive(ctx context.Context, now time.Time) ([]*secondary.LockRecord, error) {
	return r.query(ctx,
		"SELECT "+lockColumns+" FROM locks WHERE "+activeLock+" ORDER BY acquired_at_ms ASC, id ASC",
		now.UnixMilli(),
	)
}

// ListActiveByHolders returns active locks held by any of holderIDs.
func (r *LockRepository) ListActiveByHolders(ctx context.Context, holderIDs []string, now time.Time) ([]*secondary.LockRecord, error) {
	if len(holderIDs) == 0 {
		return nil, nil
	}
	args := append([]any{now.UnixMilli()}, stringArgs(holderIDs)...)
	return r.query(ctx,
		"SELECT "+lockColumns+" FROM locks WHERE "+activeLock+" AND holder_id IN ("+placeholders(len(holderIDs))+") ORDER BY acquired_at_ms ASC, id ASC",
		args...,
	)
}

// ReleaseExpired releases every expired lock (optionally on one key) in a
// single UPDATE and returns how many were released.
func (r *LockRepository) ReleaseExpired(ctx context.Context, resourceKey string, now time.Time) (int64, error) {
	query := "UPDATE locks SET released_at_ms = ?, release_reason = 'expired' WHERE released_at_ms IS NULL AND ? - acquired_at_ms >= timeout_ms"
	args := []any{now.UnixMilli(), now.UnixMilli()}
	if resourceKey != "" {
		query += " AND resource_key = ?"
		args = append(args, resourceKey)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired locks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read expiry result: %w", err)
	}
	return n, nil
}

func (r *LockRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.LockRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	defer rows.Close()

	var locks []*secondary.LockRecord
	for rows.Next() {
		record, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lock: %w", err)
		}
		locks = append(locks, record)
	}
	return locks, rows.Err()
}

func scanLock(row rowScanner) (*secondary.LockRecord, error) {
	var (
		purpose    sql.NullString
		acquiredMs int64
		releasedMs sql.NullInt64
		reason     sql.NullString
	)
	record := &secondary.LockRecord{}
	if err := row.Scan(&record.ID, &record.ResourceKey, &record.HolderID, &purpose,
		&acquiredMs, &releasedMs, &reason, &record.TimeoutMs); err != nil {
		return nil, err
	}
	record.Purpose = purpose.String
	record.ReleaseReason = reason.String
	record.AcquiredAt = time.UnixMilli(acquiredMs).UTC()
	if releasedMs.Valid {
		t := time.UnixMilli(releasedMs.Int64).UTC()
		record.ReleasedAt = &t
	}
	return record, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

var _ secondary.LockRepository = (*LockRepository)(nil)
