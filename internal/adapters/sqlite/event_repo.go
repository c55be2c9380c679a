package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/flotilla/internal/ports/secondary"
)

// EventRepository implements secondary.EventRepository with SQLite.
// It has no update or delete path, and schema triggers reject both.
type EventRepository struct {
	db DBTX
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = "sequence, id, stream_type, stream_id, event_type, payload, correlation_id, causation_id, occurred_at"

// missionStreams matches the mission stream and the streams of its sorties.
const missionStreams = `(stream_type = 'mission' AND stream_id = ?)
	OR (stream_type = 'sortie' AND stream_id IN (SELECT id FROM sorties WHERE mission_id = ?))`

// Insert appends one event and sets rec.Sequence.
func (r *EventRepository) Insert(ctx context.Context, rec *secondary.EventRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("event ID must be pre-populated by service layer")
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO events (id, stream_type, stream_id, event_type, payload, correlation_id, causation_id, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.StreamType, rec.StreamID, rec.EventType, string(rec.Payload),
		rec.CorrelationID, nullString(rec.CausationID), formatTime(rec.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read event sequence: %w", err)
	}
	rec.Sequence = seq
	return nil
}

// StreamHead returns the highest sequence in a stream, 0 when empty.
func (r *EventRepository) StreamHead(ctx context.Context, streamType, streamID string) (int64, error) {
	var head int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sequence), 0) FROM events WHERE stream_type = ? AND stream_id = ?",
		streamType, streamID,
	).Scan(&head)
	if err != nil {
		return 0, fmt.Errorf("failed to read stream head: %w", err)
	}
	return head, nil
}

// ListByStream returns events of a stream with sequence > after, ascending.
func (r *EventRepository) ListByStream(ctx context.Context, streamType, streamID string, after int64) ([]*secondary.EventRecord, error) {
	return r.query(ctx,
		"SELECT "+eventColumns+" FROM events WHERE stream_type = ? AND stream_id = ? AND sequence > ? ORDER BY sequence ASC",
		streamType, streamID, after,
	)
}

// ListByCausation returns events caused by causationID, ascending.
func (r *EventRepository) ListByCausation(ctx context.Context, causationID string) ([]*secondary.EventRecord, error) {
	return r.query(ctx,
		"SELECT "+eventColumns+" FROM events WHERE causation_id = ? ORDER BY sequence ASC",
		causationID,
	)
}

// ListByCorrelation returns events sharing correlationID, ascending.
func (r *EventRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]*secondary.EventRecord, error) {
	return r.query(ctx,
		"SELECT "+eventColumns+" FROM events WHERE correlation_id = ? ORDER BY sequence ASC",
		correlationID,
	)
}

// LatestSequence returns the highest sequence ever assigned. sqlite_sequence
// is authoritative for AUTOINCREMENT tables; MAX covers a database where it
// has not been written yet.
func (r *EventRepository) LatestSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT seq FROM sqlite_sequence WHERE name = 'events'), 0),
			COALESCE((SELECT MAX(sequence) FROM events), 0)
		)`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest sequence: %w", err)
	}
	return seq, nil
}

// ListRecentForMission returns the newest events across the mission's streams, newest first.
func (r *EventRepository) ListRecentForMission(ctx context.Context, missionID string, limit int) ([]*secondary.EventRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.query(ctx,
		"SELECT "+eventColumns+" FROM events WHERE "+missionStreams+" ORDER BY sequence DESC LIMIT ?",
		missionID, missionID, limit,
	)
}

// LastActivityForMission returns the occurred_at of the newest event across the mission's streams.
func (r *EventRepository) LastActivityForMission(ctx context.Context, missionID string) (time.Time, bool, error) {
	var last sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT MAX(occurred_at) FROM events WHERE "+missionStreams,
		missionID, missionID,
	).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last activity: %w", err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	at, err := parseTime(last.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

func (r *EventRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.EventRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*secondary.EventRecord
	for rows.Next() {
		var (
			payload    string
			causation  sql.NullString
			occurredAt string
		)
		rec := &secondary.EventRecord{}
		if err := rows.Scan(&rec.Sequence, &rec.ID, &rec.StreamType, &rec.StreamID, &rec.EventType,
			&payload, &rec.CorrelationID, &causation, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec.Payload = []byte(payload)
		rec.CausationID = causation.String
		if rec.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

var _ secondary.EventRepository = (*EventRepository)(nil)
