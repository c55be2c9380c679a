package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/ports/secondary"
)

// MessageRepository implements secondary.MessageRepository with SQLite.
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new SQLite message repository.
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = "id, stream_id, sender, payload, delivered, created_at, delivered_at"

// Create persists a new message.
func (r *MessageRepository) Create(ctx context.Context, message *secondary.MessageRecord) error {
	if message.ID == "" {
		return fmt.Errorf("message ID must be pre-populated by service layer")
	}
	delivered := 0
	if message.Delivered {
		delivered = 1
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO messages ("+messageColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		message.ID, message.StreamID, nullString(message.Sender), message.Payload, delivered,
		formatTime(message.CreatedAt), nullTime(message.DeliveredAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByID retrieves a message by its ID.
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*secondary.MessageRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	record, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("message", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return record, nil
}

// ListPending retrieves undelivered messages on any of the streams, oldest first.
func (r *MessageRepository) ListPending(ctx context.Context, streamIDs []string) ([]*secondary.MessageRecord, error) {
	if len(streamIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE delivered = 0 AND stream_id IN ("+placeholders(len(streamIDs))+") ORDER BY created_at ASC, id ASC",
		stringArgs(streamIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*secondary.MessageRecord
	for rows.Next() {
		record, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, record)
	}
	return messages, rows.Err()
}

// MarkDelivered marks a message as delivered.
func (r *MessageRepository) MarkDelivered(ctx context.Context, id string, now time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE messages SET delivered = 1, delivered_at = ? WHERE id = ?",
		formatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errs.NotFound("message", id)
	}

	return nil
}

func scanMessage(row rowScanner) (*secondary.MessageRecord, error) {
	var (
		sender      sql.NullString
		delivered   int
		createdAt   string
		deliveredAt sql.NullString
	)
	record := &secondary.MessageRecord{}
	if err := row.Scan(&record.ID, &record.StreamID, &sender, &record.Payload, &delivered, &createdAt, &deliveredAt); err != nil {
		return nil, err
	}
	record.Sender = sender.String
	record.Delivered = delivered == 1

	var err error
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.DeliveredAt, err = parseNullTime(deliveredAt); err != nil {
		return nil, err
	}
	return record, nil
}

var _ secondary.MessageRepository = (*MessageRepository)(nil)
