package primary

import (
	"context"
	"time"
)

// MessageService defines the primary port for messages queued between aggregates.
type MessageService interface {
	// Send queues a message on a stream.
	Send(ctx context.Context, req SendMessageRequest) (*Message, error)

	// Get retrieves a message by ID.
	Get(ctx context.Context, messageID string) (*Message, error)

	// ListPending lists undelivered messages on any of the streams.
	ListPending(ctx context.Context, streamIDs []string) ([]*Message, error)

	// MarkDelivered marks a message as delivered.
	MarkDelivered(ctx context.Context, messageID string) error
}

// SendMessageRequest contains parameters for sending a message.
type SendMessageRequest struct {
	StreamID string
	Sender   string
	Payload  string
}

// Message represents a message at the port boundary.
type Message struct {
	ID          string
	StreamID    string
	Sender      string
	Payload     string
	Delivered   bool
	CreatedAt   time.Time
	DeliveredAt *time.Time
}
