package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/ports/secondary"
)

// MessageServiceImpl implements the MessageService interface.
type MessageServiceImpl struct {
	store  secondary.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewMessageService creates a new MessageService with injected dependencies.
func NewMessageService(store secondary.Store, logger zerolog.Logger) *MessageServiceImpl {
	return &MessageServiceImpl{
		store:  store,
		logger: logger.With().Str("component", "messages").Logger(),
		now:    time.Now,
	}
}

// Send queues a message on a stream.
func (s *MessageServiceImpl) Send(ctx context.Context, req primary.SendMessageRequest) (*primary.Message, error) {
	if strings.TrimSpace(req.StreamID) == "" {
		return nil, errs.Validation("stream_id", "required")
	}
	if req.Payload == "" {
		return nil, errs.Validation("payload", "required")
	}

	rec := &secondary.MessageRecord{
		ID:        newMessageID(),
		StreamID:  req.StreamID,
		Sender:    req.Sender,
		Payload:   req.Payload,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Repositories().Messages.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("message_id", rec.ID).Str("stream_id", rec.StreamID).Msg("message queued")
	return messageToDTO(rec), nil
}

// Get retrieves a message by ID.
func (s *MessageServiceImpl) Get(ctx context.Context, messageID string) (*primary.Message, error) {
	rec, err := s.store.Repositories().Messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return messageToDTO(rec), nil
}

// ListPending lists undelivered messages on any of the streams.
func (s *MessageServiceImpl) ListPending(ctx context.Context, streamIDs []string) ([]*primary.Message, error) {
	if len(streamIDs) == 0 {
		return []*primary.Message{}, nil
	}
	records, err := s.store.Repositories().Messages.ListPending(ctx, streamIDs)
	if err != nil {
		return nil, err
	}
	messages := make([]*primary.Message, len(records))
	for i, r := range records {
		messages[i] = messageToDTO(r)
	}
	return messages, nil
}

// MarkDelivered marks a message as delivered.
func (s *MessageServiceImpl) MarkDelivered(ctx context.Context, messageID string) error {
	return s.store.Repositories().Messages.MarkDelivered(ctx, messageID, s.now().UTC())
}

func newMessageID() string {
	return "msg-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func messageToDTO(r *secondary.MessageRecord) *primary.Message {
	return &primary.Message{
		ID:          r.ID,
		StreamID:    r.StreamID,
		Sender:      r.Sender,
		Payload:     r.Payload,
		Delivered:   r.Delivered,
		CreatedAt:   r.CreatedAt,
		DeliveredAt: r.DeliveredAt,
	}
}

// Ensure MessageServiceImpl implements the interface
var _ primary.MessageService = (*MessageServiceImpl)(nil)
