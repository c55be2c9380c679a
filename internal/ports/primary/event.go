// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces through which the outside world drives the application.
package primary

import (
	"context"
	"time"

	"github.com/example/flotilla/internal/core/event"
)

// EventService defines the primary port for the append-only event log.
type EventService interface {
	// Append validates and appends events to one stream atomically, updating
	// projections in the same transaction.
	Append(ctx context.Context, streamType event.StreamType, streamID string, events []NewEvent, opts AppendOptions) ([]*Event, error)

	// GetByStream returns events of a stream with sequence > afterSequence, ascending.
	GetByStream(ctx context.Context, streamType event.StreamType, streamID string, afterSequence int64) ([]*Event, error)

	// GetByCausation returns events whose causation id is causationID, ascending.
	GetByCausation(ctx context.Context, causationID string) ([]*Event, error)

	// GetByCorrelation returns events sharing a correlation id, ascending.
	GetByCorrelation(ctx context.Context, correlationID string) ([]*Event, error)

	// GetLatestSequence returns the highest sequence ever assigned.
	GetLatestSequence(ctx context.Context) (int64, error)

	// ListRecent returns the newest events across a mission and its sorties, newest first.
	ListRecent(ctx context.Context, missionID string, limit int) ([]*Event, error)

	// Replay rebuilds a mission and its sorties from sequence 0 and compares
	// the result with the stored projections.
	Replay(ctx context.Context, missionID string) (*ReplayResult, error)
}

// NewEvent is an event to be appended.
type NewEvent struct {
	Payload     event.Payload
	CausationID string // Defaults to the previous event in the same batch
}

// AppendOptions controls optimistic concurrency for Append.
type AppendOptions struct {
	// ExpectedSequence, when set, must equal the stream head (0 for an empty stream).
	ExpectedSequence *int64
}

// ExpectSequence is a convenience for building AppendOptions.
func ExpectSequence(seq int64) AppendOptions {
	return AppendOptions{ExpectedSequence: &seq}
}

// Event represents a stored event at the port boundary.
type Event struct {
	Sequence      int64
	ID            string
	StreamType    event.StreamType
	StreamID      string
	Type          event.Type
	Payload       event.Payload
	CorrelationID string
	CausationID   string
	OccurredAt    time.Time
}

// ReplayResult contains the projections rebuilt from the log.
type ReplayResult struct {
	Mission     *Mission
	Sorties     []*Sortie
	EventCount  int
	Differences []string // Empty when the stored projections match the log
}
