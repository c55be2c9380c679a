// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"

	"github.com/example/flotilla/internal/core/checkpoint"
)

// Repositories bundles every repository bound to the same connection or
// transaction. A bundle handed out by WithinTx must not be used after the
// callback returns.
type Repositories struct {
	Events      EventRepository
	Missions    MissionRepository
	Sorties     SortieRepository
	Locks       LockRepository
	Messages    MessageRepository
	Checkpoints CheckpointRepository
}

// Store is the secondary port for the embedded relational store.
type Store interface {
	// Repositories returns repositories bound to the plain connection.
	Repositories() Repositories

	// WithinTx runs fn inside one write transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}

// EventRepository defines the secondary port for the append-only event log.
// It has no update or delete operations.
type EventRepository interface {
	// Insert appends one event and sets rec.Sequence.
	Insert(ctx context.Context, rec *EventRecord) error

	// StreamHead returns the highest sequence in a stream, 0 when empty.
	StreamHead(ctx context.Context, streamType, streamID string) (int64, error)

	// ListByStream returns events of a stream with sequence > after, ascending.
	ListByStream(ctx context.Context, streamType, streamID string, after int64) ([]*EventRecord, error)

	// ListByCausation returns events caused by the given event id, ascending.
	ListByCausation(ctx context.Context, causationID string) ([]*EventRecord, error)

	// ListByCorrelation returns events sharing a correlation id, ascending.
	ListByCorrelation(ctx context.Context, correlationID string) ([]*EventRecord, error)

	// LatestSequence returns the highest sequence ever assigned.
	LatestSequence(ctx context.Context) (int64, error)

	// ListRecentForMission returns the newest events across a mission's
	// stream and its sorties' streams, newest first.
	ListRecentForMission(ctx context.Context, missionID string, limit int) ([]*EventRecord, error)

	// LastActivityForMission returns the occurred_at of the newest event
	// across the mission's streams. ok is false when there are none.
	LastActivityForMission(ctx context.Context, missionID string) (at time.Time, ok bool, err error)
}

// EventRecord represents an event as stored in persistence.
type EventRecord struct {
	Sequence      int64
	ID            string
	StreamType    string
	StreamID      string
	EventType     string
	Payload       []byte // JSON
	CorrelationID string
	CausationID   string // Empty string means null
	OccurredAt    time.Time
}

// MissionRepository defines the secondary port for the mission projection.
type MissionRepository interface {
	// GetByID retrieves a mission by its ID.
	GetByID(ctx context.Context, id string) (*MissionRecord, error)

	// List retrieves missions matching the given filters.
	List(ctx context.Context, filters MissionFilters) ([]*MissionRecord, error)

	// Save inserts or replaces the projection row, preserving created_at.
	Save(ctx context.Context, mission *MissionRecord) error

	// GetNextID returns the next available mission ID.
	GetNextID(ctx context.Context) (string, error)
}

// MissionRecord represents a mission projection row.
type MissionRecord struct {
	ID              string
	Title           string
	Description     string
	Status          string
	ProgressPercent int
	Tasks           []string
	Metadata        map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastSequence    int64
}

// MissionFilters contains filter options for querying missions.
type MissionFilters struct {
	Status string
	Limit  int
}

// SortieRepository defines the secondary port for the sortie projection.
type SortieRepository interface {
	// GetByID retrieves a sortie by its ID.
	GetByID(ctx context.Context, id string) (*SortieRecord, error)

	// ListByMission retrieves the sorties of a mission ordered by ID.
	ListByMission(ctx context.Context, missionID string) ([]*SortieRecord, error)

	// Save inserts or updates the projection row in place, preserving created_at.
	Save(ctx context.Context, sortie *SortieRecord) error

	// GetNextID returns the next available sortie ID.
	GetNextID(ctx context.Context) (string, error)
}

// SortieRecord represents a sortie projection row.
type SortieRecord struct {
	ID              string
	MissionID       string
	Title           string
	AgentID         string
	Status          string
	ProgressPercent int
	Tasks           []string
	TasksDone       []string
	FilesModified   []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastSequence    int64
}

// LockRepository defines the secondary port for lock records.
type LockRepository interface {
	// TryInsert inserts rec only when no active lock exists on its resource
	// key, as a single statement. inserted is false when the guard failed.
	TryInsert(ctx context.Context, rec *LockRecord, now time.Time) (inserted bool, err error)

	// ActiveForResource returns the active lock on a key, or nil.
	ActiveForResource(ctx context.Context, resourceKey string, now time.Time) (*LockRecord, error)

	// GetByID retrieves a lock by its ID.
	GetByID(ctx context.Context, id string) (*LockRecord, error)

	// MarkReleased sets released_at when still unreleased. released is false
	// when someone else released it first.
	MarkReleased(ctx context.Context, id string, now time.Time, reason string) (released bool, err error)

	// ListActive returns unreleased, unexpired locks ordered by acquisition.
	ListActive(ctx context.Context, now time.Time) ([]*LockRecord, error)

	// ListActiveByHolders returns active locks held by any of holderIDs.
	ListActiveByHolders(ctx context.Context, holderIDs []string, now time.Time) ([]*LockRecord, error)

	// ReleaseExpired releases every expired lock, optionally limited to one
	// resource key, as a single statement and returns the count.
	ReleaseExpired(ctx context.Context, resourceKey string, now time.Time) (int64, error)
}

// LockRecord represents a lock as stored in persistence.
type LockRecord struct {
	ID            string
	ResourceKey   string
	HolderID      string
	Purpose       string
	AcquiredAt    time.Time
	ReleasedAt    *time.Time
	ReleaseReason string
	TimeoutMs     int64
}

// MessageRepository defines the secondary port for inter-aggregate messages.
type MessageRepository interface {
	// Create persists a new message.
	Create(ctx context.Context, message *MessageRecord) error

	// GetByID retrieves a message by its ID.
	GetByID(ctx context.Context, id string) (*MessageRecord, error)

	// ListPending retrieves undelivered messages on any of the streams, oldest first.
	ListPending(ctx context.Context, streamIDs []string) ([]*MessageRecord, error)

	// MarkDelivered marks a message as delivered.
	MarkDelivered(ctx context.Context, id string, now time.Time) error
}

// MessageRecord represents a message as stored in persistence.
type MessageRecord struct {
	ID          string
	StreamID    string
	Sender      string
	Payload     string
	Delivered   bool
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// CheckpointRepository defines the secondary port for checkpoint persistence.
type CheckpointRepository interface {
	// Create persists a new checkpoint.
	Create(ctx context.Context, cp *CheckpointRecord) error

	// GetByID retrieves a checkpoint by its ID.
	GetByID(ctx context.Context, id string) (*CheckpointRecord, error)

	// List retrieves checkpoints matching the given filters, newest first.
	List(ctx context.Context, filters CheckpointFilters) ([]*CheckpointRecord, error)

	// LatestUnconsumed returns the newest un-consumed checkpoint of a mission, or nil.
	LatestUnconsumed(ctx context.Context, missionID string) (*CheckpointRecord, error)

	// MarkConsumed sets consumed_at. Unless allowReconsume, only an
	// un-consumed row is updated; updated reports whether a row changed.
	MarkConsumed(ctx context.Context, id string, now time.Time, allowReconsume bool) (updated bool, err error)

	// Delete removes checkpoints by ID and returns how many were deleted.
	Delete(ctx context.Context, ids []string) (int64, error)

	// MarkedThresholds returns the progress thresholds already checkpointed for a mission.
	MarkedThresholds(ctx context.Context, missionID string) (map[int]bool, error)

	// MarkThresholds records thresholds as checkpointed. It fails if any
	// threshold is already marked.
	MarkThresholds(ctx context.Context, missionID string, thresholds []int, checkpointID string, now time.Time) error
}

// CheckpointRecord represents a checkpoint as stored in persistence.
type CheckpointRecord struct {
	ID              string
	MissionID       string
	CreatedAt       time.Time
	Trigger         string
	TriggerDetails  string
	ProgressPercent int
	Sorties         []checkpoint.SortieSnapshot
	Locks           []checkpoint.LockSnapshot
	Messages        []checkpoint.MessageSnapshot
	Context         checkpoint.RecoveryContext
	CreatedBy       string
	SchemaVersion   int
	ConsumedAt      *time.Time
}

// CheckpointFilters contains filter options for querying checkpoints.
type CheckpointFilters struct {
	MissionID       string
	IncludeConsumed bool
	Limit           int
}

// CheckpointBackup defines the secondary port for the file mirror of checkpoints.
type CheckpointBackup interface {
	// Write mirrors a checkpoint, replacing any previous copy.
	Write(ctx context.Context, cp *CheckpointRecord) error

	// Read loads a mirrored checkpoint by ID.
	Read(ctx context.Context, id string) (*CheckpointRecord, error)

	// Remove deletes mirrored checkpoints; missing files are ignored.
	Remove(ctx context.Context, ids ...string) error
}
