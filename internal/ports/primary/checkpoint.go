package primary

import (
	"context"
	"time"

	"github.com/example/flotilla/internal/core/checkpoint"
)

// CheckpointService defines the primary port for capturing and managing checkpoints.
type CheckpointService interface {
	// Create captures a consistent snapshot of a mission.
	Create(ctx context.Context, req CreateCheckpointRequest) (*Checkpoint, error)

	// CreateOnError captures a snapshot with trigger=error describing cause.
	CreateOnError(ctx context.Context, missionID string, cause error) (*Checkpoint, error)

	// CheckProgress creates one progress checkpoint when the mission crossed
	// un-marked thresholds. Returns nil when nothing was crossed.
	CheckProgress(ctx context.Context, missionID string) (*Checkpoint, error)

	// Get retrieves a checkpoint by ID, falling back to the file backup.
	Get(ctx context.Context, checkpointID string) (*Checkpoint, error)

	// List lists checkpoints, newest first.
	List(ctx context.Context, filters CheckpointFilters) ([]*Checkpoint, error)

	// Prune deletes checkpoints outside the retention policy.
	Prune(ctx context.Context, policy checkpoint.RetentionPolicy) (*PruneResult, error)
}

// CreateCheckpointRequest contains parameters for creating a checkpoint.
type CreateCheckpointRequest struct {
	MissionID      string
	Trigger        checkpoint.Trigger
	TriggerDetails string
	Blockers       []string
}

// Checkpoint represents a checkpoint at the port boundary.
type Checkpoint struct {
	ID              string
	MissionID       string
	CreatedAt       time.Time
	Trigger         checkpoint.Trigger
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

// CheckpointFilters contains filter options for listing checkpoints.
type CheckpointFilters struct {
	MissionID       string
	IncludeConsumed bool
	Limit           int
}

// PruneResult lists the checkpoints removed by Prune.
type PruneResult struct {
	Deleted []string
}
