package primary

import (
	"context"
	"time"
)

// RecoveryService defines the primary port for detecting stale missions.
type RecoveryService interface {
	// FindStale returns in_progress missions silent for longer than threshold,
	// most silent first. A zero threshold uses the configured default.
	FindStale(ctx context.Context, threshold time.Duration) ([]*RecoveryCandidate, error)
}

// RecoveryCandidate is a stale mission and its restore path.
type RecoveryCandidate struct {
	MissionID           string
	MissionTitle        string
	LastActivityAt      time.Time
	InactivityDuration  time.Duration
	CheckpointID        string // Empty when no un-consumed checkpoint exists
	CheckpointProgress  int
	CheckpointTimestamp *time.Time
	Action              string
}

// RestoreService defines the primary port for restoring from a checkpoint.
type RestoreService interface {
	// Restore applies a checkpoint transactionally. On a mid-transaction
	// failure the result has Success=false and a TransactionError is returned.
	Restore(ctx context.Context, checkpointID string, opts RestoreOptions) (*RestoreResult, error)
}

// RestoreOptions controls conflict handling during restore.
type RestoreOptions struct {
	ForceLocks bool
}

// RestoreResult reports what a restore changed.
type RestoreResult struct {
	CheckpointID string
	MissionID    string
	Success      bool
	Restored     RestoredCounts
	Errors       []string
	Warnings     []string
}

// RestoredCounts counts restored entities by kind.
type RestoredCounts struct {
	Sorties  int
	Locks    int
	Messages int
}
