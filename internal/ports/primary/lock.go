package primary

import (
	"context"
	"time"
)

// LockService defines the primary port for the resource lock registry.
type LockService interface {
	// Acquire takes an exclusive lock on a resource key or fails with a ConflictError.
	Acquire(ctx context.Context, req AcquireLockRequest) (*Lock, error)

	// Release releases a lock held by holderID.
	Release(ctx context.Context, lockID, holderID string) error

	// ForceRelease releases a lock regardless of holder.
	ForceRelease(ctx context.Context, lockID, reason string) error

	// Get retrieves a lock by ID, active or not.
	Get(ctx context.Context, lockID string) (*Lock, error)

	// ListActive lists unreleased, unexpired locks.
	ListActive(ctx context.Context) ([]*Lock, error)

	// ListByHolders lists active locks held by any of holderIDs.
	ListByHolders(ctx context.Context, holderIDs []string) ([]*Lock, error)

	// ReleaseExpired releases every timed-out lock and returns the count.
	ReleaseExpired(ctx context.Context) (int, error)
}

// AcquireLockRequest contains parameters for acquiring a lock.
type AcquireLockRequest struct {
	ResourceKey string
	HolderID    string
	Purpose     string
	Timeout     time.Duration // 0 means the configured default
}

// Lock represents a lock at the port boundary.
type Lock struct {
	ID            string
	ResourceKey   string
	HolderID      string
	Purpose       string
	AcquiredAt    time.Time
	ReleasedAt    *time.Time
	ReleaseReason string
	Timeout       time.Duration
	ExpiresAt     time.Time
	Active        bool
}
