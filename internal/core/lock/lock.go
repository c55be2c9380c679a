// Package lock contains the pure rules of the lock registry.
// This is part of the Functional Core - no I/O, only pure functions.
package lock

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout applies when a caller does not specify one.
const DefaultTimeout = 30 * time.Minute

// State is the subset of a lock needed to evaluate activity.
type State struct {
	ID          string
	ResourceKey string
	HolderID    string
	AcquiredAt  time.Time
	ReleasedAt  *time.Time
	Timeout     time.Duration
}

// IsActive reports whether the lock is unreleased and within its timeout.
func IsActive(s State, now time.Time) bool {
	if s.ReleasedAt != nil {
		return false
	}
	return now.Sub(s.AcquiredAt) < s.Timeout
}

// IsExpired reports whether the lock is unreleased but past its timeout.
func IsExpired(s State, now time.Time) bool {
	return s.ReleasedAt == nil && now.Sub(s.AcquiredAt) >= s.Timeout
}

// ExpiresAt returns the instant the lock stops being active.
func ExpiresAt(s State) time.Time {
	return s.AcquiredAt.Add(s.Timeout)
}

// NormalizeTimeout applies the default to non-positive timeouts.
func NormalizeTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

// NewID returns a lock identifier of the form lock-xxxxxxxx.
func NewID() string {
	return "lock-" + shortHex()
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// ReleaseContext carries what CanRelease needs.
type ReleaseContext struct {
	LockID   string
	HolderID string
	CallerID string
	Released bool
}

// CanRelease evaluates whether the caller may release the lock.
// Rule: only the holder may release, and only once.
func CanRelease(ctx ReleaseContext) GuardResult {
	if ctx.Released {
		return GuardResult{Reason: fmt.Sprintf("Lock %s is already released", ctx.LockID)}
	}
	if ctx.HolderID != ctx.CallerID {
		return GuardResult{Reason: fmt.Sprintf("Lock %s is held by %s, not %s", ctx.LockID, ctx.HolderID, ctx.CallerID)}
	}
	return GuardResult{Allowed: true}
}

// ValidateAcquire checks acquire arguments.
func ValidateAcquire(resourceKey, holderID string) error {
	if strings.TrimSpace(resourceKey) == "" {
		return fmt.Errorf("resource key is required")
	}
	if strings.TrimSpace(holderID) == "" {
		return fmt.Errorf("holder id is required")
	}
	return nil
}

func shortHex() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
