package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/ports/primary"
)

// LockAdapter translates CLI lock operations to LockService calls.
type LockAdapter struct {
	service primary.LockService
	out     io.Writer
}

// NewLockAdapter creates a new LockAdapter with the given service.
func NewLockAdapter(service primary.LockService, out io.Writer) *LockAdapter {
	return &LockAdapter{
		service: service,
		out:     out,
	}
}

// Acquire takes a lock and prints its id.
func (a *LockAdapter) Acquire(ctx context.Context, req primary.AcquireLockRequest) error {
	lock, err := a.service.Acquire(ctx, req)
	if err != nil {
		var conflict *errs.ConflictError
		if errors.As(err, &conflict) {
			return fmt.Errorf("%s is held by %s (lock %s)", conflict.Resource, conflict.HolderID, conflict.LockID)
		}
		return err
	}

	fmt.Fprintf(a.out, "✓ Locked %s as %s (lock %s, expires %s)\n",
		lock.ResourceKey, lock.HolderID, lock.ID, formatTime(lock.ExpiresAt))
	return nil
}

// Release releases a lock held by holderID.
func (a *LockAdapter) Release(ctx context.Context, lockID, holderID string) error {
	if err := a.service.Release(ctx, lockID, holderID); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Released lock %s\n", lockID)
	return nil
}

// ForceRelease releases a lock regardless of holder.
func (a *LockAdapter) ForceRelease(ctx context.Context, lockID, reason string) error {
	lock, err := a.service.Get(ctx, lockID)
	if err != nil {
		return fmt.Errorf("failed to get lock: %w", err)
	}
	if err := a.service.ForceRelease(ctx, lockID, reason); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Force-released lock %s on %s (was held by %s)\n", lockID, lock.ResourceKey, lock.HolderID)
	return nil
}

// List lists active locks, optionally only those of one holder.
func (a *LockAdapter) List(ctx context.Context, holderID string) error {
	var (
		locks []*primary.Lock
		err   error
	)
	if holderID != "" {
		locks, err = a.service.ListByHolders(ctx, []string{holderID})
	} else {
		locks, err = a.service.ListActive(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list locks: %w", err)
	}

	if len(locks) == 0 {
		fmt.Fprintln(a.out, "No active locks")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-14s %-15s %-20s %s\n", "LOCK", "HOLDER", "EXPIRES", "RESOURCE")
	fmt.Fprintln(a.out, separator)
	for _, l := range locks {
		fmt.Fprintf(a.out, "%-14s %-15s %-20s %s\n", l.ID, l.HolderID, formatTime(l.ExpiresAt), l.ResourceKey)
	}
	fmt.Fprintln(a.out)

	return nil
}

// Expire releases every timed-out lock.
func (a *LockAdapter) Expire(ctx context.Context) error {
	n, err := a.service.ReleaseExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to release expired locks: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Released %d expired lock(s)\n", n)
	return nil
}
