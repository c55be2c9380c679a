package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/flotilla/internal/core/errs"
	corelock "github.com/example/flotilla/internal/core/lock"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/ports/secondary"
)

// Release reasons recorded on lock rows.
const (
	ReleaseReasonReleased = "released"
	ReleaseReasonForced   = "forced"
)

// LockServiceImpl implements the LockService interface.
type LockServiceImpl struct {
	store          secondary.Store
	defaultTimeout time.Duration
	logger         zerolog.Logger
	now            func() time.Time
}

// NewLockService creates a new LockService. A non-positive defaultTimeout
// falls back to the built-in default.
func NewLockService(store secondary.Store, defaultTimeout time.Duration, logger zerolog.Logger) *LockServiceImpl {
	return &LockServiceImpl{
		store:          store,
		defaultTimeout: corelock.NormalizeTimeout(defaultTimeout),
		logger:         logger.With().Str("component", "locks").Logger(),
		now:            time.Now,
	}
}

// Acquire takes an exclusive lock on a resource key. Expired locks on the
// same key are released first, then the insert is guarded by a single
// statement so two racing holders cannot both succeed.
func (s *LockServiceImpl) Acquire(ctx context.Context, req primary.AcquireLockRequest) (*primary.Lock, error) {
	if err := corelock.ValidateAcquire(req.ResourceKey, req.HolderID); err != nil {
		return nil, errs.Validation("", "%s", err.Error())
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	now := s.now().UTC()
	rec := &secondary.LockRecord{
		ID:          corelock.NewID(),
		ResourceKey: req.ResourceKey,
		HolderID:    req.HolderID,
		Purpose:     req.Purpose,
		AcquiredAt:  now,
		TimeoutMs:   timeout.Milliseconds(),
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		return acquireInTx(ctx, tx, rec, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("lock_id", rec.ID).
		Str("resource", rec.ResourceKey).
		Str("holder", rec.HolderID).
		Msg("lock acquired")
	return lockToDTO(rec, now), nil
}

// acquireInTx is shared with the restorer.
func acquireInTx(ctx context.Context, tx secondary.Repositories, rec *secondary.LockRecord, now time.Time) error {
	if _, err := tx.Locks.ReleaseExpired(ctx, rec.ResourceKey, now); err != nil {
		return err
	}
	inserted, err := tx.Locks.TryInsert(ctx, rec, now)
	if err != nil {
		return err
	}
	if inserted {
		return nil
	}
	holder, err := tx.Locks.ActiveForResource(ctx, rec.ResourceKey, now)
	if err != nil {
		return err
	}
	if holder == nil {
		return fmt.Errorf("lock on %s was contended but no holder was found", rec.ResourceKey)
	}
	return &errs.ConflictError{Resource: rec.ResourceKey, HolderID: holder.HolderID, LockID: holder.ID}
}

// Release releases a lock held by holderID.
func (s *LockServiceImpl) Release(ctx context.Context, lockID, holderID string) error {
	now := s.now().UTC()
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		rec, err := tx.Locks.GetByID(ctx, lockID)
		if err != nil {
			return err
		}

		guard := corelock.CanRelease(corelock.ReleaseContext{
			LockID:   rec.ID,
			HolderID: rec.HolderID,
			CallerID: holderID,
			Released: rec.ReleasedAt != nil,
		})
		if !guard.Allowed {
			if rec.ReleasedAt != nil {
				return alreadyReleased(rec)
			}
			return &errs.NotOwnerError{LockID: rec.ID, HolderID: rec.HolderID, Caller: holderID}
		}

		released, err := tx.Locks.MarkReleased(ctx, lockID, now, ReleaseReasonReleased)
		if err != nil {
			return err
		}
		if !released {
			return &errs.AlreadyReleasedError{LockID: lockID}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().Str("lock_id", lockID).Str("holder", holderID).Msg("lock released")
	return nil
}

// ForceRelease releases a lock regardless of holder.
func (s *LockServiceImpl) ForceRelease(ctx context.Context, lockID, reason string) error {
	if reason == "" {
		reason = ReleaseReasonForced
	}
	now := s.now().UTC()
	var holderID string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		rec, err := tx.Locks.GetByID(ctx, lockID)
		if err != nil {
			return err
		}
		if rec.ReleasedAt != nil {
			return alreadyReleased(rec)
		}
		holderID = rec.HolderID
		released, err := tx.Locks.MarkReleased(ctx, lockID, now, reason)
		if err != nil {
			return err
		}
		if !released {
			return &errs.AlreadyReleasedError{LockID: lockID}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Warn().Str("lock_id", lockID).Str("holder", holderID).Str("reason", reason).Msg("lock force-released")
	return nil
}

// Get retrieves a lock by ID, active or not.
func (s *LockServiceImpl) Get(ctx context.Context, lockID string) (*primary.Lock, error) {
	rec, err := s.store.Repositories().Locks.GetByID(ctx, lockID)
	if err != nil {
		return nil, err
	}
	return lockToDTO(rec, s.now().UTC()), nil
}

// ListActive lists unreleased, unexpired locks.
func (s *LockServiceImpl) ListActive(ctx context.Context) ([]*primary.Lock, error) {
	now := s.now().UTC()
	records, err := s.store.Repositories().Locks.ListActive(ctx, now)
	if err != nil {
		return nil, err
	}
	return locksToDTOs(records, now), nil
}

// ListByHolders lists active locks held by any of holderIDs.
func (s *LockServiceImpl) ListByHolders(ctx context.Context, holderIDs []string) ([]*primary.Lock, error) {
	if len(holderIDs) == 0 {
		return []*primary.Lock{}, nil
	}
	now := s.now().UTC()
	records, err := s.store.Repositories().Locks.ListActiveByHolders(ctx, holderIDs, now)
	if err != nil {
		return nil, err
	}
	return locksToDTOs(records, now), nil
}

// ReleaseExpired releases every timed-out lock.
func (s *LockServiceImpl) ReleaseExpired(ctx context.Context) (int, error) {
	n, err := s.store.Repositories().Locks.ReleaseExpired(ctx, "", s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("count", n).Msg("released expired locks")
	}
	return int(n), nil
}

func alreadyReleased(rec *secondary.LockRecord) error {
	return &errs.AlreadyReleasedError{LockID: rec.ID, ReleasedAt: rec.ReleasedAt.Format(time.RFC3339)}
}

func lockState(r *secondary.LockRecord) corelock.State {
	return corelock.State{
		ID:          r.ID,
		ResourceKey: r.ResourceKey,
		HolderID:    r.HolderID,
		AcquiredAt:  r.AcquiredAt,
		ReleasedAt:  r.ReleasedAt,
		Timeout:     time.Duration(r.TimeoutMs) * time.Millisecond,
	}
}

func lockToDTO(r *secondary.LockRecord, now time.Time) *primary.Lock {
	state := lockState(r)
	return &primary.Lock{
		ID:            r.ID,
		ResourceKey:   r.ResourceKey,
		HolderID:      r.HolderID,
		Purpose:       r.Purpose,
		AcquiredAt:    r.AcquiredAt,
		ReleasedAt:    r.ReleasedAt,
		ReleaseReason: r.ReleaseReason,
		Timeout:       state.Timeout,
		ExpiresAt:     corelock.ExpiresAt(state),
		Active:        corelock.IsActive(state, now),
	}
}

func locksToDTOs(records []*secondary.LockRecord, now time.Time) []*primary.Lock {
	locks := make([]*primary.Lock, len(records))
	for i, r := range records {
		locks[i] = lockToDTO(r, now)
	}
	return locks
}

// Ensure LockServiceImpl implements the interface
var _ primary.LockService = (*LockServiceImpl)(nil)
