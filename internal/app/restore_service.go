package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/flotilla/internal/core/checkpoint"
	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/core/event"
	corelock "github.com/example/flotilla/internal/core/lock"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/ports/secondary"
)

// RestoreServiceImpl implements the RestoreService interface.
type RestoreServiceImpl struct {
	store          secondary.Store
	backup         secondary.CheckpointBackup
	allowReconsume bool
	logger         zerolog.Logger
	now            func() time.Time
}

// NewRestoreService creates a new RestoreService with injected dependencies.
func NewRestoreService(
	store secondary.Store,
	backup secondary.CheckpointBackup,
	allowReconsume bool,
	logger zerolog.Logger,
) *RestoreServiceImpl {
	return &RestoreServiceImpl{
		store:          store,
		backup:         backup,
		allowReconsume: allowReconsume,
		logger:         logger.With().Str("component", "restore").Logger(),
		now:            time.Now,
	}
}

// Restore applies a checkpoint in one transaction: sorties, locks and
// messages are put back, the checkpoint is consumed and mission.recovered is
// appended. Problems found before anything is applied come back as plain
// errors; a failure while applying rolls everything back and is reported as
// a TransactionError alongside an unsuccessful result.
func (s *RestoreServiceImpl) Restore(ctx context.Context, checkpointID string, opts primary.RestoreOptions) (*primary.RestoreResult, error) {
	now := s.now().UTC()
	result := &primary.RestoreResult{
		CheckpointID: checkpointID,
		Errors:       []string{},
		Warnings:     []string{},
	}

	applying := false
	var consumed *secondary.CheckpointRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		cp, err := s.loadRestorable(ctx, tx, checkpointID)
		if err != nil {
			return err
		}
		result.MissionID = cp.MissionID
		applying = true

		if err := restoreSorties(ctx, tx, now, cp, result); err != nil {
			return err
		}
		blockers, err := restoreLocks(ctx, tx, now, cp, opts.ForceLocks, result)
		if err != nil {
			return err
		}
		if err := restoreMessages(ctx, tx, cp, result); err != nil {
			return err
		}

		updated, err := tx.Checkpoints.MarkConsumed(ctx, cp.ID, now, s.allowReconsume)
		if err != nil {
			return err
		}
		if !updated {
			return &errs.AlreadyConsumedError{CheckpointID: cp.ID}
		}

		_, err = appendEvents(ctx, tx, now, event.StreamMission, cp.MissionID, []primary.NewEvent{{
			Payload: &event.MissionRecoveredPayload{
				CheckpointID:     cp.ID,
				ProgressPercent:  cp.ProgressPercent,
				RestoredSorties:  result.Restored.Sorties,
				RestoredLocks:    result.Restored.Locks,
				RestoredMessages: result.Restored.Messages,
				Blockers:         blockers,
				Warnings:         result.Warnings,
			},
		}}, primary.AppendOptions{})
		if err != nil {
			return err
		}

		consumed = cp
		consumed.ConsumedAt = &now
		return nil
	})
	if err != nil {
		if !applying {
			return nil, err
		}
		result.Success = false
		result.Restored = primary.RestoredCounts{}
		result.Errors = append(result.Errors, err.Error())
		s.logger.Error().Err(err).Str("checkpoint_id", checkpointID).Msg("restore rolled back")
		return result, &errs.TransactionError{Op: "restore", Err: err}
	}

	result.Success = true
	if s.backup != nil {
		if err := s.backup.Write(ctx, consumed); err != nil {
			s.logger.Warn().Err(err).Str("checkpoint_id", checkpointID).Msg("failed to mirror consumed checkpoint")
		}
	}

	s.logger.Info().
		Str("checkpoint_id", checkpointID).
		Str("mission_id", result.MissionID).
		Int("sorties", result.Restored.Sorties).
		Int("locks", result.Restored.Locks).
		Int("messages", result.Restored.Messages).
		Int("warnings", len(result.Warnings)).
		Msg("mission restored")
	return result, nil
}

func (s *RestoreServiceImpl) loadRestorable(ctx context.Context, tx secondary.Repositories, checkpointID string) (*secondary.CheckpointRecord, error) {
	cp, err := tx.Checkpoints.GetByID(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	if cp.ConsumedAt != nil && !s.allowReconsume {
		return nil, &errs.AlreadyConsumedError{CheckpointID: cp.ID, ConsumedAt: cp.ConsumedAt.Format(time.RFC3339)}
	}
	if err := checkpoint.CheckSchemaVersion(cp.SchemaVersion); err != nil {
		return nil, err
	}
	if _, err := tx.Missions.GetByID(ctx, cp.MissionID); err != nil {
		return nil, err
	}
	return cp, nil
}

func restoreSorties(ctx context.Context, tx secondary.Repositories, now time.Time, cp *secondary.CheckpointRecord, result *primary.RestoreResult) error {
	for _, snap := range cp.Sorties {
		if _, err := tx.Sorties.GetByID(ctx, snap.ID); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return fmt.Errorf("sortie %s from checkpoint no longer exists", snap.ID)
			}
			return err
		}
		_, err := appendEvents(ctx, tx, now, event.StreamSortie, snap.ID, []primary.NewEvent{{
			Payload: &event.SortieRestoredPayload{
				CheckpointID:    cp.ID,
				Status:          snap.Status,
				ProgressPercent: snap.ProgressPercent,
			},
		}}, primary.AppendOptions{})
		if err != nil {
			return fmt.Errorf("failed to restore sortie %s: %w", snap.ID, err)
		}
		result.Restored.Sorties++
	}
	return nil
}

// restoreLocks re-acquires captured locks. A resource now held by someone
// else is left alone and reported as a blocker unless force is set.
func restoreLocks(ctx context.Context, tx secondary.Repositories, now time.Time, cp *secondary.CheckpointRecord, force bool, result *primary.RestoreResult) ([]string, error) {
	var blockers []string
	for _, snap := range cp.Locks {
		held, err := tx.Locks.ActiveForResource(ctx, snap.ResourceKey, now)
		if err != nil {
			return nil, err
		}

		switch {
		case held != nil && held.HolderID == snap.HolderID:
			result.Restored.Locks++
			continue
		case held != nil && !force:
			blocker := blockerText(snap.ResourceKey, held.HolderID, held.ID)
			blockers = append(blockers, blocker)
			result.Warnings = append(result.Warnings, blocker)
			continue
		case held != nil:
			if _, err := tx.Locks.MarkReleased(ctx, held.ID, now, "forced by restore of "+cp.ID); err != nil {
				return nil, err
			}
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("forced: released %s held by %s (lock %s)", snap.ResourceKey, held.HolderID, held.ID))
		}

		timeout := snap.TimeoutMs
		if timeout <= 0 {
			timeout = corelock.DefaultTimeout.Milliseconds()
		}
		rec := &secondary.LockRecord{
			ID:          corelock.NewID(),
			ResourceKey: snap.ResourceKey,
			HolderID:    snap.HolderID,
			Purpose:     snap.Purpose,
			AcquiredAt:  now,
			TimeoutMs:   timeout,
		}
		if err := acquireInTx(ctx, tx, rec, now); err != nil {
			return nil, fmt.Errorf("failed to restore lock on %s: %w", snap.ResourceKey, err)
		}
		result.Restored.Locks++
	}
	return blockers, nil
}

// restoreMessages requeues captured messages that vanished. A message that
// was delivered after the checkpoint is not sent twice.
func restoreMessages(ctx context.Context, tx secondary.Repositories, cp *secondary.CheckpointRecord, result *primary.RestoreResult) error {
	for _, snap := range cp.Messages {
		live, err := tx.Messages.GetByID(ctx, snap.ID)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			if err := tx.Messages.Create(ctx, &secondary.MessageRecord{
				ID:        snap.ID,
				StreamID:  snap.StreamID,
				Sender:    snap.Sender,
				Payload:   snap.Payload,
				CreatedAt: snap.CreatedAt,
			}); err != nil {
				return fmt.Errorf("failed to requeue message %s: %w", snap.ID, err)
			}
			result.Restored.Messages++
		case err != nil:
			return err
		case live.Delivered:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("message %s was delivered after the checkpoint; not requeued", snap.ID))
		default:
			result.Restored.Messages++
		}
	}
	return nil
}

// Ensure RestoreServiceImpl implements the interface
var _ primary.RestoreService = (*RestoreServiceImpl)(nil)
