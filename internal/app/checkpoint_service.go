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
	coremission "github.com/example/flotilla/internal/core/mission"
	"github.com/example/flotilla/internal/ctxutil"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/ports/secondary"
)

// recentEventLimit bounds how much history feeds the recovery narrative.
const recentEventLimit = 10

// defaultCreatedBy is recorded when the context carries no actor.
const defaultCreatedBy = "flotilla"

// CheckpointServiceImpl implements the CheckpointService interface.
type CheckpointServiceImpl struct {
	store      secondary.Store
	backup     secondary.CheckpointBackup
	thresholds []int
	logger     zerolog.Logger
	now        func() time.Time
}

// NewCheckpointService creates a new CheckpointService with injected
// dependencies. Empty thresholds use the built-in defaults.
func NewCheckpointService(
	store secondary.Store,
	backup secondary.CheckpointBackup,
	thresholds []int,
	logger zerolog.Logger,
) *CheckpointServiceImpl {
	if len(thresholds) == 0 {
		thresholds = checkpoint.DefaultThresholds
	}
	return &CheckpointServiceImpl{
		store:      store,
		backup:     backup,
		thresholds: thresholds,
		logger:     logger.With().Str("component", "checkpoints").Logger(),
		now:        time.Now,
	}
}

// Create captures a consistent snapshot of a mission in one transaction.
func (s *CheckpointServiceImpl) Create(ctx context.Context, req primary.CreateCheckpointRequest) (*primary.Checkpoint, error) {
	if req.MissionID == "" {
		return nil, errs.Validation("mission_id", "required")
	}
	if req.Trigger == "" {
		req.Trigger = checkpoint.TriggerManual
	}
	if !checkpoint.ValidTrigger(req.Trigger) {
		return nil, errs.Validation("trigger", "unknown trigger %q", req.Trigger)
	}

	now := s.now().UTC()
	var rec *secondary.CheckpointRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		var err error
		rec, err = s.captureInTx(ctx, tx, now, req)
		if err != nil {
			return err
		}
		return s.persistInTx(ctx, tx, now, rec)
	})
	if err != nil {
		return nil, err
	}

	s.mirror(ctx, rec)
	s.logger.Info().
		Str("checkpoint_id", rec.ID).
		Str("mission_id", rec.MissionID).
		Str("trigger", rec.Trigger).
		Int("progress", rec.ProgressPercent).
		Msg("checkpoint created")
	return checkpointToDTO(rec), nil
}

// CreateOnError captures a snapshot with trigger=error describing cause.
func (s *CheckpointServiceImpl) CreateOnError(ctx context.Context, missionID string, cause error) (*primary.Checkpoint, error) {
	details := "unknown error"
	if cause != nil {
		details = cause.Error()
	}
	return s.Create(ctx, primary.CreateCheckpointRequest{
		MissionID:      missionID,
		Trigger:        checkpoint.TriggerError,
		TriggerDetails: details,
	})
}

// CheckProgress creates one progress checkpoint when an in_progress mission
// has crossed thresholds that were not checkpointed yet. The thresholds are
// marked in the same transaction, so each one fires at most once.
func (s *CheckpointServiceImpl) CheckProgress(ctx context.Context, missionID string) (*primary.Checkpoint, error) {
	now := s.now().UTC()
	var rec *secondary.CheckpointRecord
	var crossed []int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		mission, err := tx.Missions.GetByID(ctx, missionID)
		if err != nil {
			return err
		}
		if coremission.Status(mission.Status) != coremission.StatusInProgress {
			return nil
		}

		marked, err := tx.Checkpoints.MarkedThresholds(ctx, missionID)
		if err != nil {
			return err
		}
		crossed = checkpoint.CrossedThresholds(mission.ProgressPercent, s.thresholds, marked)
		if len(crossed) == 0 {
			return nil
		}

		rec, err = s.captureInTx(ctx, tx, now, primary.CreateCheckpointRequest{
			MissionID:      missionID,
			Trigger:        checkpoint.TriggerProgress,
			TriggerDetails: checkpoint.ThresholdDetails(crossed),
		})
		if err != nil {
			return err
		}
		if err := s.persistInTx(ctx, tx, now, rec); err != nil {
			return err
		}
		return tx.Checkpoints.MarkThresholds(ctx, missionID, crossed, rec.ID, now)
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	s.mirror(ctx, rec)
	s.logger.Info().
		Str("checkpoint_id", rec.ID).
		Str("mission_id", missionID).
		Ints("thresholds", crossed).
		Msg("progress checkpoint created")
	return checkpointToDTO(rec), nil
}

// Get retrieves a checkpoint from the store. When the store itself fails the
// file backup is consulted.
func (s *CheckpointServiceImpl) Get(ctx context.Context, checkpointID string) (*primary.Checkpoint, error) {
	rec, err := s.store.Repositories().Checkpoints.GetByID(ctx, checkpointID)
	if err == nil {
		return checkpointToDTO(rec), nil
	}
	if errors.Is(err, errs.ErrNotFound) || s.backup == nil {
		return nil, err
	}

	s.logger.Warn().Err(err).Str("checkpoint_id", checkpointID).Msg("store read failed, trying backup")
	rec, backupErr := s.backup.Read(ctx, checkpointID)
	if backupErr != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", checkpointID, err)
	}
	return checkpointToDTO(rec), nil
}

// List lists checkpoints, newest first.
func (s *CheckpointServiceImpl) List(ctx context.Context, filters primary.CheckpointFilters) ([]*primary.Checkpoint, error) {
	records, err := s.store.Repositories().Checkpoints.List(ctx, secondary.CheckpointFilters{
		MissionID:       filters.MissionID,
		IncludeConsumed: filters.IncludeConsumed,
		Limit:           filters.Limit,
	})
	if err != nil {
		return nil, err
	}
	checkpoints := make([]*primary.Checkpoint, len(records))
	for i, r := range records {
		checkpoints[i] = checkpointToDTO(r)
	}
	return checkpoints, nil
}

// Prune deletes checkpoints outside the retention policy, then their backups.
func (s *CheckpointServiceImpl) Prune(ctx context.Context, policy checkpoint.RetentionPolicy) (*primary.PruneResult, error) {
	now := s.now().UTC()
	var doomed []string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		all, err := tx.Checkpoints.List(ctx, secondary.CheckpointFilters{IncludeConsumed: true})
		if err != nil {
			return err
		}

		statuses := make(map[string]string)
		candidates := make([]checkpoint.PruneCandidate, 0, len(all))
		for _, c := range all {
			candidates = append(candidates, checkpoint.PruneCandidate{ID: c.ID, MissionID: c.MissionID, CreatedAt: c.CreatedAt})
			if _, seen := statuses[c.MissionID]; seen {
				continue
			}
			mission, err := tx.Missions.GetByID(ctx, c.MissionID)
			if err != nil {
				return err
			}
			statuses[c.MissionID] = mission.Status
		}

		doomed = checkpoint.PlanPrune(checkpoint.PruneInput{
			Checkpoints:     candidates,
			MissionStatuses: statuses,
			Policy:          policy,
			Now:             now,
		})
		_, err = tx.Checkpoints.Delete(ctx, doomed)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(doomed) > 0 && s.backup != nil {
		if err := s.backup.Remove(ctx, doomed...); err != nil {
			s.logger.Warn().Err(err).Msg("failed to remove pruned checkpoint backups")
		}
	}
	if len(doomed) > 0 {
		s.logger.Info().Int("count", len(doomed)).Msg("pruned checkpoints")
	}
	return &primary.PruneResult{Deleted: nonNilStrings(doomed)}, nil
}

// captureInTx reads everything a checkpoint needs through tx, so the
// snapshot is consistent with concurrent writers.
func (s *CheckpointServiceImpl) captureInTx(ctx context.Context, tx secondary.Repositories, now time.Time, req primary.CreateCheckpointRequest) (*secondary.CheckpointRecord, error) {
	mission, err := tx.Missions.GetByID(ctx, req.MissionID)
	if err != nil {
		return nil, err
	}
	sorties, err := tx.Sorties.ListByMission(ctx, mission.ID)
	if err != nil {
		return nil, err
	}

	streams := []string{mission.ID}
	holders := []string{mission.ID}
	sortieSnaps := make([]checkpoint.SortieSnapshot, 0, len(sorties))
	for _, so := range sorties {
		streams = append(streams, so.ID)
		holders = append(holders, so.ID)
		if so.AgentID != "" {
			holders = append(holders, so.AgentID)
		}
		sortieSnaps = append(sortieSnaps, sortieSnapshot(so))
	}
	ownHolders := make(map[string]bool, len(holders))
	for _, h := range holders {
		ownHolders[h] = true
	}

	locks, err := tx.Locks.ListActiveByHolders(ctx, holders, now)
	if err != nil {
		return nil, err
	}
	lockSnaps := make([]checkpoint.LockSnapshot, 0, len(locks))
	for _, l := range locks {
		lockSnaps = append(lockSnaps, checkpoint.LockSnapshot{
			ID:          l.ID,
			ResourceKey: l.ResourceKey,
			HolderID:    l.HolderID,
			Purpose:     l.Purpose,
			AcquiredAt:  l.AcquiredAt,
			TimeoutMs:   l.TimeoutMs,
		})
	}

	messages, err := tx.Messages.ListPending(ctx, streams)
	if err != nil {
		return nil, err
	}
	messageSnaps := make([]checkpoint.MessageSnapshot, 0, len(messages))
	for _, m := range messages {
		messageSnaps = append(messageSnaps, checkpoint.MessageSnapshot{
			ID:        m.ID,
			StreamID:  m.StreamID,
			Sender:    m.Sender,
			Payload:   m.Payload,
			CreatedAt: m.CreatedAt,
		})
	}

	recent, err := tx.Events.ListRecentForMission(ctx, mission.ID, recentEventLimit)
	if err != nil {
		return nil, err
	}
	summaries := make([]string, 0, len(recent))
	for _, r := range recent {
		payload, err := event.Decode(event.Type(r.EventType), r.Payload)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, payload.Summary())
	}

	conflicts, err := lockConflicts(ctx, tx, sorties, ownHolders, now)
	if err != nil {
		return nil, err
	}

	createdBy := ctxutil.ActorFromContext(ctx)
	if createdBy == "" {
		createdBy = defaultCreatedBy
	}

	return &secondary.CheckpointRecord{
		ID:              checkpoint.NewID(),
		MissionID:       mission.ID,
		CreatedAt:       now,
		Trigger:         string(req.Trigger),
		TriggerDetails:  req.TriggerDetails,
		ProgressPercent: mission.ProgressPercent,
		Sorties:         sortieSnaps,
		Locks:           lockSnaps,
		Messages:        messageSnaps,
		Context: checkpoint.BuildRecoveryContext(checkpoint.ContextInput{
			MissionTitle:    mission.Title,
			MissionStatus:   mission.Status,
			ProgressPercent: mission.ProgressPercent,
			StartedAt:       mission.StartedAt,
			Now:             now,
			RecentSummaries: summaries,
			Sorties:         sortieSnaps,
			Blockers:        req.Blockers,
			LockConflicts:   conflicts,
		}),
		CreatedBy:     createdBy,
		SchemaVersion: checkpoint.SchemaVersion,
	}, nil
}

func (s *CheckpointServiceImpl) persistInTx(ctx context.Context, tx secondary.Repositories, now time.Time, rec *secondary.CheckpointRecord) error {
	if err := tx.Checkpoints.Create(ctx, rec); err != nil {
		return err
	}
	_, err := appendEvents(ctx, tx, now, event.StreamMission, rec.MissionID, []primary.NewEvent{{
		Payload: &event.CheckpointCreatedPayload{
			CheckpointID:    rec.ID,
			Trigger:         rec.Trigger,
			ProgressPercent: rec.ProgressPercent,
		},
	}}, primary.AppendOptions{})
	return err
}

// mirror writes the file backup. The store stays authoritative, so a failed
// write is only logged.
func (s *CheckpointServiceImpl) mirror(ctx context.Context, rec *secondary.CheckpointRecord) {
	if s.backup == nil {
		return
	}
	if err := s.backup.Write(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Str("checkpoint_id", rec.ID).Msg("failed to mirror checkpoint")
	}
}

// lockConflicts reports files touched by open sorties that are currently
// locked by a holder outside the mission.
func lockConflicts(ctx context.Context, tx secondary.Repositories, sorties []*secondary.SortieRecord, own map[string]bool, now time.Time) ([]string, error) {
	var conflicts []string
	seen := make(map[string]bool)
	for _, so := range sorties {
		if coremission.Status(so.Status).IsTerminal() {
			continue
		}
		for _, file := range so.FilesModified {
			if seen[file] {
				continue
			}
			seen[file] = true
			held, err := tx.Locks.ActiveForResource(ctx, file, now)
			if err != nil {
				return nil, err
			}
			if held != nil && !own[held.HolderID] {
				conflicts = append(conflicts, blockerText(held.ResourceKey, held.HolderID, held.ID))
			}
		}
	}
	return conflicts, nil
}

func blockerText(resource, holder, lockID string) string {
	return fmt.Sprintf("blocker: %s held by %s (lock %s)", resource, holder, lockID)
}

func sortieSnapshot(r *secondary.SortieRecord) checkpoint.SortieSnapshot {
	return checkpoint.SortieSnapshot{
		ID:              r.ID,
		MissionID:       r.MissionID,
		Title:           r.Title,
		AgentID:         r.AgentID,
		Status:          r.Status,
		ProgressPercent: r.ProgressPercent,
		Tasks:           r.Tasks,
		TasksDone:       r.TasksDone,
		FilesModified:   r.FilesModified,
		UpdatedAt:       r.UpdatedAt,
	}
}

func checkpointToDTO(r *secondary.CheckpointRecord) *primary.Checkpoint {
	return &primary.Checkpoint{
		ID:              r.ID,
		MissionID:       r.MissionID,
		CreatedAt:       r.CreatedAt,
		Trigger:         checkpoint.Trigger(r.Trigger),
		TriggerDetails:  r.TriggerDetails,
		ProgressPercent: r.ProgressPercent,
		Sorties:         r.Sorties,
		Locks:           r.Locks,
		Messages:        r.Messages,
		Context:         r.Context,
		CreatedBy:       r.CreatedBy,
		SchemaVersion:   r.SchemaVersion,
		ConsumedAt:      r.ConsumedAt,
	}
}

func nonNilStrings(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// Ensure CheckpointServiceImpl implements the interface
var _ primary.CheckpointService = (*CheckpointServiceImpl)(nil)
