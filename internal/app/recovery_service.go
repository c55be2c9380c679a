package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	coremission "github.com/example/flotilla/internal/core/mission"
	"github.com/example/flotilla/internal/core/recovery"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/ports/secondary"
)

// RecoveryServiceImpl implements the RecoveryService interface. It only reads.
type RecoveryServiceImpl struct {
	store            secondary.Store
	defaultThreshold time.Duration
	logger           zerolog.Logger
	now              func() time.Time
}

// NewRecoveryService creates a new RecoveryService with injected dependencies.
func NewRecoveryService(store secondary.Store, defaultThreshold time.Duration, logger zerolog.Logger) *RecoveryServiceImpl {
	if defaultThreshold <= 0 {
		defaultThreshold = recovery.DefaultInactivityThreshold
	}
	return &RecoveryServiceImpl{
		store:            store,
		defaultThreshold: defaultThreshold,
		logger:           logger.With().Str("component", "recovery").Logger(),
		now:              time.Now,
	}
}

// FindStale returns in_progress missions silent for longer than threshold.
func (s *RecoveryServiceImpl) FindStale(ctx context.Context, threshold time.Duration) ([]*primary.RecoveryCandidate, error) {
	if threshold <= 0 {
		threshold = s.defaultThreshold
	}
	repos := s.store.Repositories()

	missions, err := repos.Missions.List(ctx, secondary.MissionFilters{Status: string(coremission.StatusInProgress)})
	if err != nil {
		return nil, err
	}

	activities := make([]recovery.Activity, 0, len(missions))
	for _, m := range missions {
		last, ok, err := repos.Events.LastActivityForMission(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			last = m.UpdatedAt
		}

		activity := recovery.Activity{
			MissionID:      m.ID,
			MissionTitle:   m.Title,
			LastActivityAt: last,
		}
		cp, err := repos.Checkpoints.LatestUnconsumed(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if cp != nil {
			activity.Checkpoint = &recovery.CheckpointRef{
				ID:              cp.ID,
				ProgressPercent: cp.ProgressPercent,
				CreatedAt:       cp.CreatedAt,
			}
		}
		activities = append(activities, activity)
	}

	stale := recovery.Evaluate(activities, threshold, s.now().UTC())
	candidates := make([]*primary.RecoveryCandidate, 0, len(stale))
	for _, c := range stale {
		s.logger.Debug().Str("mission_id", c.MissionID).Msg(recovery.Describe(c))
		candidate := &primary.RecoveryCandidate{
			MissionID:          c.MissionID,
			MissionTitle:       c.MissionTitle,
			LastActivityAt:     c.LastActivityAt,
			InactivityDuration: c.InactivityDuration,
			Action:             c.Action,
		}
		if c.Checkpoint != nil {
			created := c.Checkpoint.CreatedAt
			candidate.CheckpointID = c.Checkpoint.ID
			candidate.CheckpointProgress = c.Checkpoint.ProgressPercent
			candidate.CheckpointTimestamp = &created
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// Ensure RecoveryServiceImpl implements the interface
var _ primary.RecoveryService = (*RecoveryServiceImpl)(nil)
