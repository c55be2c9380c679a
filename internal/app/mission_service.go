package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/core/event"
	coremission "github.com/example/flotilla/internal/core/mission"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/ports/secondary"
)

// MissionServiceImpl implements the MissionService interface. Every change
// goes through the event log; the projections are only read here.
type MissionServiceImpl struct {
	store  secondary.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewMissionService creates a new MissionService with injected dependencies.
func NewMissionService(store secondary.Store, logger zerolog.Logger) *MissionServiceImpl {
	return &MissionServiceImpl{
		store:  store,
		logger: logger.With().Str("component", "missions").Logger(),
		now:    time.Now,
	}
}

// CreateMission allocates the next mission ID and appends mission.created.
func (s *MissionServiceImpl) CreateMission(ctx context.Context, req primary.CreateMissionRequest) (*primary.Mission, error) {
	payload := &event.MissionCreatedPayload{
		Title:       req.Title,
		Description: req.Description,
		Tasks:       req.Tasks,
		Metadata:    req.Metadata,
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var created *secondary.MissionRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		id, err := tx.Missions.GetNextID(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate mission ID: %w", err)
		}
		if _, err := appendEvents(ctx, tx, s.now().UTC(), event.StreamMission, id,
			[]primary.NewEvent{{Payload: payload}}, primary.ExpectSequence(0)); err != nil {
			return err
		}
		created, err = tx.Missions.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("mission_id", created.ID).Str("title", created.Title).Msg("mission created")
	return missionToDTO(created), nil
}

// ApplyMission appends one event to an existing mission.
func (s *MissionServiceImpl) ApplyMission(ctx context.Context, missionID string, payload event.Payload) (*primary.Mission, error) {
	var updated *secondary.MissionRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		if _, err := tx.Missions.GetByID(ctx, missionID); err != nil {
			return err
		}
		if _, err := appendEvents(ctx, tx, s.now().UTC(), event.StreamMission, missionID,
			[]primary.NewEvent{{Payload: payload}}, primary.AppendOptions{}); err != nil {
			return err
		}
		var err error
		updated, err = tx.Missions.GetByID(ctx, missionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return missionToDTO(updated), nil
}

// GetMission retrieves a mission projection.
func (s *MissionServiceImpl) GetMission(ctx context.Context, missionID string) (*primary.Mission, error) {
	rec, err := s.store.Repositories().Missions.GetByID(ctx, missionID)
	if err != nil {
		return nil, err
	}
	return missionToDTO(rec), nil
}

// ListMissions lists mission projections.
func (s *MissionServiceImpl) ListMissions(ctx context.Context, filters primary.MissionFilters) ([]*primary.Mission, error) {
	records, err := s.store.Repositories().Missions.List(ctx, secondary.MissionFilters{
		Status: filters.Status,
		Limit:  filters.Limit,
	})
	if err != nil {
		return nil, err
	}
	missions := make([]*primary.Mission, len(records))
	for i, r := range records {
		missions[i] = missionToDTO(r)
	}
	return missions, nil
}

// CreateSortie allocates the next sortie ID under an existing mission.
func (s *MissionServiceImpl) CreateSortie(ctx context.Context, req primary.CreateSortieRequest) (*primary.Sortie, error) {
	payload := &event.SortieCreatedPayload{
		MissionID: req.MissionID,
		Title:     req.Title,
		AgentID:   req.AgentID,
		Tasks:     req.Tasks,
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var created *secondary.SortieRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		mission, err := tx.Missions.GetByID(ctx, req.MissionID)
		if err != nil {
			return err
		}
		if coremission.Status(mission.Status).IsTerminal() {
			return errs.Validation("mission_id", "mission %s is %s", mission.ID, mission.Status)
		}
		id, err := tx.Sorties.GetNextID(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate sortie ID: %w", err)
		}
		if _, err := appendEvents(ctx, tx, s.now().UTC(), event.StreamSortie, id,
			[]primary.NewEvent{{Payload: payload}}, primary.ExpectSequence(0)); err != nil {
			return err
		}
		created, err = tx.Sorties.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("sortie_id", created.ID).Str("mission_id", created.MissionID).Msg("sortie created")
	return sortieToDTO(created), nil
}

// ApplySortie appends one event to an existing sortie.
func (s *MissionServiceImpl) ApplySortie(ctx context.Context, sortieID string, payload event.Payload) (*primary.Sortie, error) {
	var updated *secondary.SortieRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		if _, err := tx.Sorties.GetByID(ctx, sortieID); err != nil {
			return err
		}
		if _, err := appendEvents(ctx, tx, s.now().UTC(), event.StreamSortie, sortieID,
			[]primary.NewEvent{{Payload: payload}}, primary.AppendOptions{}); err != nil {
			return err
		}
		var err error
		updated, err = tx.Sorties.GetByID(ctx, sortieID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sortieToDTO(updated), nil
}

// GetSortie retrieves a sortie projection.
func (s *MissionServiceImpl) GetSortie(ctx context.Context, sortieID string) (*primary.Sortie, error) {
	rec, err := s.store.Repositories().Sorties.GetByID(ctx, sortieID)
	if err != nil {
		return nil, err
	}
	return sortieToDTO(rec), nil
}

// ListSorties lists the sorties of a mission.
func (s *MissionServiceImpl) ListSorties(ctx context.Context, missionID string) ([]*primary.Sortie, error) {
	records, err := s.store.Repositories().Sorties.ListByMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	sorties := make([]*primary.Sortie, len(records))
	for i, r := range records {
		sorties[i] = sortieToDTO(r)
	}
	return sorties, nil
}

func missionToDTO(r *secondary.MissionRecord) *primary.Mission {
	return &primary.Mission{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		Status:          r.Status,
		ProgressPercent: r.ProgressPercent,
		Tasks:           r.Tasks,
		Metadata:        r.Metadata,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		LastSequence:    r.LastSequence,
	}
}

func sortieToDTO(r *secondary.SortieRecord) *primary.Sortie {
	return &primary.Sortie{
		ID:              r.ID,
		MissionID:       r.MissionID,
		Title:           r.Title,
		AgentID:         r.AgentID,
		Status:          r.Status,
		ProgressPercent: r.ProgressPercent,
		Tasks:           r.Tasks,
		TasksDone:       r.TasksDone,
		FilesModified:   r.FilesModified,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		LastSequence:    r.LastSequence,
	}
}

// Ensure MissionServiceImpl implements the interface
var _ primary.MissionService = (*MissionServiceImpl)(nil)
