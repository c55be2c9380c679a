package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/core/event"
	coremission "github.com/example/flotilla/internal/core/mission"
	"github.com/example/flotilla/internal/ctxutil"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/ports/secondary"
)

// appendEvents is the single write path into the log. It runs inside the
// caller's transaction: checks the stream head, guards every event against
// the folded state, inserts the events and saves the projection. Any error
// leaves the transaction to be rolled back by the caller.
func appendEvents(
	ctx context.Context,
	tx secondary.Repositories,
	at time.Time,
	streamType event.StreamType,
	streamID string,
	events []primary.NewEvent,
	opts primary.AppendOptions,
) ([]*primary.Event, error) {
	if err := validateAppend(streamType, streamID, events); err != nil {
		return nil, err
	}

	head, err := tx.Events.StreamHead(ctx, string(streamType), streamID)
	if err != nil {
		return nil, err
	}
	if opts.ExpectedSequence != nil && *opts.ExpectedSequence != head {
		return nil, &errs.ConcurrencyError{
			Stream:   fmt.Sprintf("%s/%s", streamType, streamID),
			Expected: *opts.ExpectedSequence,
			Actual:   head,
		}
	}

	correlationID := ctxutil.CorrelationFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	p, err := loadProjection(ctx, tx, streamType, streamID)
	if err != nil {
		return nil, err
	}

	stored := make([]*primary.Event, 0, len(events))
	previousID := ""
	for _, ne := range events {
		if result := p.guard(ne.Payload); !result.Allowed {
			return nil, errs.Validation("event_type", "%s", result.Reason)
		}

		payload, err := event.Encode(ne.Payload)
		if err != nil {
			return nil, err
		}
		causationID := ne.CausationID
		if causationID == "" {
			causationID = previousID
		}

		rec := &secondary.EventRecord{
			ID:            uuid.NewString(),
			StreamType:    string(streamType),
			StreamID:      streamID,
			EventType:     string(ne.Payload.EventType()),
			Payload:       payload,
			CorrelationID: correlationID,
			CausationID:   causationID,
			OccurredAt:    at,
		}
		if err := tx.Events.Insert(ctx, rec); err != nil {
			return nil, err
		}

		if err := p.apply(coremission.Applied{Sequence: rec.Sequence, OccurredAt: at, Payload: ne.Payload}); err != nil {
			return nil, err
		}

		previousID = rec.ID
		stored = append(stored, &primary.Event{
			Sequence:      rec.Sequence,
			ID:            rec.ID,
			StreamType:    streamType,
			StreamID:      streamID,
			Type:          ne.Payload.EventType(),
			Payload:       ne.Payload,
			CorrelationID: correlationID,
			CausationID:   causationID,
			OccurredAt:    at,
		})
	}

	if err := p.save(ctx, tx); err != nil {
		return nil, err
	}
	return stored, nil
}

func validateAppend(streamType event.StreamType, streamID string, events []primary.NewEvent) error {
	if !event.ValidStream(streamType) {
		return errs.Validation("stream_type", "unknown stream type %q", streamType)
	}
	if streamID == "" {
		return errs.Validation("stream_id", "required")
	}
	if len(events) == 0 {
		return errs.Validation("events", "at least one event is required")
	}
	for _, ne := range events {
		if err := event.CheckAppend(streamType, ne.Payload); err != nil {
			return err
		}
	}
	return nil
}

// projection wraps the folded state of one stream while a batch is applied.
type projection struct {
	id      string
	kind    event.StreamType
	mission *coremission.Mission
	sortie  *coremission.Sortie
}

func loadProjection(ctx context.Context, tx secondary.Repositories, streamType event.StreamType, streamID string) (*projection, error) {
	p := &projection{id: streamID, kind: streamType}
	switch streamType {
	case event.StreamMission:
		rec, err := tx.Missions.GetByID(ctx, streamID)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		if rec != nil {
			p.mission = missionFromRecord(rec)
		}
	case event.StreamSortie:
		rec, err := tx.Sorties.GetByID(ctx, streamID)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		if rec != nil {
			p.sortie = sortieFromRecord(rec)
		}
	}
	return p, nil
}

func (p *projection) guard(payload event.Payload) coremission.GuardResult {
	if p.kind == event.StreamMission {
		return coremission.CanApplyToMission(p.id, p.mission, payload)
	}
	return coremission.CanApplyToSortie(p.id, p.sortie, payload)
}

func (p *projection) apply(e coremission.Applied) error {
	var err error
	if p.kind == event.StreamMission {
		p.mission, err = coremission.ApplyMission(p.id, p.mission, e)
	} else {
		p.sortie, err = coremission.ApplySortie(p.id, p.sortie, e)
	}
	return err
}

func (p *projection) save(ctx context.Context, tx secondary.Repositories) error {
	if p.kind == event.StreamMission {
		return tx.Missions.Save(ctx, missionToRecord(p.mission))
	}
	return tx.Sorties.Save(ctx, sortieToRecord(p.sortie))
}

func missionFromRecord(r *secondary.MissionRecord) *coremission.Mission {
	return &coremission.Mission{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		Status:          coremission.Status(r.Status),
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

func missionToRecord(m *coremission.Mission) *secondary.MissionRecord {
	return &secondary.MissionRecord{
		ID:              m.ID,
		Title:           m.Title,
		Description:     m.Description,
		Status:          string(m.Status),
		ProgressPercent: m.ProgressPercent,
		Tasks:           m.Tasks,
		Metadata:        m.Metadata,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
		LastSequence:    m.LastSequence,
	}
}

func sortieFromRecord(r *secondary.SortieRecord) *coremission.Sortie {
	return &coremission.Sortie{
		ID:              r.ID,
		MissionID:       r.MissionID,
		Title:           r.Title,
		AgentID:         r.AgentID,
		Status:          coremission.Status(r.Status),
		ProgressPercent: r.ProgressPercent,
		Tasks:           r.Tasks,
		TasksDone:       r.TasksDone,
		FilesModified:   r.FilesModified,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		LastSequence:    r.LastSequence,
	}
}

func sortieToRecord(s *coremission.Sortie) *secondary.SortieRecord {
	return &secondary.SortieRecord{
		ID:              s.ID,
		MissionID:       s.MissionID,
		Title:           s.Title,
		AgentID:         s.AgentID,
		Status:          string(s.Status),
		ProgressPercent: s.ProgressPercent,
		Tasks:           s.Tasks,
		TasksDone:       s.TasksDone,
		FilesModified:   s.FilesModified,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		LastSequence:    s.LastSequence,
	}
}
