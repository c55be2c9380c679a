package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/core/event"
	coremission "github.com/example/flotilla/internal/core/mission"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/ports/secondary"
)

// EventServiceImpl implements the EventService interface.
type EventServiceImpl struct {
	store  secondary.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewEventService creates a new EventService with injected dependencies.
func NewEventService(store secondary.Store, logger zerolog.Logger) *EventServiceImpl {
	return &EventServiceImpl{
		store:  store,
		logger: logger.With().Str("component", "events").Logger(),
		now:    time.Now,
	}
}

// Append validates and appends a batch to one stream in a single transaction.
func (s *EventServiceImpl) Append(ctx context.Context, streamType event.StreamType, streamID string, events []primary.NewEvent, opts primary.AppendOptions) ([]*primary.Event, error) {
	if err := validateAppend(streamType, streamID, events); err != nil {
		return nil, err
	}

	var stored []*primary.Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Repositories) error {
		var err error
		stored, err = appendEvents(ctx, tx, s.now().UTC(), streamType, streamID, events, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("stream", fmt.Sprintf("%s/%s", streamType, streamID)).
		Int("count", len(stored)).
		Int64("head", stored[len(stored)-1].Sequence).
		Msg("appended events")
	return stored, nil
}

// GetByStream returns the events of one stream after a sequence.
func (s *EventServiceImpl) GetByStream(ctx context.Context, streamType event.StreamType, streamID string, afterSequence int64) ([]*primary.Event, error) {
	records, err := s.store.Repositories().Events.ListByStream(ctx, string(streamType), streamID, afterSequence)
	if err != nil {
		return nil, err
	}
	return recordsToEvents(records)
}

// GetByCausation returns the events caused by causationID.
func (s *EventServiceImpl) GetByCausation(ctx context.Context, causationID string) ([]*primary.Event, error) {
	records, err := s.store.Repositories().Events.ListByCausation(ctx, causationID)
	if err != nil {
		return nil, err
	}
	return recordsToEvents(records)
}

// GetByCorrelation returns the events sharing correlationID.
func (s *EventServiceImpl) GetByCorrelation(ctx context.Context, correlationID string) ([]*primary.Event, error) {
	records, err := s.store.Repositories().Events.ListByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	return recordsToEvents(records)
}

// GetLatestSequence returns the highest sequence ever assigned.
func (s *EventServiceImpl) GetLatestSequence(ctx context.Context) (int64, error) {
	return s.store.Repositories().Events.LatestSequence(ctx)
}

// ListRecent returns the newest events of a mission and its sorties.
func (s *EventServiceImpl) ListRecent(ctx context.Context, missionID string, limit int) ([]*primary.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	records, err := s.store.Repositories().Events.ListRecentForMission(ctx, missionID, limit)
	if err != nil {
		return nil, err
	}
	return recordsToEvents(records)
}

// Replay folds the mission stream and every sortie stream from sequence 0
// and reports where the stored projections disagree with the log.
func (s *EventServiceImpl) Replay(ctx context.Context, missionID string) (*primary.ReplayResult, error) {
	repos := s.store.Repositories()

	missionEvents, err := repos.Events.ListByStream(ctx, string(event.StreamMission), missionID, 0)
	if err != nil {
		return nil, err
	}
	if len(missionEvents) == 0 {
		return nil, errs.NotFound("mission", missionID)
	}

	applied, err := recordsToApplied(missionEvents)
	if err != nil {
		return nil, err
	}
	rebuilt, err := coremission.ReplayMission(missionID, applied)
	if err != nil {
		return nil, err
	}

	result := &primary.ReplayResult{
		Mission:    missionToDTO(missionToRecord(rebuilt)),
		EventCount: len(missionEvents),
	}

	stored, err := repos.Missions.GetByID(ctx, missionID)
	if err != nil {
		result.Differences = append(result.Differences, fmt.Sprintf("mission %s: no stored projection", missionID))
	} else {
		result.Differences = append(result.Differences, diffMission(missionToRecord(rebuilt), stored)...)
	}

	sorties, err := repos.Sorties.ListByMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	for _, storedSortie := range sorties {
		sortieEvents, err := repos.Events.ListByStream(ctx, string(event.StreamSortie), storedSortie.ID, 0)
		if err != nil {
			return nil, err
		}
		applied, err := recordsToApplied(sortieEvents)
		if err != nil {
			return nil, err
		}
		rebuiltSortie, err := coremission.ReplaySortie(storedSortie.ID, applied)
		if err != nil {
			return nil, err
		}
		result.EventCount += len(sortieEvents)
		if rebuiltSortie == nil {
			result.Differences = append(result.Differences, fmt.Sprintf("sortie %s: projection has no events", storedSortie.ID))
			continue
		}
		rec := sortieToRecord(rebuiltSortie)
		result.Sorties = append(result.Sorties, sortieToDTO(rec))
		result.Differences = append(result.Differences, diffSortie(rec, storedSortie)...)
	}

	if len(result.Differences) > 0 {
		s.logger.Warn().Str("mission_id", missionID).Strs("differences", result.Differences).Msg("projection drift")
	}
	return result, nil
}

func diffMission(rebuilt, stored *secondary.MissionRecord) []string {
	var diffs []string
	add := func(field string, want, got any) {
		diffs = append(diffs, fmt.Sprintf("mission %s: %s is %v in the log, %v in the projection", rebuilt.ID, field, want, got))
	}
	if rebuilt.Status != stored.Status {
		add("status", rebuilt.Status, stored.Status)
	}
	if rebuilt.ProgressPercent != stored.ProgressPercent {
		add("progress_percent", rebuilt.ProgressPercent, stored.ProgressPercent)
	}
	if rebuilt.Title != stored.Title {
		add("title", rebuilt.Title, stored.Title)
	}
	if rebuilt.LastSequence != stored.LastSequence {
		add("last_sequence", rebuilt.LastSequence, stored.LastSequence)
	}
	return diffs
}

func diffSortie(rebuilt, stored *secondary.SortieRecord) []string {
	var diffs []string
	add := func(field string, want, got any) {
		diffs = append(diffs, fmt.Sprintf("sortie %s: %s is %v in the log, %v in the projection", rebuilt.ID, field, want, got))
	}
	if rebuilt.Status != stored.Status {
		add("status", rebuilt.Status, stored.Status)
	}
	if rebuilt.ProgressPercent != stored.ProgressPercent {
		add("progress_percent", rebuilt.ProgressPercent, stored.ProgressPercent)
	}
	if !sameSet(rebuilt.FilesModified, stored.FilesModified) {
		add("files_modified", rebuilt.FilesModified, stored.FilesModified)
	}
	if rebuilt.LastSequence != stored.LastSequence {
		add("last_sequence", rebuilt.LastSequence, stored.LastSequence)
	}
	return diffs
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func recordsToEvents(records []*secondary.EventRecord) ([]*primary.Event, error) {
	events := make([]*primary.Event, 0, len(records))
	for _, r := range records {
		e, err := recordToEvent(r)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func recordToEvent(r *secondary.EventRecord) (*primary.Event, error) {
	payload, err := event.Decode(event.Type(r.EventType), r.Payload)
	if err != nil {
		return nil, err
	}
	return &primary.Event{
		Sequence:      r.Sequence,
		ID:            r.ID,
		StreamType:    event.StreamType(r.StreamType),
		StreamID:      r.StreamID,
		Type:          event.Type(r.EventType),
		Payload:       payload,
		CorrelationID: r.CorrelationID,
		CausationID:   r.CausationID,
		OccurredAt:    r.OccurredAt,
	}, nil
}

func recordsToApplied(records []*secondary.EventRecord) ([]coremission.Applied, error) {
	applied := make([]coremission.Applied, 0, len(records))
	for _, r := range records {
		payload, err := event.Decode(event.Type(r.EventType), r.Payload)
		if err != nil {
			return nil, err
		}
		applied = append(applied, coremission.Applied{Sequence: r.Sequence, OccurredAt: r.OccurredAt, Payload: payload})
	}
	return applied, nil
}

// Ensure EventServiceImpl implements the interface
var _ primary.EventService = (*EventServiceImpl)(nil)
