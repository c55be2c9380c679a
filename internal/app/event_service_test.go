package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/core/event"
	"github.com/example/flotilla/internal/ctxutil"
	"github.com/example/flotilla/internal/ports/primary"
)

func TestEventService_Append_MonotonicSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.startedMission(t, "Ship it")
	var last int64
	for i, pct := range []int{10, 20, 30} {
		env.clock.Advance(time.Second)
		stored, err := env.events.Append(ctx, event.StreamMission, m.ID,
			[]primary.NewEvent{{Payload: &event.MissionProgressedPayload{ProgressPercent: pct}}}, primary.AppendOptions{})
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
		if stored[0].Sequence <= last {
			t.Errorf("sequence %d not greater than previous %d", stored[0].Sequence, last)
		}
		last = stored[0].Sequence
	}

	head, err := env.events.GetLatestSequence(ctx)
	if err != nil {
		t.Fatalf("GetLatestSequence failed: %v", err)
	}
	if head != last {
		t.Errorf("latest sequence = %d, want %d", head, last)
	}

	got, err := env.missions.GetMission(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMission failed: %v", err)
	}
	if got.ProgressPercent != 30 || got.LastSequence != last {
		t.Errorf("projection = %d%% at %d, want 30%% at %d", got.ProgressPercent, got.LastSequence, last)
	}
}

func TestEventService_Append_ExpectedSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.startedMission(t, "Optimistic")

	events, err := env.events.GetByStream(ctx, event.StreamMission, m.ID, 0)
	if err != nil {
		t.Fatalf("GetByStream failed: %v", err)
	}
	head := events[len(events)-1].Sequence

	progress := []primary.NewEvent{{Payload: &event.MissionProgressedPayload{ProgressPercent: 5}}}
	if _, err := env.events.Append(ctx, event.StreamMission, m.ID, progress, primary.ExpectSequence(head)); err != nil {
		t.Fatalf("append at head failed: %v", err)
	}

	_, err = env.events.Append(ctx, event.StreamMission, m.ID, progress, primary.ExpectSequence(head))
	assertErrorIs(t, err, errs.ErrConcurrency)

	var ce *errs.ConcurrencyError
	if !errors.As(err, &ce) || ce.Expected != head || ce.Actual <= head {
		t.Errorf("unexpected concurrency error details: %+v", ce)
	}

	_, err = env.events.Append(ctx, event.StreamMission, "MISSION-404",
		[]primary.NewEvent{{Payload: &event.MissionCreatedPayload{Title: "fresh"}}}, primary.ExpectSequence(0))
	if err != nil {
		t.Errorf("expected empty stream head 0 to be accepted, got %v", err)
	}
}

func TestEventService_Append_Validation(t *testing.T) {
	env := newTestEnv(t)
	m := env.startedMission(t, "Validated")

	tests := []struct {
		name       string
		streamType event.StreamType
		streamID   string
		events     []primary.NewEvent
	}{
		{
			name:       "unknown stream type",
			streamType: "fleet",
			streamID:   m.ID,
			events:     []primary.NewEvent{{Payload: &event.MissionStartedPayload{}}},
		},
		{
			name:       "empty stream id",
			streamType: event.StreamMission,
			events:     []primary.NewEvent{{Payload: &event.MissionStartedPayload{}}},
		},
		{
			name:       "no events",
			streamType: event.StreamMission,
			streamID:   m.ID,
		},
		{
			name:       "unknown event type",
			streamType: event.StreamMission,
			streamID:   m.ID,
			events:     []primary.NewEvent{{Payload: &event.Unknown{Kind: "mission.teleported"}}},
		},
		{
			name:       "sortie event on mission stream",
			streamType: event.StreamMission,
			streamID:   m.ID,
			events:     []primary.NewEvent{{Payload: &event.SortieStartedPayload{}}},
		},
		{
			name:       "progress out of range",
			streamType: event.StreamMission,
			streamID:   m.ID,
			events:     []primary.NewEvent{{Payload: &event.MissionProgressedPayload{ProgressPercent: 101}}},
		},
		{
			name:       "event before creation",
			streamType: event.StreamMission,
			streamID:   "MISSION-999",
			events:     []primary.NewEvent{{Payload: &event.MissionStartedPayload{}}},
		},
		{
			name:       "illegal transition",
			streamType: event.StreamMission,
			streamID:   m.ID,
			events:     []primary.NewEvent{{Payload: &event.MissionStartedPayload{}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.events.Append(context.Background(), tt.streamType, tt.streamID, tt.events, primary.AppendOptions{})
			assertErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestEventService_Append_BatchIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.startedMission(t, "Atomic")

	before, err := env.events.GetLatestSequence(ctx)
	if err != nil {
		t.Fatalf("GetLatestSequence failed: %v", err)
	}

	_, err = env.events.Append(ctx, event.StreamMission, m.ID, []primary.NewEvent{
		{Payload: &event.MissionProgressedPayload{ProgressPercent: 40}},
		{Payload: &event.MissionCompletedPayload{}},
		{Payload: &event.MissionProgressedPayload{ProgressPercent: 50}},
	}, primary.AppendOptions{})
	assertErrorIs(t, err, errs.ErrValidation)

	after, err := env.events.GetLatestSequence(ctx)
	if err != nil {
		t.Fatalf("GetLatestSequence failed: %v", err)
	}
	if after != before {
		t.Errorf("latest sequence moved from %d to %d after a rejected batch", before, after)
	}
	got, err := env.missions.GetMission(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMission failed: %v", err)
	}
	if got.ProgressPercent != 0 || got.Status != "in_progress" {
		t.Errorf("projection changed by rejected batch: %s %d%%", got.Status, got.ProgressPercent)
	}
}

func TestEventService_Append_CausationAndCorrelation(t *testing.T) {
	env := newTestEnv(t)
	m := env.startedMission(t, "Traced")
	ctx := ctxutil.WithCorrelationID(context.Background(), "corr-42")

	stored, err := env.events.Append(ctx, event.StreamMission, m.ID, []primary.NewEvent{
		{Payload: &event.MissionProgressedPayload{ProgressPercent: 10}, CausationID: "external-cause"},
		{Payload: &event.MissionProgressedPayload{ProgressPercent: 20}},
	}, primary.AppendOptions{})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if stored[0].CausationID != "external-cause" {
		t.Errorf("first causation = %q", stored[0].CausationID)
	}
	if stored[1].CausationID != stored[0].ID {
		t.Errorf("second causation = %q, want previous event %q", stored[1].CausationID, stored[0].ID)
	}

	caused, err := env.events.GetByCausation(context.Background(), stored[0].ID)
	if err != nil {
		t.Fatalf("GetByCausation failed: %v", err)
	}
	if len(caused) != 1 || caused[0].ID != stored[1].ID {
		t.Errorf("GetByCausation returned %d events", len(caused))
	}

	correlated, err := env.events.GetByCorrelation(context.Background(), "corr-42")
	if err != nil {
		t.Fatalf("GetByCorrelation failed: %v", err)
	}
	if len(correlated) != 2 {
		t.Errorf("GetByCorrelation returned %d events, want 2", len(correlated))
	}
	if p, ok := correlated[1].Payload.(*event.MissionProgressedPayload); !ok || p.ProgressPercent != 20 {
		t.Errorf("payload did not round-trip: %#v", correlated[1].Payload)
	}
}

func TestEventService_ListRecent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.startedMission(t, "Recent")
	s := env.startedSortie(t, m.ID, "Build")

	env.clock.Advance(time.Minute)
	if _, err := env.missions.ApplySortie(ctx, s.ID, &event.SortieProgressedPayload{ProgressPercent: 30}); err != nil {
		t.Fatalf("ApplySortie failed: %v", err)
	}

	recent, err := env.events.ListRecent(ctx, m.ID, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d events, want 2", len(recent))
	}
	if recent[0].Type != event.SortieProgressed {
		t.Errorf("newest event = %s, want %s", recent[0].Type, event.SortieProgressed)
	}
	if recent[0].Sequence < recent[1].Sequence {
		t.Error("expected newest first")
	}
}

func TestEventService_Replay_MatchesProjection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.startedMission(t, "Replayable")
	s1 := env.startedSortie(t, m.ID, "Parse", "lex", "parse")
	s2 := env.startedSortie(t, m.ID, "Emit")

	steps := []func() error{
		func() error {
			_, err := env.missions.ApplySortie(ctx, s1.ID, &event.SortieProgressedPayload{ProgressPercent: 50, FilesModified: []string{"/a.go"}, TasksDone: []string{"lex"}})
			return err
		},
		func() error {
			_, err := env.missions.ApplyMission(ctx, m.ID, &event.MissionProgressedPayload{ProgressPercent: 40})
			return err
		},
		func() error {
			_, err := env.missions.ApplySortie(ctx, s2.ID, &event.SortieFailedPayload{Reason: "flaky"})
			return err
		},
		func() error {
			_, err := env.missions.ApplyMission(ctx, m.ID, &event.MissionPausedPayload{})
			return err
		},
	}
	for i, step := range steps {
		env.clock.Advance(time.Second)
		if err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	result, err := env.events.Replay(ctx, m.ID)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(result.Differences) != 0 {
		t.Errorf("unexpected differences: %v", result.Differences)
	}

	stored, err := env.missions.GetMission(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMission failed: %v", err)
	}
	if result.Mission.Status != stored.Status || result.Mission.ProgressPercent != stored.ProgressPercent {
		t.Errorf("replayed %s/%d%%, stored %s/%d%%", result.Mission.Status, result.Mission.ProgressPercent, stored.Status, stored.ProgressPercent)
	}
	if len(result.Sorties) != 2 {
		t.Fatalf("replayed %d sorties, want 2", len(result.Sorties))
	}
	if result.Sorties[1].Status != "failed" {
		t.Errorf("sortie %s replayed as %s", result.Sorties[1].ID, result.Sorties[1].Status)
	}
	if result.EventCount != 10 {
		t.Errorf("EventCount = %d, want 10", result.EventCount)
	}
}

func TestEventService_Replay_DetectsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.startedMission(t, "Drifting")
	env.setProgress(t, m.ID, 60)

	if _, err := env.conn.Exec("UPDATE missions SET progress_percent = 10 WHERE id = ?", m.ID); err != nil {
		t.Fatalf("tamper failed: %v", err)
	}

	result, err := env.events.Replay(ctx, m.ID)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(result.Differences) != 1 {
		t.Fatalf("differences = %v, want exactly one", result.Differences)
	}
	if result.Mission.ProgressPercent != 60 {
		t.Errorf("replayed progress = %d, want 60", result.Mission.ProgressPercent)
	}
}

func TestEventService_Replay_UnknownMission(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.events.Replay(context.Background(), "MISSION-404")
	assertErrorIs(t, err, errs.ErrNotFound)
}
