package app

import (
	"context"
	"testing"
	"time"

	"github.com/example/flotilla/internal/core/event"
	"github.com/example/flotilla/internal/ports/primary"
)

func TestRecoveryService_FindStale(t *testing.T) {
	tests := []struct {
		name    string
		silence time.Duration
		want    int
	}{
		{"just under threshold", 299000 * time.Millisecond, 0},
		{"just over threshold", 301000 * time.Millisecond, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			m := env.startedMission(t, "Quiet")
			cp, err := env.checkpoints.Create(ctx, primary.CreateCheckpointRequest{MissionID: m.ID})
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			env.clock.Advance(tt.silence)
			candidates, err := env.recovery.FindStale(ctx, 0)
			if err != nil {
				t.Fatalf("FindStale failed: %v", err)
			}
			if len(candidates) != tt.want {
				t.Fatalf("got %d candidates, want %d", len(candidates), tt.want)
			}
			if tt.want == 0 {
				return
			}

			c := candidates[0]
			if c.MissionID != m.ID || c.CheckpointID != cp.ID || c.Action != "resume" {
				t.Errorf("candidate = %+v", c)
			}
			if c.InactivityDuration != tt.silence {
				t.Errorf("InactivityDuration = %v, want %v", c.InactivityDuration, tt.silence)
			}
			if c.CheckpointTimestamp == nil || !c.CheckpointTimestamp.Equal(cp.CreatedAt) {
				t.Errorf("CheckpointTimestamp = %v", c.CheckpointTimestamp)
			}
		})
	}
}

func TestRecoveryService_FindStale_Ordering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	older := env.startedMission(t, "Older")
	env.clock.Advance(time.Minute)
	newer := env.startedMission(t, "Newer")
	s := env.startedSortie(t, newer.ID, "busy")
	if _, err := env.missions.CreateMission(ctx, primary.CreateMissionRequest{Title: "Never started"}); err != nil {
		t.Fatalf("CreateMission failed: %v", err)
	}

	env.clock.Advance(2 * time.Minute)
	if _, err := env.missions.ApplySortie(ctx, s.ID, &event.SortieProgressedPayload{ProgressPercent: 10}); err != nil {
		t.Fatalf("ApplySortie failed: %v", err)
	}

	env.clock.Advance(10 * time.Minute)
	candidates, err := env.recovery.FindStale(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("FindStale failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].MissionID != older.ID || candidates[1].MissionID != newer.ID {
		t.Errorf("order = %s, %s", candidates[0].MissionID, candidates[1].MissionID)
	}
	if candidates[1].InactivityDuration != 10*time.Minute {
		t.Errorf("sortie activity should count for the mission, got %v", candidates[1].InactivityDuration)
	}
	if candidates[0].Action != "inspect" || candidates[0].CheckpointID != "" {
		t.Errorf("mission without checkpoint = %+v", candidates[0])
	}
}
