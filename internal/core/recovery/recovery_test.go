package recovery

import (
	"testing"
	"time"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	threshold := 300000 * time.Millisecond

	activities := []Activity{
		{
			MissionID:      "MISSION-001",
			MissionTitle:   "Silent with checkpoint",
			LastActivityAt: now.Add(-301000 * time.Millisecond),
			Checkpoint:     &CheckpointRef{ID: "chk-00000001", ProgressPercent: 50, CreatedAt: now.Add(-time.Hour)},
		},
		{
			MissionID:      "MISSION-002",
			MissionTitle:   "Busy",
			LastActivityAt: now.Add(-10 * time.Second),
		},
		{
			MissionID:      "MISSION-003",
			MissionTitle:   "Silent without checkpoint",
			LastActivityAt: now.Add(-2 * time.Hour),
		},
		{
			MissionID:      "MISSION-004",
			MissionTitle:   "Exactly at threshold",
			LastActivityAt: now.Add(-threshold),
		},
	}

	got := Evaluate(activities, threshold, now)

	if len(got) != 2 {
		t.Fatalf("Evaluate returned %d candidates, want 2: %+v", len(got), got)
	}
	if got[0].MissionID != "MISSION-003" {
		t.Errorf("first candidate = %s, want MISSION-003 (longest silence)", got[0].MissionID)
	}
	if got[0].Action != ActionInspect || got[0].Checkpoint != nil {
		t.Errorf("MISSION-003 should have no restore path, got %+v", got[0])
	}
	if got[1].MissionID != "MISSION-001" {
		t.Errorf("second candidate = %s, want MISSION-001", got[1].MissionID)
	}
	if got[1].Action != ActionResume || got[1].Checkpoint == nil || got[1].Checkpoint.ID != "chk-00000001" {
		t.Errorf("MISSION-001 should resume from chk-00000001, got %+v", got[1])
	}
	if got[1].InactivityDuration != 301000*time.Millisecond {
		t.Errorf("InactivityDuration = %v, want 301s", got[1].InactivityDuration)
	}
}

func TestEvaluate_DefaultThreshold(t *testing.T) {
	now := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	got := Evaluate([]Activity{
		{MissionID: "MISSION-001", LastActivityAt: now.Add(-4 * time.Minute)},
		{MissionID: "MISSION-002", LastActivityAt: now.Add(-6 * time.Minute)},
	}, 0, now)

	if len(got) != 1 || got[0].MissionID != "MISSION-002" {
		t.Errorf("Evaluate with default threshold = %+v, want only MISSION-002", got)
	}
}

func TestDescribe(t *testing.T) {
	c := Candidate{
		MissionID:          "MISSION-001",
		MissionTitle:       "Billing",
		InactivityDuration: 301500 * time.Millisecond,
		Checkpoint:         &CheckpointRef{ID: "chk-00000001", ProgressPercent: 50},
	}
	want := `MISSION-001 "Billing" silent for 5m1s, resume from chk-00000001 (50%)`
	if got := Describe(c); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}

	c.Checkpoint = nil
	want = `MISSION-001 "Billing" silent for 5m1s, no checkpoint`
	if got := Describe(c); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}
