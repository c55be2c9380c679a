package mission

import (
	"testing"

	"github.com/example/flotilla/internal/core/event"
)

func TestCanApplyToMission(t *testing.T) {
	planned := &Mission{ID: "MISSION-001", Status: StatusPlanned}
	running := &Mission{ID: "MISSION-001", Status: StatusInProgress}
	done := &Mission{ID: "MISSION-001", Status: StatusCompleted}

	tests := []struct {
		name        string
		current     *Mission
		payload     event.Payload
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "create on empty stream",
			payload:     &event.MissionCreatedPayload{Title: "Refactor"},
			wantAllowed: true,
		},
		{
			name:        "progress on empty stream",
			payload:     &event.MissionProgressedPayload{ProgressPercent: 10},
			wantAllowed: false,
			wantReason:  "Mission MISSION-001 does not exist. Create it before appending mission.progressed",
		},
		{
			name:        "create twice",
			current:     planned,
			payload:     &event.MissionCreatedPayload{Title: "Again"},
			wantAllowed: false,
			wantReason:  "Mission MISSION-001 already exists",
		},
		{
			name:        "start planned mission",
			current:     planned,
			payload:     &event.MissionStartedPayload{},
			wantAllowed: true,
		},
		{
			name:        "pause planned mission",
			current:     planned,
			payload:     &event.MissionPausedPayload{},
			wantAllowed: false,
			wantReason:  "Mission MISSION-001 cannot move from planned to paused",
		},
		{
			name:        "progress running mission",
			current:     running,
			payload:     &event.MissionProgressedPayload{ProgressPercent: 40},
			wantAllowed: true,
		},
		{
			name:        "progress completed mission",
			current:     done,
			payload:     &event.MissionProgressedPayload{ProgressPercent: 40},
			wantAllowed: false,
			wantReason:  "Mission MISSION-001 is completed and no longer accepts progress",
		},
		{
			name:        "recover completed mission",
			current:     done,
			payload:     &event.MissionRecoveredPayload{CheckpointID: "chk-00000001"},
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanApplyToMission("MISSION-001", tt.current, tt.payload)

			if result.Allowed != tt.wantAllowed {
				t.Errorf("CanApplyToMission() Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("CanApplyToMission() Reason = %q, want %q", result.Reason, tt.wantReason)
			}
			err := result.Error()
			if tt.wantAllowed && err != nil {
				t.Errorf("Error() should return nil when allowed, got %v", err)
			}
			if !tt.wantAllowed && err == nil {
				t.Error("Error() should return error when not allowed")
			}
		})
	}
}

func TestCanApplyToSortie(t *testing.T) {
	running := &Sortie{ID: "SORTIE-001", Status: StatusInProgress}

	t.Run("restore to unknown status is rejected", func(t *testing.T) {
		result := CanApplyToSortie("SORTIE-001", running, &event.SortieRestoredPayload{
			CheckpointID: "chk-00000001",
			Status:       "sleeping",
		})
		if result.Allowed {
			t.Fatal("expected restore to unknown status to be rejected")
		}
	})

	t.Run("restore to known status is allowed from terminal", func(t *testing.T) {
		failed := &Sortie{ID: "SORTIE-001", Status: StatusFailed}
		result := CanApplyToSortie("SORTIE-001", failed, &event.SortieRestoredPayload{
			CheckpointID: "chk-00000001",
			Status:       string(StatusInProgress),
		})
		if !result.Allowed {
			t.Fatalf("expected restore to be allowed, got %q", result.Reason)
		}
	})

	t.Run("complete running sortie", func(t *testing.T) {
		result := CanApplyToSortie("SORTIE-001", running, &event.SortieCompletedPayload{})
		if !result.Allowed {
			t.Fatalf("expected completion to be allowed, got %q", result.Reason)
		}
	})
}
