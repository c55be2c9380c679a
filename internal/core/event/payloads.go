package event

import (
	"fmt"
	"strings"
)

// MissionCreatedPayload opens a mission stream.
type MissionCreatedPayload struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Tasks       []string          `json:"tasks,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (p *MissionCreatedPayload) EventType() Type { return MissionCreated }
func (p *MissionCreatedPayload) Validate() error { return required("title", p.Title) }
func (p *MissionCreatedPayload) Summary() string {
	return fmt.Sprintf("Created mission %q", p.Title)
}

// MissionStartedPayload moves a mission to in_progress.
type MissionStartedPayload struct {
	StartedBy string `json:"started_by,omitempty"`
}

func (p *MissionStartedPayload) EventType() Type { return MissionStarted }
func (p *MissionStartedPayload) Validate() error { return nil }
func (p *MissionStartedPayload) Summary() string { return "Started mission" }

// MissionProgressedPayload records a new overall progress value.
type MissionProgressedPayload struct {
	ProgressPercent int    `json:"progress_percent"`
	Note            string `json:"note,omitempty"`
}

func (p *MissionProgressedPayload) EventType() Type { return MissionProgressed }
func (p *MissionProgressedPayload) Validate() error {
	return validPercent("progress_percent", p.ProgressPercent)
}
func (p *MissionProgressedPayload) Summary() string {
	if p.Note != "" {
		return fmt.Sprintf("Progress %d%%: %s", p.ProgressPercent, p.Note)
	}
	return fmt.Sprintf("Progress %d%%", p.ProgressPercent)
}

// MissionPausedPayload pauses a mission.
type MissionPausedPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (p *MissionPausedPayload) EventType() Type { return MissionPaused }
func (p *MissionPausedPayload) Validate() error { return nil }
func (p *MissionPausedPayload) Summary() string { return withReason("Paused mission", p.Reason) }

// MissionResumedPayload resumes a paused mission.
type MissionResumedPayload struct{}

func (p *MissionResumedPayload) EventType() Type { return MissionResumed }
func (p *MissionResumedPayload) Validate() error { return nil }
func (p *MissionResumedPayload) Summary() string { return "Resumed mission" }

// MissionCompletedPayload closes a mission successfully.
type MissionCompletedPayload struct {
	Note string `json:"note,omitempty"`
}

func (p *MissionCompletedPayload) EventType() Type { return MissionCompleted }
func (p *MissionCompletedPayload) Validate() error { return nil }
func (p *MissionCompletedPayload) Summary() string { return withReason("Completed mission", p.Note) }

// MissionFailedPayload closes a mission as failed.
type MissionFailedPayload struct {
	Reason string `json:"reason"`
}

func (p *MissionFailedPayload) EventType() Type { return MissionFailed }
func (p *MissionFailedPayload) Validate() error { return required("reason", p.Reason) }
func (p *MissionFailedPayload) Summary() string { return withReason("Mission failed", p.Reason) }

// MissionCancelledPayload closes a mission as cancelled.
type MissionCancelledPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (p *MissionCancelledPayload) EventType() Type { return MissionCancelled }
func (p *MissionCancelledPayload) Validate() error { return nil }
func (p *MissionCancelledPayload) Summary() string {
	return withReason("Cancelled mission", p.Reason)
}

// MissionRecoveredPayload is appended by the restorer after a checkpoint is applied.
type MissionRecoveredPayload struct {
	CheckpointID     string   `json:"checkpoint_id"`
	ProgressPercent  int      `json:"progress_percent"`
	RestoredSorties  int      `json:"restored_sorties"`
	RestoredLocks    int      `json:"restored_locks"`
	RestoredMessages int      `json:"restored_messages"`
	Blockers         []string `json:"blockers,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

func (p *MissionRecoveredPayload) EventType() Type { return MissionRecovered }
func (p *MissionRecoveredPayload) Validate() error {
	if err := required("checkpoint_id", p.CheckpointID); err != nil {
		return err
	}
	return validPercent("progress_percent", p.ProgressPercent)
}
func (p *MissionRecoveredPayload) Summary() string {
	s := fmt.Sprintf("Recovered from %s (%d sorties, %d locks, %d messages)",
		p.CheckpointID, p.RestoredSorties, p.RestoredLocks, p.RestoredMessages)
	if len(p.Blockers) > 0 {
		s += fmt.Sprintf(", %d blockers", len(p.Blockers))
	}
	return s
}

// CheckpointCreatedPayload marks a checkpoint in the mission stream.
type CheckpointCreatedPayload struct {
	CheckpointID    string `json:"checkpoint_id"`
	Trigger         string `json:"trigger"`
	ProgressPercent int    `json:"progress_percent"`
}

func (p *CheckpointCreatedPayload) EventType() Type { return CheckpointCreated }
func (p *CheckpointCreatedPayload) Validate() error {
	return required("checkpoint_id", p.CheckpointID)
}
func (p *CheckpointCreatedPayload) Summary() string {
	return fmt.Sprintf("Checkpoint %s (%s) at %d%%", p.CheckpointID, p.Trigger, p.ProgressPercent)
}

// SortieCreatedPayload opens a sortie stream under a mission.
type SortieCreatedPayload struct {
	MissionID string   `json:"mission_id"`
	Title     string   `json:"title"`
	AgentID   string   `json:"agent_id,omitempty"`
	Tasks     []string `json:"tasks,omitempty"`
}

func (p *SortieCreatedPayload) EventType() Type { return SortieCreated }
func (p *SortieCreatedPayload) Validate() error {
	if err := required("mission_id", p.MissionID); err != nil {
		return err
	}
	return required("title", p.Title)
}
func (p *SortieCreatedPayload) Summary() string {
	return fmt.Sprintf("Created sortie %q", p.Title)
}

// SortieStartedPayload assigns an agent and starts work.
type SortieStartedPayload struct {
	AgentID string `json:"agent_id,omitempty"`
}

func (p *SortieStartedPayload) EventType() Type { return SortieStarted }
func (p *SortieStartedPayload) Validate() error { return nil }
func (p *SortieStartedPayload) Summary() string {
	if p.AgentID != "" {
		return fmt.Sprintf("Started sortie (agent %s)", p.AgentID)
	}
	return "Started sortie"
}

// SortieProgressedPayload records sortie progress and the files touched.
type SortieProgressedPayload struct {
	ProgressPercent int      `json:"progress_percent"`
	Note            string   `json:"note,omitempty"`
	FilesModified   []string `json:"files_modified,omitempty"`
	TasksDone       []string `json:"tasks_done,omitempty"`
}

func (p *SortieProgressedPayload) EventType() Type { return SortieProgressed }
func (p *SortieProgressedPayload) Validate() error {
	return validPercent("progress_percent", p.ProgressPercent)
}
func (p *SortieProgressedPayload) Summary() string {
	parts := []string{fmt.Sprintf("Sortie progress %d%%", p.ProgressPercent)}
	if p.Note != "" {
		parts = append(parts, p.Note)
	}
	if len(p.FilesModified) > 0 {
		parts = append(parts, fmt.Sprintf("touched %s", strings.Join(p.FilesModified, ", ")))
	}
	return strings.Join(parts, ": ")
}

// SortiePausedPayload pauses a sortie.
type SortiePausedPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (p *SortiePausedPayload) EventType() Type { return SortiePaused }
func (p *SortiePausedPayload) Validate() error { return nil }
func (p *SortiePausedPayload) Summary() string { return withReason("Paused sortie", p.Reason) }

// SortieCompletedPayload closes a sortie successfully.
type SortieCompletedPayload struct {
	Note string `json:"note,omitempty"`
}

func (p *SortieCompletedPayload) EventType() Type { return SortieCompleted }
func (p *SortieCompletedPayload) Validate() error { return nil }
func (p *SortieCompletedPayload) Summary() string { return withReason("Completed sortie", p.Note) }

// SortieFailedPayload closes a sortie as failed.
type SortieFailedPayload struct {
	Reason string `json:"reason"`
}

func (p *SortieFailedPayload) EventType() Type { return SortieFailed }
func (p *SortieFailedPayload) Validate() error { return required("reason", p.Reason) }
func (p *SortieFailedPayload) Summary() string { return withReason("Sortie failed", p.Reason) }

// SortieCancelledPayload closes a sortie as cancelled.
type SortieCancelledPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (p *SortieCancelledPayload) EventType() Type { return SortieCancelled }
func (p *SortieCancelledPayload) Validate() error { return nil }
func (p *SortieCancelledPayload) Summary() string {
	return withReason("Cancelled sortie", p.Reason)
}

// SortieRestoredPayload resets a sortie to its checkpointed status and progress.
type SortieRestoredPayload struct {
	CheckpointID    string `json:"checkpoint_id"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
}

func (p *SortieRestoredPayload) EventType() Type { return SortieRestored }
func (p *SortieRestoredPayload) Validate() error {
	if err := required("checkpoint_id", p.CheckpointID); err != nil {
		return err
	}
	if err := required("status", p.Status); err != nil {
		return err
	}
	return validPercent("progress_percent", p.ProgressPercent)
}
func (p *SortieRestoredPayload) Summary() string {
	return fmt.Sprintf("Restored sortie to %s at %d%% from %s", p.Status, p.ProgressPercent, p.CheckpointID)
}

func withReason(base, reason string) string {
	if reason == "" {
		return base
	}
	return base + ": " + reason
}
