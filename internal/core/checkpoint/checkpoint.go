// Package checkpoint contains the pure business logic for checkpoints:
// identifiers, snapshot shapes, threshold crossing, recovery narrative and
// retention planning. This is part of the Functional Core - no I/O.
package checkpoint

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/flotilla/internal/core/errs"
)

// SchemaVersion is the only snapshot layout this build reads and writes.
const SchemaVersion = 1

// Trigger describes why a checkpoint was taken.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerProgress Trigger = "progress"
	TriggerError    Trigger = "error"
)

// ValidTrigger reports whether t is a known trigger.
func ValidTrigger(t Trigger) bool {
	return t == TriggerManual || t == TriggerProgress || t == TriggerError
}

var idPattern = regexp.MustCompile(`^chk-[0-9a-f]{8}$`)

// NewID returns a checkpoint identifier of the form chk-xxxxxxxx.
func NewID() string {
	return "chk-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// IsID reports whether s looks like a checkpoint identifier.
func IsID(s string) bool {
	return idPattern.MatchString(s)
}

// CheckSchemaVersion rejects snapshots written by a layout this build does
// not understand. There is no upgrade path yet.
func CheckSchemaVersion(v int) error {
	if v != SchemaVersion {
		return errs.Validation("schema_version", "unsupported checkpoint schema version %d (supported: %d)", v, SchemaVersion)
	}
	return nil
}

// SortieSnapshot is a sortie as captured in a checkpoint.
type SortieSnapshot struct {
	ID              string    `json:"id"`
	MissionID       string    `json:"mission_id"`
	Title           string    `json:"title"`
	AgentID         string    `json:"agent_id,omitempty"`
	Status          string    `json:"status"`
	ProgressPercent int       `json:"progress_percent"`
	Tasks           []string  `json:"tasks,omitempty"`
	TasksDone       []string  `json:"tasks_done,omitempty"`
	FilesModified   []string  `json:"files_modified,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// LockSnapshot is an active lock as captured in a checkpoint.
type LockSnapshot struct {
	ID          string    `json:"id"`
	ResourceKey string    `json:"resource_key"`
	HolderID    string    `json:"holder_id"`
	Purpose     string    `json:"purpose,omitempty"`
	AcquiredAt  time.Time `json:"acquired_at"`
	TimeoutMs   int64     `json:"timeout_ms"`
}

// MessageSnapshot is an undelivered message as captured in a checkpoint.
type MessageSnapshot struct {
	ID        string    `json:"id"`
	StreamID  string    `json:"stream_id"`
	Sender    string    `json:"sender,omitempty"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// RecoveryContext is the human-readable narrative stored with a checkpoint.
type RecoveryContext struct {
	LastAction    string   `json:"last_action"`
	NextSteps     []string `json:"next_steps"`
	Blockers      []string `json:"blockers"`
	FilesModified []string `json:"files_modified"`
	Summary       string   `json:"summary"`
	ElapsedMs     int64    `json:"elapsed_ms"`
}

// ContextInput is everything BuildRecoveryContext needs, pre-fetched.
type ContextInput struct {
	MissionTitle    string
	MissionStatus   string
	ProgressPercent int
	StartedAt       *time.Time
	Now             time.Time
	RecentSummaries []string // newest first
	Sorties         []SortieSnapshot
	Blockers        []string // supplied by the caller
	LockConflicts   []string // conflicts known to the registry
}

// BuildRecoveryContext assembles the narrative for a checkpoint.
func BuildRecoveryContext(in ContextInput) RecoveryContext {
	rc := RecoveryContext{
		NextSteps:     []string{},
		Blockers:      []string{},
		FilesModified: []string{},
	}

	if len(in.RecentSummaries) > 0 {
		rc.LastAction = in.RecentSummaries[0]
	}

	seenFiles := make(map[string]bool)
	active := 0
	for _, s := range in.Sorties {
		if isOpenStatus(s.Status) {
			active++
			for _, task := range pending(s) {
				rc.NextSteps = append(rc.NextSteps, fmt.Sprintf("%s: %s", s.ID, task))
			}
			if len(pending(s)) == 0 && s.ProgressPercent < 100 {
				rc.NextSteps = append(rc.NextSteps, fmt.Sprintf("%s: finish %q (%d%%)", s.ID, s.Title, s.ProgressPercent))
			}
		}
		for _, f := range s.FilesModified {
			if !seenFiles[f] {
				seenFiles[f] = true
				rc.FilesModified = append(rc.FilesModified, f)
			}
		}
	}

	seenBlockers := make(map[string]bool)
	for _, b := range append(append([]string(nil), in.Blockers...), in.LockConflicts...) {
		if b != "" && !seenBlockers[b] {
			seenBlockers[b] = true
			rc.Blockers = append(rc.Blockers, b)
		}
	}

	if in.StartedAt != nil && !in.Now.Before(*in.StartedAt) {
		rc.ElapsedMs = in.Now.Sub(*in.StartedAt).Milliseconds()
	}

	rc.Summary = fmt.Sprintf("%s is %s at %d%% with %d of %d sorties open",
		in.MissionTitle, in.MissionStatus, in.ProgressPercent, active, len(in.Sorties))
	if len(rc.Blockers) > 0 {
		rc.Summary += fmt.Sprintf("; %d blockers", len(rc.Blockers))
	}
	return rc
}

func isOpenStatus(s string) bool {
	return s == "planned" || s == "in_progress" || s == "paused"
}

func pending(s SortieSnapshot) []string {
	done := make(map[string]bool, len(s.TasksDone))
	for _, t := range s.TasksDone {
		done[t] = true
	}
	var out []string
	for _, t := range s.Tasks {
		if !done[t] {
			out = append(out, t)
		}
	}
	return out
}
