package mission

import (
	"fmt"

	"github.com/example/flotilla/internal/core/event"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Human-readable reason (populated when not allowed)
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

func deny(format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// lifecycleTarget maps lifecycle events to the status they move to.
var lifecycleTarget = map[event.Type]Status{
	event.MissionStarted:   StatusInProgress,
	event.MissionPaused:    StatusPaused,
	event.MissionResumed:   StatusInProgress,
	event.MissionCompleted: StatusCompleted,
	event.MissionFailed:    StatusFailed,
	event.MissionCancelled: StatusCancelled,
	event.SortieStarted:    StatusInProgress,
	event.SortiePaused:     StatusPaused,
	event.SortieCompleted:  StatusCompleted,
	event.SortieFailed:     StatusFailed,
	event.SortieCancelled:  StatusCancelled,
}

// CanApplyToMission evaluates whether an event may be appended to a mission
// in its current state. current is nil when the stream is empty.
// Rules:
//   - the first event must be mission.created, and only the first
//   - lifecycle events follow the transition table
//   - progress is rejected once the mission is terminal
//   - recovery and checkpoint markers are accepted from any state
func CanApplyToMission(id string, current *Mission, p event.Payload) GuardResult {
	if current == nil {
		if p.EventType() != event.MissionCreated {
			return deny("Mission %s does not exist. Create it before appending %s", id, p.EventType())
		}
		return GuardResult{Allowed: true}
	}
	if p.EventType() == event.MissionCreated {
		return deny("Mission %s already exists", id)
	}
	return checkLifecycle("Mission", id, current.Status, p)
}

// CanApplyToSortie is CanApplyToMission for sortie streams.
func CanApplyToSortie(id string, current *Sortie, p event.Payload) GuardResult {
	if current == nil {
		if p.EventType() != event.SortieCreated {
			return deny("Sortie %s does not exist. Create it before appending %s", id, p.EventType())
		}
		return GuardResult{Allowed: true}
	}
	if p.EventType() == event.SortieCreated {
		return deny("Sortie %s already exists", id)
	}
	if restored, ok := p.(*event.SortieRestoredPayload); ok && !ValidStatus(Status(restored.Status)) {
		return deny("Cannot restore sortie %s to unknown status %q", id, restored.Status)
	}
	return checkLifecycle("Sortie", id, current.Status, p)
}

func checkLifecycle(kind, id string, status Status, p event.Payload) GuardResult {
	if target, ok := lifecycleTarget[p.EventType()]; ok {
		if !CanTransition(status, target) {
			return deny("%s %s cannot move from %s to %s", kind, id, status, target)
		}
		return GuardResult{Allowed: true}
	}
	switch p.EventType() {
	case event.MissionProgressed, event.SortieProgressed:
		if status.IsTerminal() {
			return deny("%s %s is %s and no longer accepts progress", kind, id, status)
		}
	}
	return GuardResult{Allowed: true}
}
