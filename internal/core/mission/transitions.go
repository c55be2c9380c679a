// Package mission contains the pure business logic for mission and sortie
// aggregates. This is part of the Functional Core - no I/O, only pure functions.
package mission

// Status represents the lifecycle state shared by missions and sorties.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// transitions lists the statuses reachable from each status through a
// lifecycle event. Recovery is handled separately and may leave any status.
var transitions = map[Status][]Status{
	StatusPlanned:    {StatusInProgress, StatusCancelled, StatusFailed},
	StatusInProgress: {StatusPaused, StatusCompleted, StatusFailed, StatusCancelled},
	StatusPaused:     {StatusInProgress, StatusCancelled, StatusFailed},
}

// ValidStatus reports whether s is one of the six known statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusPaused, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further lifecycle events are accepted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether a lifecycle event may move from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// InitialStatus returns the status of a freshly created aggregate.
func InitialStatus() Status {
	return StatusPlanned
}
