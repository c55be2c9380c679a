// Package recovery classifies in-flight missions by inactivity.
// This is part of the Functional Core - no I/O, only pure functions.
package recovery

import (
	"fmt"
	"sort"
	"time"
)

// DefaultInactivityThreshold is how long a mission may stay silent before it
// is reported as stale.
const DefaultInactivityThreshold = 300000 * time.Millisecond

// Action types suggested for a stale mission.
const (
	ActionResume  = "resume"  // A checkpoint exists; restore from it
	ActionInspect = "inspect" // No checkpoint; a human must decide
)

// Activity is the pre-fetched view of one in_progress mission.
type Activity struct {
	MissionID      string
	MissionTitle   string
	LastActivityAt time.Time
	Checkpoint     *CheckpointRef // latest un-consumed checkpoint, if any
}

// CheckpointRef identifies the restore path for a stale mission.
type CheckpointRef struct {
	ID              string
	ProgressPercent int
	CreatedAt       time.Time
}

// Candidate is a stale mission paired with its restore path.
type Candidate struct {
	MissionID          string
	MissionTitle       string
	LastActivityAt     time.Time
	InactivityDuration time.Duration
	Checkpoint         *CheckpointRef
	Action             string
}

// Evaluate returns the stale missions among activities, most silent first.
// A mission is stale when now - last activity exceeds threshold.
func Evaluate(activities []Activity, threshold time.Duration, now time.Time) []Candidate {
	if threshold <= 0 {
		threshold = DefaultInactivityThreshold
	}

	var candidates []Candidate
	for _, a := range activities {
		idle := now.Sub(a.LastActivityAt)
		if idle <= threshold {
			continue
		}
		c := Candidate{
			MissionID:          a.MissionID,
			MissionTitle:       a.MissionTitle,
			LastActivityAt:     a.LastActivityAt,
			InactivityDuration: idle,
			Checkpoint:         a.Checkpoint,
			Action:             ActionInspect,
		}
		if a.Checkpoint != nil {
			c.Action = ActionResume
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].InactivityDuration > candidates[j].InactivityDuration
	})
	return candidates
}

// Describe returns a one-line description of a candidate for logs and CLI.
func Describe(c Candidate) string {
	idle := c.InactivityDuration.Truncate(time.Second)
	if c.Checkpoint == nil {
		return fmt.Sprintf("%s %q silent for %s, no checkpoint", c.MissionID, c.MissionTitle, idle)
	}
	return fmt.Sprintf("%s %q silent for %s, resume from %s (%d%%)",
		c.MissionID, c.MissionTitle, idle, c.Checkpoint.ID, c.Checkpoint.ProgressPercent)
}
