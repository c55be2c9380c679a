package mission

import (
	"fmt"
	"time"

	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/core/event"
)

// Applied is an event as seen by the fold: payload plus the store-assigned
// ordering and timestamp.
type Applied struct {
	Sequence   int64
	OccurredAt time.Time
	Payload    event.Payload
}

// Mission is the derived state of a mission stream.
type Mission struct {
	ID              string
	Title           string
	Description     string
	Status          Status
	ProgressPercent int
	Tasks           []string
	Metadata        map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastSequence    int64
}

// Sortie is the derived state of a sortie stream.
type Sortie struct {
	ID              string
	MissionID       string
	Title           string
	AgentID         string
	Status          Status
	ProgressPercent int
	Tasks           []string
	TasksDone       []string
	FilesModified   []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastSequence    int64
}

// PendingTasks returns tasks not yet reported done, in declaration order.
func (s *Sortie) PendingTasks() []string {
	done := make(map[string]bool, len(s.TasksDone))
	for _, t := range s.TasksDone {
		done[t] = true
	}
	var pending []string
	for _, t := range s.Tasks {
		if !done[t] {
			pending = append(pending, t)
		}
	}
	return pending
}

// ApplyMission folds one event into a mission. current is nil before the
// creation event. The returned value is a fresh copy; current is not mutated.
func ApplyMission(id string, current *Mission, e Applied) (*Mission, error) {
	if current == nil {
		created, ok := e.Payload.(*event.MissionCreatedPayload)
		if !ok {
			return nil, errs.Validation("event_type", "mission %s must start with %s, got %s", id, event.MissionCreated, e.Payload.EventType())
		}
		return &Mission{
			ID:           id,
			Title:        created.Title,
			Description:  created.Description,
			Status:       InitialStatus(),
			Tasks:        append([]string(nil), created.Tasks...),
			Metadata:     copyMetadata(created.Metadata),
			CreatedAt:    e.OccurredAt,
			UpdatedAt:    e.OccurredAt,
			LastSequence: e.Sequence,
		}, nil
	}

	m := *current
	m.Tasks = append([]string(nil), current.Tasks...)
	m.Metadata = copyMetadata(current.Metadata)
	m.UpdatedAt = e.OccurredAt
	m.LastSequence = e.Sequence

	switch p := e.Payload.(type) {
	case *event.MissionCreatedPayload:
		return nil, errs.Validation("event_type", "mission %s already created", id)
	case *event.MissionStartedPayload:
		m.Status = StatusInProgress
		if m.StartedAt == nil {
			t := e.OccurredAt
			m.StartedAt = &t
		}
	case *event.MissionProgressedPayload:
		m.ProgressPercent = p.ProgressPercent
	case *event.MissionPausedPayload:
		m.Status = StatusPaused
	case *event.MissionResumedPayload:
		m.Status = StatusInProgress
	case *event.MissionCompletedPayload:
		m.Status = StatusCompleted
		m.ProgressPercent = 100
		t := e.OccurredAt
		m.CompletedAt = &t
	case *event.MissionFailedPayload:
		m.Status = StatusFailed
		t := e.OccurredAt
		m.CompletedAt = &t
	case *event.MissionCancelledPayload:
		m.Status = StatusCancelled
		t := e.OccurredAt
		m.CompletedAt = &t
	case *event.MissionRecoveredPayload:
		m.Status = StatusInProgress
		m.ProgressPercent = p.ProgressPercent
		m.CompletedAt = nil
		if m.StartedAt == nil {
			t := e.OccurredAt
			m.StartedAt = &t
		}
	case *event.CheckpointCreatedPayload:
		// activity only
	default:
		return nil, errs.Validation("event_type", "%s does not apply to mission streams", e.Payload.EventType())
	}
	return &m, nil
}

// ApplySortie folds one event into a sortie. current is nil before the
// creation event. The returned value is a fresh copy; current is not mutated.
func ApplySortie(id string, current *Sortie, e Applied) (*Sortie, error) {
	if current == nil {
		created, ok := e.Payload.(*event.SortieCreatedPayload)
		if !ok {
			return nil, errs.Validation("event_type", "sortie %s must start with %s, got %s", id, event.SortieCreated, e.Payload.EventType())
		}
		return &Sortie{
			ID:           id,
			MissionID:    created.MissionID,
			Title:        created.Title,
			AgentID:      created.AgentID,
			Status:       InitialStatus(),
			Tasks:        append([]string(nil), created.Tasks...),
			CreatedAt:    e.OccurredAt,
			UpdatedAt:    e.OccurredAt,
			LastSequence: e.Sequence,
		}, nil
	}

	s := *current
	s.Tasks = append([]string(nil), current.Tasks...)
	s.TasksDone = append([]string(nil), current.TasksDone...)
	s.FilesModified = append([]string(nil), current.FilesModified...)
	s.UpdatedAt = e.OccurredAt
	s.LastSequence = e.Sequence

	switch p := e.Payload.(type) {
	case *event.SortieCreatedPayload:
		return nil, errs.Validation("event_type", "sortie %s already created", id)
	case *event.SortieStartedPayload:
		s.Status = StatusInProgress
		if p.AgentID != "" {
			s.AgentID = p.AgentID
		}
	case *event.SortieProgressedPayload:
		s.ProgressPercent = p.ProgressPercent
		s.FilesModified = appendUnique(s.FilesModified, p.FilesModified...)
		s.TasksDone = appendUnique(s.TasksDone, p.TasksDone...)
	case *event.SortiePausedPayload:
		s.Status = StatusPaused
	case *event.SortieCompletedPayload:
		s.Status = StatusCompleted
		s.ProgressPercent = 100
		s.TasksDone = appendUnique(s.TasksDone, s.Tasks...)
	case *event.SortieFailedPayload:
		s.Status = StatusFailed
	case *event.SortieCancelledPayload:
		s.Status = StatusCancelled
	case *event.SortieRestoredPayload:
		s.Status = Status(p.Status)
		s.ProgressPercent = p.ProgressPercent
	default:
		return nil, errs.Validation("event_type", "%s does not apply to sortie streams", e.Payload.EventType())
	}
	return &s, nil
}

// ReplayMission folds a full mission stream from the beginning.
func ReplayMission(id string, events []Applied) (*Mission, error) {
	var m *Mission
	for _, e := range events {
		next, err := ApplyMission(id, m, e)
		if err != nil {
			return nil, fmt.Errorf("replay %s at sequence %d: %w", id, e.Sequence, err)
		}
		m = next
	}
	return m, nil
}

// ReplaySortie folds a full sortie stream from the beginning.
func ReplaySortie(id string, events []Applied) (*Sortie, error) {
	var s *Sortie
	for _, e := range events {
		next, err := ApplySortie(id, s, e)
		if err != nil {
			return nil, fmt.Errorf("replay %s at sequence %d: %w", id, e.Sequence, err)
		}
		s = next
	}
	return s, nil
}

func copyMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func appendUnique(list []string, items ...string) []string {
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		seen[v] = true
	}
	for _, v := range items {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		list = append(list, v)
	}
	return list
}
