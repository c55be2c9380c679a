package primary

import (
	"context"
	"time"

	"github.com/example/flotilla/internal/core/event"
)

// MissionService defines the primary port for mission and sortie lifecycle.
// Every change is an event appended through the EventService.
type MissionService interface {
	// CreateMission allocates an ID and appends mission.created.
	CreateMission(ctx context.Context, req CreateMissionRequest) (*Mission, error)

	// ApplyMission appends a lifecycle or progress event to a mission.
	ApplyMission(ctx context.Context, missionID string, payload event.Payload) (*Mission, error)

	// GetMission retrieves a mission by ID.
	GetMission(ctx context.Context, missionID string) (*Mission, error)

	// ListMissions lists missions with optional filters.
	ListMissions(ctx context.Context, filters MissionFilters) ([]*Mission, error)

	// CreateSortie allocates an ID and appends sortie.created.
	CreateSortie(ctx context.Context, req CreateSortieRequest) (*Sortie, error)

	// ApplySortie appends a lifecycle or progress event to a sortie.
	ApplySortie(ctx context.Context, sortieID string, payload event.Payload) (*Sortie, error)

	// GetSortie retrieves a sortie by ID.
	GetSortie(ctx context.Context, sortieID string) (*Sortie, error)

	// ListSorties lists the sorties of a mission.
	ListSorties(ctx context.Context, missionID string) ([]*Sortie, error)
}

// CreateMissionRequest contains parameters for creating a mission.
type CreateMissionRequest struct {
	Title       string
	Description string
	Tasks       []string
	Metadata    map[string]string
}

// CreateSortieRequest contains parameters for creating a sortie.
type CreateSortieRequest struct {
	MissionID string
	Title     string
	AgentID   string
	Tasks     []string
}

// Mission represents a mission entity at the port boundary.
type Mission struct {
	ID              string
	Title           string
	Description     string
	Status          string
	ProgressPercent int
	Tasks           []string
	Metadata        map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastSequence    int64
}

// Sortie represents a sortie entity at the port boundary.
type Sortie struct {
	ID              string
	MissionID       string
	Title           string
	AgentID         string
	Status          string
	ProgressPercent int
	Tasks           []string
	TasksDone       []string
	FilesModified   []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastSequence    int64
}

// MissionFilters contains filter options for querying missions.
type MissionFilters struct {
	Status string
	Limit  int
}
