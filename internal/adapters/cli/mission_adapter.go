// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing, output formatting,
// but delegate business logic to services.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/flotilla/internal/core/event"
	"github.com/example/flotilla/internal/ports/primary"
)

const separator = "────────────────────────────────────────────────────────────────"

// MissionAdapter is a thin adapter that translates CLI operations to MissionService calls.
// It depends only on service interfaces, enabling easy testing with mocks.
type MissionAdapter struct {
	service primary.MissionService
	events  primary.EventService
	out     io.Writer
}

// NewMissionAdapter creates a new MissionAdapter with the given services.
func NewMissionAdapter(service primary.MissionService, events primary.EventService, out io.Writer) *MissionAdapter {
	return &MissionAdapter{
		service: service,
		events:  events,
		out:     out,
	}
}

// Create creates a new mission.
func (a *MissionAdapter) Create(ctx context.Context, req primary.CreateMissionRequest) error {
	mission, err := a.service.CreateMission(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Created mission %s: %s\n", mission.ID, mission.Title)
	return nil
}

// Apply appends a lifecycle or progress event to a mission.
func (a *MissionAdapter) Apply(ctx context.Context, missionID string, payload event.Payload) error {
	mission, err := a.service.ApplyMission(ctx, missionID, payload)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ %s: %s (%s, %d%%)\n", mission.ID, payload.Summary(), mission.Status, mission.ProgressPercent)
	return nil
}

// List lists missions with optional status filter.
func (a *MissionAdapter) List(ctx context.Context, status string) error {
	missions, err := a.service.ListMissions(ctx, primary.MissionFilters{
		Status: status,
	})
	if err != nil {
		return fmt.Errorf("failed to list missions: %w", err)
	}

	if len(missions) == 0 {
		fmt.Fprintln(a.out, "No missions found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-15s %-12s %-9s %s\n", "ID", "STATUS", "PROGRESS", "TITLE")
	fmt.Fprintln(a.out, separator)
	for _, m := range missions {
		fmt.Fprintf(a.out, "%-15s %-12s %-9s %s\n", m.ID, m.Status, fmt.Sprintf("%d%%", m.ProgressPercent), m.Title)
	}
	fmt.Fprintln(a.out)

	return nil
}

// Show displays details for a single mission and its sorties.
func (a *MissionAdapter) Show(ctx context.Context, missionID string) (*primary.Mission, error) {
	mission, err := a.service.GetMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}

	fmt.Fprintf(a.out, "\nMission: %s\n", mission.ID)
	fmt.Fprintf(a.out, "Title:    %s\n", mission.Title)
	fmt.Fprintf(a.out, "Status:   %s\n", mission.Status)
	fmt.Fprintf(a.out, "Progress: %d%%\n", mission.ProgressPercent)
	if mission.Description != "" {
		fmt.Fprintf(a.out, "Description: %s\n", mission.Description)
	}
	if len(mission.Tasks) > 0 {
		fmt.Fprintf(a.out, "Tasks:    %s\n", strings.Join(mission.Tasks, ", "))
	}
	fmt.Fprintf(a.out, "Created:  %s\n", formatTime(mission.CreatedAt))
	if mission.StartedAt != nil {
		fmt.Fprintf(a.out, "Started:  %s\n", formatTime(*mission.StartedAt))
	}
	if mission.CompletedAt != nil {
		fmt.Fprintf(a.out, "Completed: %s\n", formatTime(*mission.CompletedAt))
	}
	fmt.Fprintf(a.out, "Sequence: %d\n", mission.LastSequence)

	sorties, err := a.service.ListSorties(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sorties: %w", err)
	}
	if len(sorties) > 0 {
		fmt.Fprintln(a.out)
		a.printSorties(sorties)
	}
	fmt.Fprintln(a.out)

	return mission, nil
}

// CreateSortie creates a sortie under a mission.
func (a *MissionAdapter) CreateSortie(ctx context.Context, req primary.CreateSortieRequest) error {
	sortie, err := a.service.CreateSortie(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Created sortie %s in %s: %s\n", sortie.ID, sortie.MissionID, sortie.Title)
	return nil
}

// ApplySortie appends a lifecycle or progress event to a sortie.
func (a *MissionAdapter) ApplySortie(ctx context.Context, sortieID string, payload event.Payload) error {
	sortie, err := a.service.ApplySortie(ctx, sortieID, payload)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ %s: %s (%s, %d%%)\n", sortie.ID, payload.Summary(), sortie.Status, sortie.ProgressPercent)
	return nil
}

// ListSorties lists the sorties of a mission.
func (a *MissionAdapter) ListSorties(ctx context.Context, missionID string) error {
	sorties, err := a.service.ListSorties(ctx, missionID)
	if err != nil {
		return fmt.Errorf("failed to list sorties: %w", err)
	}

	if len(sorties) == 0 {
		fmt.Fprintln(a.out, "No sorties found")
		return nil
	}

	fmt.Fprintln(a.out)
	a.printSorties(sorties)
	fmt.Fprintln(a.out)
	return nil
}

func (a *MissionAdapter) printSorties(sorties []*primary.Sortie) {
	fmt.Fprintf(a.out, "%-12s %-12s %-9s %-15s %s\n", "SORTIE", "STATUS", "PROGRESS", "AGENT", "TITLE")
	fmt.Fprintln(a.out, separator)
	for _, s := range sorties {
		agent := s.AgentID
		if agent == "" {
			agent = "-"
		}
		fmt.Fprintf(a.out, "%-12s %-12s %-9s %-15s %s\n", s.ID, s.Status, fmt.Sprintf("%d%%", s.ProgressPercent), agent, s.Title)
	}
}

// Replay rebuilds a mission from its event log. With verify set, any drift
// between the log and the stored projections is returned as an error.
func (a *MissionAdapter) Replay(ctx context.Context, missionID string, verify bool) error {
	result, err := a.events.Replay(ctx, missionID)
	if err != nil {
		return fmt.Errorf("failed to replay mission: %w", err)
	}

	fmt.Fprintf(a.out, "Replayed %d events for %s\n", result.EventCount, missionID)
	fmt.Fprintf(a.out, "  mission: %s (%d%%)\n", result.Mission.Status, result.Mission.ProgressPercent)
	for _, s := range result.Sorties {
		fmt.Fprintf(a.out, "  %s: %s (%d%%)\n", s.ID, s.Status, s.ProgressPercent)
	}

	if len(result.Differences) == 0 {
		fmt.Fprintln(a.out, "✓ Projections match the event log")
		return nil
	}

	fmt.Fprintf(a.out, "⚠ %d difference(s) between log and projections:\n", len(result.Differences))
	for _, d := range result.Differences {
		fmt.Fprintf(a.out, "  - %s\n", d)
	}
	if verify {
		return fmt.Errorf("mission %s projections drifted from the event log", missionID)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
