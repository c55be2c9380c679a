package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/example/flotilla/internal/core/checkpoint"
	"github.com/example/flotilla/internal/ports/primary"
)

// CheckpointAdapter translates CLI checkpoint operations to CheckpointService calls.
type CheckpointAdapter struct {
	service primary.CheckpointService
	out     io.Writer
}

// NewCheckpointAdapter creates a new CheckpointAdapter with the given service.
func NewCheckpointAdapter(service primary.CheckpointService, out io.Writer) *CheckpointAdapter {
	return &CheckpointAdapter{
		service: service,
		out:     out,
	}
}

// Create captures a checkpoint of a mission.
func (a *CheckpointAdapter) Create(ctx context.Context, req primary.CreateCheckpointRequest) error {
	cp, err := a.service.Create(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Created checkpoint %s for %s at %d%% (%d sorties, %d locks, %d messages)\n",
		cp.ID, cp.MissionID, cp.ProgressPercent, len(cp.Sorties), len(cp.Locks), len(cp.Messages))
	return nil
}

// List lists checkpoints, newest first.
func (a *CheckpointAdapter) List(ctx context.Context, filters primary.CheckpointFilters) error {
	checkpoints, err := a.service.List(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}

	if len(checkpoints) == 0 {
		fmt.Fprintln(a.out, "No checkpoints found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-14s %-13s %-9s %-9s %-20s %s\n", "ID", "MISSION", "TRIGGER", "PROGRESS", "CREATED", "CONSUMED")
	fmt.Fprintln(a.out, separator)
	for _, cp := range checkpoints {
		consumed := "-"
		if cp.ConsumedAt != nil {
			consumed = formatTime(*cp.ConsumedAt)
		}
		fmt.Fprintf(a.out, "%-14s %-13s %-9s %-9s %-20s %s\n",
			cp.ID, cp.MissionID, cp.Trigger, fmt.Sprintf("%d%%", cp.ProgressPercent), formatTime(cp.CreatedAt), consumed)
	}
	fmt.Fprintln(a.out)

	return nil
}

// Show displays a checkpoint and its recovery narrative.
func (a *CheckpointAdapter) Show(ctx context.Context, checkpointID string) (*primary.Checkpoint, error) {
	cp, err := a.service.Get(ctx, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	fmt.Fprintf(a.out, "\nCheckpoint: %s\n", cp.ID)
	fmt.Fprintf(a.out, "Mission:  %s\n", cp.MissionID)
	trigger := string(cp.Trigger)
	if cp.TriggerDetails != "" {
		trigger += " (" + cp.TriggerDetails + ")"
	}
	fmt.Fprintf(a.out, "Trigger:  %s\n", trigger)
	fmt.Fprintf(a.out, "Progress: %d%%\n", cp.ProgressPercent)
	fmt.Fprintf(a.out, "Created:  %s by %s\n", formatTime(cp.CreatedAt), cp.CreatedBy)
	if cp.ConsumedAt != nil {
		fmt.Fprintf(a.out, "Consumed: %s\n", formatTime(*cp.ConsumedAt))
	}

	fmt.Fprintf(a.out, "\nSummary: %s\n", cp.Context.Summary)
	if cp.Context.LastAction != "" {
		fmt.Fprintf(a.out, "Last action: %s\n", cp.Context.LastAction)
	}
	printList(a.out, "Next steps", cp.Context.NextSteps)
	printList(a.out, "Blockers", cp.Context.Blockers)
	printList(a.out, "Files modified", cp.Context.FilesModified)

	if len(cp.Sorties) > 0 {
		fmt.Fprintf(a.out, "\nSorties (%d):\n", len(cp.Sorties))
		for _, s := range cp.Sorties {
			fmt.Fprintf(a.out, "  %-12s %-12s %3d%%  %s\n", s.ID, s.Status, s.ProgressPercent, s.Title)
		}
	}
	if len(cp.Locks) > 0 {
		fmt.Fprintf(a.out, "\nLocks (%d):\n", len(cp.Locks))
		for _, l := range cp.Locks {
			fmt.Fprintf(a.out, "  %s held by %s\n", l.ResourceKey, l.HolderID)
		}
	}
	if len(cp.Messages) > 0 {
		fmt.Fprintf(a.out, "\nPending messages (%d):\n", len(cp.Messages))
		for _, m := range cp.Messages {
			fmt.Fprintf(a.out, "  %s → %s\n", m.ID, m.StreamID)
		}
	}
	fmt.Fprintln(a.out)

	return cp, nil
}

// Prune deletes checkpoints outside the retention policy.
func (a *CheckpointAdapter) Prune(ctx context.Context, policy checkpoint.RetentionPolicy) error {
	result, err := a.service.Prune(ctx, policy)
	if err != nil {
		return fmt.Errorf("failed to prune checkpoints: %w", err)
	}

	if len(result.Deleted) == 0 {
		fmt.Fprintln(a.out, "No checkpoints to prune")
		return nil
	}
	fmt.Fprintf(a.out, "✓ Pruned %d checkpoint(s): %s\n", len(result.Deleted), strings.Join(result.Deleted, ", "))
	return nil
}

func printList(out io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(out, "  - %s\n", item)
	}
}
