package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/core/recovery"
	"github.com/example/flotilla/internal/ports/primary"
)

// RestoreOutcome classifies a restore attempt for the user.
type RestoreOutcome string

const (
	OutcomeNothingToRecover      RestoreOutcome = "nothing to recover"
	OutcomeFailed                RestoreOutcome = "recovery failed"
	OutcomeRecovered             RestoreOutcome = "recovered"
	OutcomeRecoveredWithWarnings RestoreOutcome = "recovered with warnings"
)

// ClassifyRestore maps a Restore return pair onto the outcome shown to the user.
// A missing or already consumed checkpoint means there is nothing to recover;
// a rolled back restore is a failure whatever its cause.
func ClassifyRestore(result *primary.RestoreResult, err error) RestoreOutcome {
	if err != nil {
		if errors.Is(err, errs.ErrTransaction) {
			return OutcomeFailed
		}
		if errors.Is(err, errs.ErrAlreadyConsumed) || errors.Is(err, errs.ErrNotFound) {
			return OutcomeNothingToRecover
		}
		return OutcomeFailed
	}
	if result == nil || !result.Success {
		return OutcomeFailed
	}
	if len(result.Warnings) > 0 {
		return OutcomeRecoveredWithWarnings
	}
	return OutcomeRecovered
}

// RecoveryAdapter translates stale scans and restores to service calls.
type RecoveryAdapter struct {
	recovery primary.RecoveryService
	restore  primary.RestoreService
	out      io.Writer
}

// NewRecoveryAdapter creates a new RecoveryAdapter with the given services.
func NewRecoveryAdapter(recoverySvc primary.RecoveryService, restoreSvc primary.RestoreService, out io.Writer) *RecoveryAdapter {
	return &RecoveryAdapter{
		recovery: recoverySvc,
		restore:  restoreSvc,
		out:      out,
	}
}

// Scan lists stale missions and how to bring each back.
func (a *RecoveryAdapter) Scan(ctx context.Context, threshold time.Duration) error {
	candidates, err := a.recovery.FindStale(ctx, threshold)
	if err != nil {
		return fmt.Errorf("failed to scan for stale missions: %w", err)
	}

	if len(candidates) == 0 {
		fmt.Fprintln(a.out, "No stale missions")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-13s %-10s %-8s %-14s %s\n", "MISSION", "IDLE", "ACTION", "CHECKPOINT", "TITLE")
	fmt.Fprintln(a.out, separator)
	for _, c := range candidates {
		chk := "-"
		if c.CheckpointID != "" {
			chk = c.CheckpointID
		}
		fmt.Fprintf(a.out, "%-13s %-10s %-8s %-14s %s\n",
			c.MissionID, formatDuration(c.InactivityDuration), c.Action, chk, c.MissionTitle)
	}
	fmt.Fprintln(a.out)

	for _, c := range candidates {
		if c.Action == recovery.ActionResume {
			fmt.Fprintf(a.out, "  flotilla resume %s   # %s at %d%%\n", c.CheckpointID, c.MissionID, c.CheckpointProgress)
		}
	}
	return nil
}

// Restore applies a checkpoint and reports the outcome. Nothing to recover
// is not an error.
func (a *RecoveryAdapter) Restore(ctx context.Context, checkpointID string, opts primary.RestoreOptions) (RestoreOutcome, error) {
	result, err := a.restore.Restore(ctx, checkpointID, opts)
	outcome := ClassifyRestore(result, err)

	switch outcome {
	case OutcomeNothingToRecover:
		fmt.Fprintf(a.out, "Nothing to recover: %v\n", err)
		return outcome, nil
	case OutcomeFailed:
		fmt.Fprintf(a.out, "%s %s\n", color.New(color.FgRed).Sprint("✗ Recovery failed:"), checkpointID)
		if result != nil {
			for _, e := range result.Errors {
				fmt.Fprintf(a.out, "  - %s\n", e)
			}
		}
		if err == nil {
			err = fmt.Errorf("restore of %s did not succeed", checkpointID)
		}
		return outcome, fmt.Errorf("recovery failed: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Recovered %s from %s (%d sorties, %d locks, %d messages)\n",
		result.MissionID, result.CheckpointID,
		result.Restored.Sorties, result.Restored.Locks, result.Restored.Messages)
	if outcome == OutcomeRecoveredWithWarnings {
		warn := color.New(color.FgYellow)
		fmt.Fprintf(a.out, "%s\n", warn.Sprintf("⚠ %d warning(s):", len(result.Warnings)))
		for _, w := range result.Warnings {
			fmt.Fprintf(a.out, "  - %s\n", w)
		}
	}
	return outcome, nil
}
