package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/wire"
)

// ResumeCmd returns the resume command, which restores a mission from a checkpoint.
func ResumeCmd() *cobra.Command {
	var forceLocks bool
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "resume [checkpoint-id]",
		Short: "Restore a mission from a checkpoint",
		Long: `Restore a mission's sorties, locks and pending messages from a checkpoint
in one transaction. Locks now held by someone else are reported as blockers
unless --force-locks, which releases them first (asks for confirmation unless --yes).

Examples:
  flotilla resume chk-1a2b3c4d
  flotilla resume chk-1a2b3c4d --force-locks --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checkpointID := args[0]

			if forceLocks && !skipConfirm {
				msg := fmt.Sprintf("Force-release locks held by others while restoring %s?", checkpointID)
				if !confirmPrompt(cmd.InOrStdin(), cmd.OutOrStdout(), msg) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			_, err := wire.RecoveryAdapterWithOutput(cmd.OutOrStdout()).Restore(NewContext(), checkpointID, primary.RestoreOptions{
				ForceLocks: forceLocks,
			})
			return err
		},
	}

	cmd.Flags().BoolVar(&forceLocks, "force-locks", false, "Release conflicting locks held by other holders")
	cmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "Skip confirmation prompt for --force-locks")

	return cmd
}

// RecoverCmd returns the recover command
func RecoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Find missions that need recovery",
	}

	scan := &cobra.Command{
		Use:   "scan",
		Short: "List in-progress missions that have gone quiet",
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, _ := cmd.Flags().GetDuration("threshold")
			if threshold == 0 {
				fmt.Printf("Inactivity threshold: %s\n", color.New(color.Bold).Sprint(wire.Config().InactivityThreshold()))
			}
			return wire.RecoveryAdapter().Scan(NewContext(), threshold)
		},
	}
	scan.Flags().Duration("threshold", 0, "Inactivity threshold (default from config)")

	cmd.AddCommand(scan)
	return cmd
}
