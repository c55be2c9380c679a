package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/wire"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Manage resource locks",
	Long:  "Acquire and release exclusive, time-limited locks on resource keys such as file paths.",
}

var lockAcquireCmd = &cobra.Command{
	Use:   "acquire [resource] [holder]",
	Short: "Acquire a lock",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		purpose, _ := cmd.Flags().GetString("purpose")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		return wire.LockAdapter().Acquire(NewContext(), primary.AcquireLockRequest{
			ResourceKey: args[0],
			HolderID:    args[1],
			Purpose:     purpose,
			Timeout:     timeout,
		})
	},
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release [lock-id]",
	Short: "Release a lock",
	Long: `Release a lock as its holder (--holder), or regardless of holder with --force.

Examples:
  flotilla lock release lock-1a2b3c4d --holder agent-7
  flotilla lock release lock-1a2b3c4d --force --reason "agent crashed"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		holder, _ := cmd.Flags().GetString("holder")
		force, _ := cmd.Flags().GetBool("force")
		reason, _ := cmd.Flags().GetString("reason")

		if force {
			return wire.LockAdapter().ForceRelease(NewContext(), args[0], reason)
		}
		if holder == "" {
			return fmt.Errorf("--holder is required unless --force is set")
		}
		return wire.LockAdapter().Release(NewContext(), args[0], holder)
	},
}

var lockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active locks",
	RunE: func(cmd *cobra.Command, args []string) error {
		holder, _ := cmd.Flags().GetString("holder")
		return wire.LockAdapter().List(NewContext(), holder)
	},
}

var lockExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Release every timed-out lock",
	RunE: func(cmd *cobra.Command, args []string) error {
		return wire.LockAdapter().Expire(NewContext())
	},
}

// LockCmd returns the lock command
func LockCmd() *cobra.Command {
	lockAcquireCmd.Flags().StringP("purpose", "p", "", "Why the lock is held")
	lockAcquireCmd.Flags().Duration("timeout", 0, "Lock timeout (default from config)")
	lockReleaseCmd.Flags().String("holder", "", "Holder releasing the lock")
	lockReleaseCmd.Flags().BoolP("force", "f", false, "Release regardless of holder")
	lockReleaseCmd.Flags().String("reason", "", "Reason recorded for a forced release")
	lockListCmd.Flags().String("holder", "", "Only locks held by this holder")

	lockCmd.AddCommand(lockAcquireCmd)
	lockCmd.AddCommand(lockReleaseCmd)
	lockCmd.AddCommand(lockListCmd)
	lockCmd.AddCommand(lockExpireCmd)

	return lockCmd
}
