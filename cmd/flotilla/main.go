package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/flotilla/internal/cli"
	"github.com/example/flotilla/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "flotilla",
		Short:   "flotilla - event-sourced mission checkpoints and recovery",
		Version: version.String(),
		Long: `flotilla tracks missions and their sorties as an append-only event log,
coordinates agents through resource locks, and captures checkpoints that
let a stalled mission be restored where it left off.`,
		SilenceUsage: true,
	}

	// Domain commands
	rootCmd.AddCommand(cli.MissionCmd())
	rootCmd.AddCommand(cli.SortieCmd())
	rootCmd.AddCommand(cli.EventCmd())
	rootCmd.AddCommand(cli.LockCmd())
	rootCmd.AddCommand(cli.MessageCmd())

	// Checkpoints and recovery
	rootCmd.AddCommand(cli.CheckpointCmd())
	rootCmd.AddCommand(cli.ResumeCmd())
	rootCmd.AddCommand(cli.RecoverCmd())
	rootCmd.AddCommand(cli.WatchCmd())

	rootCmd.AddCommand(cli.VersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
