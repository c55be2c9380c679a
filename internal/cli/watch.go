package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/flotilla/internal/ctxutil"
	"github.com/example/flotilla/internal/wire"
)

// WatchCmd returns the watch command, which runs the maintenance jobs.
func WatchCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run stale scans, lock expiry, progress checkpoints and pruning",
		Long: `Run the maintenance watcher until interrupted. Each scan interval it
releases expired locks, checkpoints missions that crossed progress thresholds
and reports stale missions; checkpoints are pruned on a slower interval.

Use --once to run every job a single time and exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if actor := wire.Config().Actor; actor != "" {
				ctx = ctxutil.WithActorID(ctx, actor)
			}

			watcher := wire.Watcher()
			if once {
				if err := watcher.RunOnce(ctx); err != nil {
					return fmt.Errorf("maintenance pass failed: %w", err)
				}
				fmt.Println("✓ Maintenance pass complete")
				return nil
			}

			fmt.Printf("%s every %s (Ctrl+C to stop)\n",
				color.New(color.FgCyan).Sprint("Watching"), wire.Config().ScanIntervalDuration())
			if err := watcher.Run(ctx); err != nil {
				return fmt.Errorf("watcher stopped: %w", err)
			}
			fmt.Println("Stopped.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run every job once and exit")
	return cmd
}
