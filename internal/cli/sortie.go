package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/flotilla/internal/core/event"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/wire"
)

var sortieCmd = &cobra.Command{
	Use:   "sortie",
	Short: "Manage sorties (units of work inside a mission)",
}

var sortieCreateCmd = &cobra.Command{
	Use:   "create [mission-id] [title]",
	Short: "Create a sortie under a mission",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, _ := cmd.Flags().GetString("agent")
		tasks, _ := cmd.Flags().GetStringSlice("task")

		return wire.MissionAdapter().CreateSortie(NewContext(), primary.CreateSortieRequest{
			MissionID: args[0],
			Title:     strings.Join(args[1:], " "),
			AgentID:   agent,
			Tasks:     tasks,
		})
	},
}

var sortieStartCmd = &cobra.Command{
	Use:   "start [sortie-id]",
	Short: "Start a sortie",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, _ := cmd.Flags().GetString("agent")
		return wire.MissionAdapter().ApplySortie(NewContext(), args[0], &event.SortieStartedPayload{AgentID: agent})
	},
}

var sortieProgressCmd = &cobra.Command{
	Use:   "progress [sortie-id] [percent]",
	Short: "Record sortie progress",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pct, err := parsePercent(args[1])
		if err != nil {
			return err
		}
		note, _ := cmd.Flags().GetString("note")
		files, _ := cmd.Flags().GetStringSlice("file")
		done, _ := cmd.Flags().GetStringSlice("done")

		return wire.MissionAdapter().ApplySortie(NewContext(), args[0], &event.SortieProgressedPayload{
			ProgressPercent: pct,
			Note:            note,
			FilesModified:   files,
			TasksDone:       done,
		})
	},
}

var sortieCompleteCmd = &cobra.Command{
	Use:   "complete [sortie-id]",
	Short: "Complete a sortie",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		note, _ := cmd.Flags().GetString("note")
		return wire.MissionAdapter().ApplySortie(NewContext(), args[0], &event.SortieCompletedPayload{Note: note})
	},
}

var sortieFailCmd = &cobra.Command{
	Use:   "fail [sortie-id]",
	Short: "Mark a sortie as failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		if reason == "" {
			return fmt.Errorf("--reason is required")
		}
		return wire.MissionAdapter().ApplySortie(NewContext(), args[0], &event.SortieFailedPayload{Reason: reason})
	},
}

var sortieListCmd = &cobra.Command{
	Use:   "list [mission-id]",
	Short: "List the sorties of a mission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return wire.MissionAdapter().ListSorties(NewContext(), args[0])
	},
}

// parsePercent accepts "40" or "40%".
func parsePercent(s string) (int, error) {
	pct, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0, fmt.Errorf("invalid percent %q", s)
	}
	return pct, nil
}

// SortieCmd returns the sortie command
func SortieCmd() *cobra.Command {
	sortieCreateCmd.Flags().StringP("agent", "a", "", "Agent assigned to the sortie")
	sortieCreateCmd.Flags().StringSliceP("task", "t", nil, "Planned task (repeatable)")
	sortieStartCmd.Flags().StringP("agent", "a", "", "Agent picking up the sortie")
	sortieProgressCmd.Flags().StringP("note", "n", "", "Progress note")
	sortieProgressCmd.Flags().StringSliceP("file", "f", nil, "File modified (repeatable)")
	sortieProgressCmd.Flags().StringSlice("done", nil, "Task completed (repeatable)")
	sortieCompleteCmd.Flags().StringP("note", "n", "", "Completion note")
	sortieFailCmd.Flags().StringP("reason", "r", "", "Failure reason")

	sortieCmd.AddCommand(sortieCreateCmd)
	sortieCmd.AddCommand(sortieStartCmd)
	sortieCmd.AddCommand(sortieProgressCmd)
	sortieCmd.AddCommand(sortieCompleteCmd)
	sortieCmd.AddCommand(sortieFailCmd)
	sortieCmd.AddCommand(sortieListCmd)

	return sortieCmd
}
