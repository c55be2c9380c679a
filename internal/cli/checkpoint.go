package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/flotilla/internal/core/checkpoint"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/wire"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Capture and inspect mission checkpoints",
}

var checkpointCreateCmd = &cobra.Command{
	Use:   "create [mission-id]",
	Short: "Capture a checkpoint of a mission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		details, _ := cmd.Flags().GetString("details")
		blockers, _ := cmd.Flags().GetStringSlice("blocker")

		return wire.CheckpointAdapter().Create(NewContext(), primary.CreateCheckpointRequest{
			MissionID:      args[0],
			Trigger:        checkpoint.TriggerManual,
			TriggerDetails: details,
			Blockers:       blockers,
		})
	},
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		missionID, _ := cmd.Flags().GetString("mission")
		all, _ := cmd.Flags().GetBool("all")
		limit, _ := cmd.Flags().GetInt("limit")

		return wire.CheckpointAdapter().List(NewContext(), primary.CheckpointFilters{
			MissionID:       missionID,
			IncludeConsumed: all,
			Limit:           limit,
		})
	},
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show [checkpoint-id]",
	Short: "Show a checkpoint and its recovery context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := wire.CheckpointAdapter().Show(NewContext(), args[0])
		return err
	},
}

var checkpointPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete checkpoints outside the retention policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		policy := wire.RetentionPolicy()
		if cmd.Flags().Changed("max-age") {
			policy.MaxAge, _ = cmd.Flags().GetDuration("max-age")
		}
		if cmd.Flags().Changed("keep") {
			policy.MaxPerMission, _ = cmd.Flags().GetInt("keep")
		}
		return wire.CheckpointAdapter().Prune(NewContext(), policy)
	},
}

// CheckpointCmd returns the checkpoint command
func CheckpointCmd() *cobra.Command {
	checkpointCreateCmd.Flags().String("details", "", "Free-form trigger details")
	checkpointCreateCmd.Flags().StringSlice("blocker", nil, "Known blocker to record (repeatable)")
	checkpointListCmd.Flags().StringP("mission", "m", "", "Only checkpoints of this mission")
	checkpointListCmd.Flags().BoolP("all", "a", false, "Include consumed checkpoints")
	checkpointListCmd.Flags().IntP("limit", "n", 0, "Maximum checkpoints to show")
	checkpointPruneCmd.Flags().Duration("max-age", 0, "Override the retention age")
	checkpointPruneCmd.Flags().Int("keep", 0, "Override how many checkpoints to keep per mission")

	checkpointCmd.AddCommand(checkpointCreateCmd)
	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointPruneCmd)

	return checkpointCmd
}
