package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/flotilla/internal/core/event"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/wire"
)

var missionCmd = &cobra.Command{
	Use:   "mission",
	Short: "Manage missions",
	Long:  "Create missions and drive them through their lifecycle. Every change is an event.",
}

var missionCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new mission",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		tasks, _ := cmd.Flags().GetStringSlice("task")
		meta, _ := cmd.Flags().GetStringToString("meta")

		return wire.MissionAdapter().Create(NewContext(), primary.CreateMissionRequest{
			Title:       strings.Join(args, " "),
			Description: description,
			Tasks:       tasks,
			Metadata:    meta,
		})
	},
}

var missionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List missions",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		return wire.MissionAdapter().List(NewContext(), status)
	},
}

var missionShowCmd = &cobra.Command{
	Use:   "show [mission-id]",
	Short: "Show mission details and its sorties",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := wire.MissionAdapter().Show(NewContext(), args[0])
		return err
	},
}

var missionReplayCmd = &cobra.Command{
	Use:   "replay [mission-id]",
	Short: "Rebuild a mission from its event log",
	Long: `Rebuild a mission and its sorties from sequence 0 and compare the result
with the stored projections. With --verify the command fails on any drift.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verify, _ := cmd.Flags().GetBool("verify")
		return wire.MissionAdapter().Replay(NewContext(), args[0], verify)
	},
}

// missionEventCmd builds a subcommand that appends one lifecycle event.
func missionEventCmd(use, short string, payload func(cmd *cobra.Command) (event.Payload, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [mission-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := payload(cmd)
			if err != nil {
				return err
			}
			return wire.MissionAdapter().Apply(NewContext(), args[0], p)
		},
	}
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// MissionCmd returns the mission command
func MissionCmd() *cobra.Command {
	missionCreateCmd.Flags().StringP("description", "d", "", "Mission description")
	missionCreateCmd.Flags().StringSliceP("task", "t", nil, "Planned task (repeatable)")
	missionCreateCmd.Flags().StringToString("meta", nil, "Metadata key=value pairs")
	missionListCmd.Flags().StringP("status", "s", "", "Filter by status (created, in_progress, paused, completed, failed, cancelled)")
	missionReplayCmd.Flags().Bool("verify", false, "Fail when projections differ from the log")

	start := missionEventCmd("start", "Start a mission", func(cmd *cobra.Command) (event.Payload, error) {
		return &event.MissionStartedPayload{StartedBy: flagString(cmd, "by")}, nil
	})
	start.Flags().String("by", "", "Who started the mission")

	progress := &cobra.Command{
		Use:   "progress [mission-id] [percent]",
		Short: "Record mission progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := parsePercent(args[1])
			if err != nil {
				return err
			}
			return wire.MissionAdapter().Apply(NewContext(), args[0], &event.MissionProgressedPayload{
				ProgressPercent: pct,
				Note:            flagString(cmd, "note"),
			})
		},
	}
	progress.Flags().StringP("note", "n", "", "Progress note")

	pause := missionEventCmd("pause", "Pause a mission", func(cmd *cobra.Command) (event.Payload, error) {
		return &event.MissionPausedPayload{Reason: flagString(cmd, "reason")}, nil
	})
	resume := missionEventCmd("resume", "Resume a paused mission", func(cmd *cobra.Command) (event.Payload, error) {
		return &event.MissionResumedPayload{}, nil
	})
	complete := missionEventCmd("complete", "Complete a mission", func(cmd *cobra.Command) (event.Payload, error) {
		return &event.MissionCompletedPayload{Note: flagString(cmd, "note")}, nil
	})
	fail := missionEventCmd("fail", "Mark a mission as failed", func(cmd *cobra.Command) (event.Payload, error) {
		reason := flagString(cmd, "reason")
		if reason == "" {
			return nil, fmt.Errorf("--reason is required")
		}
		return &event.MissionFailedPayload{Reason: reason}, nil
	})
	cancel := missionEventCmd("cancel", "Cancel a mission", func(cmd *cobra.Command) (event.Payload, error) {
		return &event.MissionCancelledPayload{Reason: flagString(cmd, "reason")}, nil
	})
	for _, c := range []*cobra.Command{pause, fail, cancel} {
		c.Flags().StringP("reason", "r", "", "Reason")
	}
	complete.Flags().StringP("note", "n", "", "Completion note")

	missionCmd.AddCommand(missionCreateCmd)
	missionCmd.AddCommand(missionListCmd)
	missionCmd.AddCommand(missionShowCmd)
	missionCmd.AddCommand(missionReplayCmd)
	missionCmd.AddCommand(start, progress, pause, resume, complete, fail, cancel)

	return missionCmd
}
