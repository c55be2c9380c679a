package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/flotilla/internal/core/event"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/wire"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Inspect the event log",
}

var eventListCmd = &cobra.Command{
	Use:   "list [mission-id]",
	Short: "Show recent events of a mission and its sorties",
	Long: `Without --stream, shows the newest events across a mission and its sorties.
With --stream sortie and a sortie id, shows that stream from --after onwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		stream, _ := cmd.Flags().GetString("stream")
		after, _ := cmd.Flags().GetInt64("after")
		limit, _ := cmd.Flags().GetInt("limit")

		var (
			events []*primary.Event
			err    error
		)
		if stream == "" {
			events, err = wire.EventService().ListRecent(ctx, args[0], limit)
		} else {
			events, err = wire.EventService().GetByStream(ctx, event.StreamType(stream), args[0], after)
		}
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		printEvents(events)
		return nil
	},
}

var eventCausationCmd = &cobra.Command{
	Use:   "causation [event-id]",
	Short: "Show events caused by an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		correlation, _ := cmd.Flags().GetBool("correlation")

		var (
			events []*primary.Event
			err    error
		)
		if correlation {
			events, err = wire.EventService().GetByCorrelation(ctx, args[0])
		} else {
			events, err = wire.EventService().GetByCausation(ctx, args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		printEvents(events)
		return nil
	},
}

var eventHeadCmd = &cobra.Command{
	Use:   "head",
	Short: "Show the latest global sequence",
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := wire.EventService().GetLatestSequence(NewContext())
		if err != nil {
			return fmt.Errorf("failed to read sequence: %w", err)
		}
		fmt.Println(seq)
		return nil
	},
}

func printEvents(events []*primary.Event) {
	if len(events) == 0 {
		fmt.Println("No events found.")
		return
	}

	dim := color.New(color.Faint)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tSTREAM\tTYPE\tSUMMARY\tOCCURRED")
	fmt.Fprintln(w, "---\t------\t----\t-------\t--------")
	for _, e := range events {
		fmt.Fprintf(w, "%d\t%s/%s\t%s\t%s\t%s\n",
			e.Sequence,
			e.StreamType, e.StreamID,
			e.Type,
			e.Payload.Summary(),
			dim.Sprint(e.OccurredAt.Local().Format("2006-01-02 15:04:05")),
		)
	}
	w.Flush()
}

// EventCmd returns the event command
func EventCmd() *cobra.Command {
	eventListCmd.Flags().String("stream", "", "Read a single stream of this type (mission or sortie) instead")
	eventListCmd.Flags().Int64("after", 0, "Only events after this sequence (with --stream)")
	eventListCmd.Flags().IntP("limit", "n", 20, "Maximum events to show")
	eventCausationCmd.Flags().Bool("correlation", false, "Treat the argument as a correlation id")

	eventCmd.AddCommand(eventListCmd)
	eventCmd.AddCommand(eventCausationCmd)
	eventCmd.AddCommand(eventHeadCmd)

	return eventCmd
}
