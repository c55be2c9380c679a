package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/wire"
)

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Queue messages between missions and sorties",
}

var messageSendCmd = &cobra.Command{
	Use:   "send [stream-id] [payload]",
	Short: "Queue a message on a stream",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sender, _ := cmd.Flags().GetString("from")

		msg, err := wire.MessageService().Send(NewContext(), primary.SendMessageRequest{
			StreamID: args[0],
			Sender:   sender,
			Payload:  strings.Join(args[1:], " "),
		})
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}

		fmt.Printf("✓ Queued %s on %s\n", msg.ID, msg.StreamID)
		return nil
	},
}

var messageListCmd = &cobra.Command{
	Use:   "list [stream-id...]",
	Short: "List undelivered messages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		messages, err := wire.MessageService().ListPending(NewContext(), args)
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}

		if len(messages) == 0 {
			fmt.Println("No pending messages.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTREAM\tFROM\tPAYLOAD")
		fmt.Fprintln(w, "--\t------\t----\t-------")
		for _, m := range messages {
			from := m.Sender
			if from == "" {
				from = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.StreamID, from, m.Payload)
		}
		w.Flush()
		return nil
	},
}

var messageDeliverCmd = &cobra.Command{
	Use:   "deliver [message-id]",
	Short: "Mark a message as delivered",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := wire.MessageService().MarkDelivered(NewContext(), args[0]); err != nil {
			return fmt.Errorf("failed to deliver message: %w", err)
		}
		fmt.Printf("✓ Delivered %s\n", args[0])
		return nil
	},
}

// MessageCmd returns the message command
func MessageCmd() *cobra.Command {
	messageSendCmd.Flags().String("from", "", "Sender id")

	messageCmd.AddCommand(messageSendCmd)
	messageCmd.AddCommand(messageListCmd)
	messageCmd.AddCommand(messageDeliverCmd)

	return messageCmd
}
