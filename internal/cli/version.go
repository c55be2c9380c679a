package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/flotilla/internal/version"
)

// VersionCmd returns the version command
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
