package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/adbpg-go/internal/version"
)

// NewVersionCmd constructs the `adbpg version` subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the adbpg build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
