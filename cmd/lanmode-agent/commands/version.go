package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yuvaraj-ayla/lanmode/pkg/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build and protocol versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "lanmode-agent", version.Get())
		},
	}
}
