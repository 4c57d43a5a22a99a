package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set by the build via -ldflags "-X ...cmd.Version=v0.2.0".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the copytrader version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "copytrader", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
