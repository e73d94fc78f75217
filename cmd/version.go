package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "wr %s\n", appVersion)
		fmt.Fprintf(out, "  commit:  %s\n", appCommit)
		fmt.Fprintf(out, "  built:   %s\n", appDate)
		fmt.Fprintf(out, "  windows: %s\n", core.WindowsVersionString())
	},
}
