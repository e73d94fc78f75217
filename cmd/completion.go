package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [powershell|bash|zsh|fish]",
	Short: "Set up shell tab completion",
	Long: `Generate a tab completion script for the given shell.

PowerShell:
  wr completion powershell | Out-String | Invoke-Expression`,
	ValidArgs: []string{"powershell", "bash", "zsh", "fish"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		case "bash":
			return cmd.Root().GenBashCompletionV2(out, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		default:
			return cmd.Root().GenFishCompletion(out, true)
		}
	},
}
