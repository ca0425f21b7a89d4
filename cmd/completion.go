package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/laraflow/laraflow/internal/model"
)

// completionCmd represents the completion command.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for laraflow.

Bash:
  $ source <(laraflow completion bash)

Zsh:
  $ laraflow completion zsh > "${fpath[1]}/_laraflow"

Fish:
  $ laraflow completion fish > ~/.config/fish/completions/laraflow.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Annotations:           map[string]string{annotationNoRuntime: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		}
		return nil
	},
}

// completeEntityTypes completes the TYPE argument of trash commands.
func completeEntityTypes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return model.ValidEntityTypes(), cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
