package cli

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/render"
)

// completionCommand generates shell completion scripts.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for forceweave.

Bash:
  $ source <(forceweave completion bash)

Zsh:
  $ forceweave completion zsh > "${fpath[1]}/_forceweave"

Fish:
  $ forceweave completion fish > ~/.config/fish/completions/forceweave.fish

PowerShell:
  PS> forceweave completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}

// completeModes completes --mode with the mode names.
func completeModes(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	names := make([]string, len(filter.Modes))
	for i, m := range filter.Modes {
		names[i] = string(m)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// completeCategories completes the comma-separated --categories list,
// offering the categories not yet listed.
func completeCategories(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	prefix := ""
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		prefix = toComplete[:i+1]
	}
	seen := strings.Split(prefix, ",")
	var out []string
	for _, c := range graph.Categories {
		if !slices.Contains(seen, string(c)) {
			out = append(out, prefix+string(c))
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

// completeFormats completes --format.
func completeFormats(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	names := make([]string, len(render.Formats))
	for i, f := range render.Formats {
		names[i] = string(f)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
