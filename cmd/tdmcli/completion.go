package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/tdmcli/tdmcli/internal/cli"
)

var completionCmd = &cobra.Command{
	Use:   "completion",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for tdmcli.

To load completions:

Bash:
  $ source <(tdmcli completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ tdmcli completion bash > /etc/bash_completion.d/tdmcli
  # macOS:
  $ tdmcli completion bash > $(brew --prefix)/etc/bash_completion.d/tdmcli

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  # To load completions for each session, execute once:
  $ tdmcli completion zsh > "${fpath[1]}/_tdmcli"
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ tdmcli completion fish | source
  # To load completions for each session, execute once:
  $ tdmcli completion fish > ~/.config/fish/completions/tdmcli.fish

PowerShell:
  PS> tdmcli completion powershell | Out-String | Invoke-Expression
`,
}

var completionBashCmd = &cobra.Command{
	Use:   "bash",
	Short: "Generate bash completion script",
	Long:  "Generate the autocompletion script for bash.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rootCmd.GenBashCompletion(cmd.OutOrStdout())
	},
}

var completionZshCmd = &cobra.Command{
	Use:   "zsh",
	Short: "Generate zsh completion script",
	Long:  "Generate the autocompletion script for zsh.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rootCmd.GenZshCompletion(cmd.OutOrStdout())
	},
}

var completionFishCmd = &cobra.Command{
	Use:   "fish",
	Short: "Generate fish completion script",
	Long:  "Generate the autocompletion script for fish.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
	},
}

var completionPowerShellCmd = &cobra.Command{
	Use:   "powershell",
	Short: "Generate PowerShell completion script",
	Long:  "Generate the autocompletion script for PowerShell.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rootCmd.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
	},
}

func init() {
	completionCmd.AddCommand(completionBashCmd)
	completionCmd.AddCommand(completionZshCmd)
	completionCmd.AddCommand(completionFishCmd)
	completionCmd.AddCommand(completionPowerShellCmd)
	rootCmd.AddCommand(completionCmd)
}

// completeTemplateNames completes the first argument with registered template names.
func completeTemplateNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	a, err := openApp(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	reg, err := a.engine.Load()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	toCompleteLower := strings.ToLower(toComplete)

	for _, t := range reg.Templates() {
		if strings.HasPrefix(strings.ToLower(t.Name), toCompleteLower) {
			// Include the snapshot path in the completion description
			completions = append(completions, t.Name+"\t"+cli.ShortenPath(t.StoredPath, 40))
		}
	}

	return completions, cobra.ShellCompDirectiveNoFileComp
}
