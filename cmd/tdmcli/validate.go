package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tdmcli/tdmcli/internal/cli"
	"github.com/tdmcli/tdmcli/internal/ops"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the registry against the template directory",
	Long: `Check the registry against the template directory.

Checks for:
- Templates whose snapshot directory is missing
- Snapshots stored outside the template directory
- Directories in the template directory no template refers to
- Staging directories left behind by an interrupted create or import

Use --fix to drop missing templates from the registry and remove leftover
staging directories. Untracked directories are never removed.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

var validateFix bool

func init() {
	validateCmd.Flags().BoolVar(&validateFix, "fix", false, "auto-repair fixable issues")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	res, err := a.engine.Execute(cmd.Context(), ops.ValidateCmd{Fix: validateFix})
	if err != nil {
		return err
	}
	r := res.(*ops.ValidateResult)

	out := cmd.OutOrStdout()
	if r.OK() {
		fmt.Fprintln(out, cli.Green("No issues found."))
		return nil
	}

	fmt.Fprintf(out, "Found %s:\n\n", cli.Plural(len(r.Issues), "issue"))
	for _, is := range r.Issues {
		label := cli.IssueLabel(is)
		if is.Name != "" {
			fmt.Fprintf(out, "%s %s: %s\n", is.Name, label, is.Path)
		} else {
			fmt.Fprintf(out, "%s: %s\n", label, is.Path)
		}
	}

	remaining := len(r.Issues) - r.Fixed()
	if validateFix {
		fmt.Fprintf(out, "\nFixed %d of %d.\n", r.Fixed(), len(r.Issues))
	}
	if remaining > 0 {
		return &cli.ValidationError{Message: fmt.Sprintf("%s remaining", cli.Plural(remaining, "issue"))}
	}
	return nil
}
