package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tdmcli/tdmcli/internal/cli"
	"github.com/tdmcli/tdmcli/internal/ops"
)

var changeDirCmd = &cobra.Command{
	Use:   "change-dir <dir>",
	Short: "Move all templates to a new template directory",
	Long: `Move every stored snapshot into dir and use dir as the template
directory from now on.

Nothing is moved if dir already contains an entry with a template's name.
If a move fails part way, the snapshots already moved are moved back and
the registry is left unchanged.

When run interactively you are asked to confirm; --yes skips the question.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) { return nil, cobra.ShellCompDirectiveFilterDirs },
	RunE:              runChangeDir,
}

var changeDirYes bool

// Prompt input, replaceable in tests.
var (
	promptIn    io.Reader = os.Stdin
	interactive           = func() bool { return cli.IsTerminal(os.Stdin) }
)

func init() {
	changeDirCmd.Flags().BoolVarP(&changeDirYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(changeDirCmd)
}

func runChangeDir(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if a.cfg.ConfirmChangeDir && !changeDirYes && interactive() {
		reg, err := a.engine.Load()
		if err != nil {
			return err
		}
		if reg.Len() > 0 {
			prompt := fmt.Sprintf("Move %s from %s to %s?", cli.Plural(reg.Len(), "template"), reg.TemplateDirectory, args[0])
			ok, err := cli.Confirm(promptIn, out, prompt)
			if err != nil {
				return err
			}
			if !ok {
				return &cli.AbortedError{Operation: "change-dir"}
			}
		}
	}

	res, err := a.engine.Execute(cmd.Context(), ops.ChangeDirCmd{Dir: args[0]})
	if err != nil {
		var me *ops.MoveError
		if errors.As(err, &me) && len(me.Moved) > len(me.RolledBack) {
			fmt.Fprintln(cmd.ErrOrStderr(), cli.Red("warning: some templates could not be moved back; run 'tdmcli validate'"))
		}
		return err
	}
	r := res.(*ops.ChangeDirResult)

	if r.Unchanged {
		fmt.Fprintf(out, "Template directory is already %s\n", r.NewDir)
		return nil
	}
	fmt.Fprintf(out, "Template directory changed to %s (%s moved)\n", r.NewDir, cli.Plural(len(r.Moved), "template"))
	if r.OldRemoved {
		fmt.Fprintf(out, "Removed empty directory %s\n", r.OldDir)
	}
	return nil
}
