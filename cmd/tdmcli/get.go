package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tdmcli/tdmcli/internal/cli"
	"github.com/tdmcli/tdmcli/internal/ops"
)

var getCmd = &cobra.Command{
	Use:   "get <name> [dir]",
	Short: "Copy a template into the current directory",
	Long: `Copy the contents of a template into dir (default: current directory).

Files that already exist with the same path are overwritten; other files
are left alone. The name may be abbreviated to any unique prefix; an
abbreviated name is confirmed first and refused when not run interactively.`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: completeTemplateNames,
	RunE:              runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	name, err := a.resolveName(args[0])
	if err != nil {
		return err
	}
	if !strings.EqualFold(name, args[0]) {
		if err := confirmAbbreviation(cmd, args[0], name); err != nil {
			return err
		}
	}

	dest := ""
	if len(args) > 1 {
		dest = args[1]
	} else if dest, err = os.Getwd(); err != nil {
		return err
	}

	res, err := a.engine.Execute(cmd.Context(), ops.GetCmd{Name: name, Dest: dest})
	if err != nil {
		return err
	}
	r := res.(*ops.GetResult)

	msg := fmt.Sprintf("Copied %s into %s (%s", r.Template.Name, r.Dest, cli.Plural(r.Copy.Files, "file"))
	if r.Copy.Overwritten > 0 {
		msg += ", " + cli.Yellow(fmt.Sprintf("%d overwritten", r.Copy.Overwritten))
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg+")")
	return nil
}

// confirmAbbreviation asks before materializing a template the user named
// only by prefix.
func confirmAbbreviation(cmd *cobra.Command, input, name string) error {
	if !interactive() {
		return &cli.ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("%q is short for %q; give the full name", input, name),
		}
	}
	ok, err := cli.Confirm(promptIn, cmd.OutOrStdout(), fmt.Sprintf("Copy template %q?", name))
	if err != nil {
		return err
	}
	if !ok {
		return &cli.AbortedError{Operation: "get"}
	}
	return nil
}
