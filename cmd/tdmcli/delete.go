package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tdmcli/tdmcli/internal/cli"
	"github.com/tdmcli/tdmcli/internal/ops"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a template",
	Long: `Delete a template and its stored snapshot.

The full name is required (case-insensitive); prefixes are not accepted.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTemplateNames,
	RunE:              runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	res, err := a.engine.Execute(cmd.Context(), ops.DeleteCmd{Name: args[0]})
	if err != nil {
		return err
	}
	r := res.(*ops.DeleteResult)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Deleted template %s\n", r.Name)
	switch {
	case r.Orphan:
		fmt.Fprintln(out, cli.Yellow("warning: its snapshot was already missing"))
	case r.Kept:
		fmt.Fprintln(out, cli.Yellow("warning: its snapshot is outside the template directory and was kept"))
	}
	return nil
}
