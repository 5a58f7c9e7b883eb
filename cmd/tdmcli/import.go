package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tdmcli/tdmcli/internal/cli"
	"github.com/tdmcli/tdmcli/internal/ops"
)

var importCmd = &cobra.Command{
	Use:   "import <file.tdmcli> [name]",
	Short: "Import a template from a .tdmcli archive",
	Long: `Import a template from a .tdmcli archive.

The template is named after the archive file (without .tdmcli) unless a
name is given. The archive is verified before anything is written.

Running "tdmcli <file.tdmcli>" does the same.`,
	Args: cobra.RangeArgs(1, 2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return []string{"tdmcli"}, cobra.ShellCompDirectiveFilterFileExt
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 1 {
		name = args[1]
	}
	return runImportFile(cmd, args[0], name)
}

// runImportFile imports archive under name (empty: derived from the file name).
func runImportFile(cmd *cobra.Command, archive, name string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	res, err := a.engine.Execute(cmd.Context(), ops.ImportCmd{Archive: archive, Name: name})
	if err != nil {
		return err
	}
	r := res.(*ops.ImportResult)

	fmt.Fprintf(cmd.OutOrStdout(), "Imported template %s (%s, %s)\n",
		r.Template.Name, cli.Plural(r.Manifest.Files, "file"), cli.HumanBytes(r.Manifest.Bytes))
	return nil
}
