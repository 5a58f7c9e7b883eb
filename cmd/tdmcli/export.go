package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tdmcli/tdmcli/internal/cli"
	"github.com/tdmcli/tdmcli/internal/ops"
)

var exportCmd = &cobra.Command{
	Use:   "export <name> [dir]",
	Short: "Export a template to a .tdmcli archive",
	Long: `Write a template to <dir>/<name>.tdmcli (default dir: current directory).

The directory is created if needed. An existing archive with the same name
is replaced. The name may be abbreviated to any unique prefix.`,
	Args: cobra.RangeArgs(1, 2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return completeTemplateNames(cmd, args, toComplete)
		}
		return nil, cobra.ShellCompDirectiveFilterDirs
	},
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	name, err := a.resolveName(args[0])
	if err != nil {
		return err
	}

	outDir := ""
	if len(args) > 1 {
		outDir = args[1]
	} else if outDir, err = os.Getwd(); err != nil {
		return err
	}

	res, err := a.engine.Execute(cmd.Context(), ops.ExportCmd{Name: name, OutDir: outDir})
	if err != nil {
		return err
	}
	r := res.(*ops.ExportResult)

	info, err := os.Stat(r.Archive)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s (%s, %s)\n",
		r.Name, r.Archive, cli.Plural(r.Manifest.Files, "file"), cli.HumanBytes(info.Size()))
	return nil
}
