package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tdmcli/tdmcli/internal/cli"
	"github.com/tdmcli/tdmcli/internal/model"
	"github.com/tdmcli/tdmcli/internal/ops"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List templates",
	Long: `List registered templates sorted by name.

Templates whose snapshot directory has gone missing are marked.
Use --long to show the template directory, creation times and paths.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listLong bool

func init() {
	listCmd.Flags().BoolVarP(&listLong, "long", "l", false, "show details in a table")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	res, err := a.engine.Execute(cmd.Context(), ops.ListCmd{})
	if err != nil {
		return err
	}
	r := res.(*ops.ListResult)

	out := cmd.OutOrStdout()
	if listLong {
		fmt.Fprintf(out, "Template directory: %s\n\n", r.TemplateDir)
	}
	if len(r.Templates) == 0 {
		fmt.Fprintln(out, "No templates found.")
		return nil
	}

	if !listLong {
		for _, t := range r.Templates {
			if r.IsOrphan(t.Name) {
				fmt.Fprintf(out, "%s %s\n", t.Name, cli.Red("(missing)"))
				continue
			}
			fmt.Fprintln(out, t.Name)
		}
		return nil
	}

	table := cli.NewTable("NAME", "CREATED", "STATUS", "PATH")
	table.PathColumn(3, cli.DefaultMaxPathWidth)
	for _, t := range r.Templates {
		table.Add(t.Name, formatCreated(t), cli.TemplateStatus(r.IsOrphan(t.Name)), t.StoredPath)
	}
	table.Render(out)
	return nil
}

func formatCreated(t *model.Template) string {
	if t.Created.IsZero() {
		return cli.Gray("-")
	}
	return t.Created.Local().Format("2006-01-02 15:04")
}
