package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tdmcli/tdmcli/internal/cli"
	"github.com/tdmcli/tdmcli/internal/ops"
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Save the current directory as a template",
	Long: `Save a snapshot of the current directory as a new template.

Hidden files are copied, but hidden directories (.git, .cache, ...) are
left out unless --hidden is given. Paths matching the patterns in a
.tdmignore file at the root are left out too; the .tdmignore file itself is
kept unless --exclude-ignore is given. If the template directory lives
inside the current directory it is never part of the snapshot.

Names are case-insensitive and must be valid file names on every platform.

Examples:
  tdmcli create go-cli
  tdmcli create web --from ~/projects/site
  tdmcli create dotfiles --hidden`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

var (
	createFrom          string
	createHidden        bool
	createExcludeIgnore bool
)

func init() {
	createCmd.Flags().StringVarP(&createFrom, "from", "C", "", "directory to snapshot (default: current directory)")
	createCmd.MarkFlagDirname("from")
	createCmd.Flags().BoolVar(&createHidden, "hidden", false, "include hidden directories")
	createCmd.Flags().BoolVar(&createExcludeIgnore, "exclude-ignore", false, "leave the .tdmignore file out of the snapshot")

	// Spellings accepted by earlier releases.
	createCmd.Flags().BoolVar(&createHidden, "hiddenfolder", false, "include hidden directories")
	createCmd.Flags().BoolVar(&createExcludeIgnore, "excludeignore", false, "leave the .tdmignore file out of the snapshot")
	createCmd.Flags().MarkHidden("hiddenfolder")
	createCmd.Flags().MarkHidden("excludeignore")

	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	src := createFrom
	if src == "" {
		if src, err = os.Getwd(); err != nil {
			return err
		}
	}

	res, err := a.engine.Execute(cmd.Context(), ops.CreateCmd{
		Name:   args[0],
		Source: src,
		Options: ops.CreateOptions{
			Hidden:        createHidden,
			ExcludeIgnore: createExcludeIgnore,
		},
	})
	if err != nil {
		return err
	}
	r := res.(*ops.CreateResult)

	msg := fmt.Sprintf("Created template %s (%s, %s", r.Template.Name, cli.Plural(r.Copy.Files, "file"), cli.HumanBytes(r.Copy.Bytes))
	if r.Copy.Skipped > 0 {
		msg += ", " + cli.Gray(fmt.Sprintf("%d skipped", r.Copy.Skipped))
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg+")")
	return nil
}
