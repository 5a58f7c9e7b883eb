package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showDirCmd = &cobra.Command{
	Use:   "show-dir",
	Short: "Show where templates are stored",
	Long: `Print the template directory that holds every snapshot.

Use change-dir to move the snapshots somewhere else.`,
	Args: cobra.NoArgs,
	RunE: runShowDir,
}

func init() {
	rootCmd.AddCommand(showDirCmd)
}

func runShowDir(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	reg, err := a.engine.Load()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Templates directory: %s\n", reg.TemplateDirectory)
	return nil
}
