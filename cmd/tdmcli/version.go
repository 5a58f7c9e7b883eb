package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/tdmcli/tdmcli/internal/cli"
	"github.com/tdmcli/tdmcli/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the tdmcli version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tdmcli version %s (commit %s)\n", version.Version, version.GitCommit)
	},
}

var checkUpdateCmd = &cobra.Command{
	Use:   "check-update",
	Short: "Check whether a newer tdmcli is available",
	Long: `Fetch the latest released version and compare it with this one.

The check uses a short timeout and never fails: when the version feed
cannot be reached the latest version is reported as unknown.`,
	Args: cobra.NoArgs,
	RunE: runCheckUpdate,
}

// updateClient performs the update check, replaceable in tests.
var updateClient = http.DefaultClient

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkUpdateCmd)
}

func runCheckUpdate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	st := version.Check(cmd.Context(), updateClient, a.cfg.UpdateURL, a.cfg.UpdateTimeout)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Latest version available: %s\n", st.Latest)
	fmt.Fprintf(out, "Your current version: %s\n", st.Current)
	switch {
	case st.Latest == version.Unknown:
		fmt.Fprintln(out, cli.Gray("Could not determine the latest version."))
	case st.UpdateAvailable():
		fmt.Fprintln(out, cli.Yellow("A new version is available! Download it from GitHub."))
	default:
		fmt.Fprintln(out, cli.Green("You are using the latest version."))
	}
	return nil
}
