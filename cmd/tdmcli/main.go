// Package main is the entry point for the tdmcli CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tdmcli/tdmcli/internal/cli"
	"github.com/tdmcli/tdmcli/internal/fsutil"
	"github.com/tdmcli/tdmcli/internal/log"
	"github.com/tdmcli/tdmcli/internal/model"
	"github.com/tdmcli/tdmcli/internal/ops"
	"github.com/tdmcli/tdmcli/internal/storage"
	"github.com/tdmcli/tdmcli/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tdmcli [archive.tdmcli]",
	Short: "tdmcli - reusable directory templates",
	Long: `tdmcli captures a directory as a named template, materializes it
elsewhere, and shares it as a portable .tdmcli archive.

Templates are stored as plain directory copies in the template directory
and tracked in a registry in your user configuration directory.

Passing a .tdmcli file as the only argument imports it.`,
	Version:           version.Version,
	Args:              cobra.MaximumNArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initLogging,
	RunE:              runRoot,
}

var (
	flagDebug   bool
	flagConfig  string
	flagNoColor bool
)

func init() {
	// Disable the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default <config dir>/tdmcli/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")

	// Set version template
	rootCmd.SetVersionTemplate("tdmcli version {{.Version}}\n")
}

func initLogging(cmd *cobra.Command, args []string) error {
	level := log.LevelWarn
	if flagDebug {
		level = log.LevelDebug
	}
	log.Init(cmd.ErrOrStderr(), level)
	if flagNoColor || os.Getenv("NO_COLOR") != "" {
		cli.SetColorEnabled(false)
	}
	return nil
}

// app bundles what a command needs: configuration, the registry store and
// the engine operating on it.
type app struct {
	cfg    *storage.Config
	store  *storage.Storage
	engine *ops.Engine
}

// openApp loads the configuration and opens the registry store.
// cmd's parsed flags are bound into the configuration.
func openApp(cmd *cobra.Command) (*app, error) {
	root, err := storage.DefaultRoot()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	if f := cmd.Flags().Lookup("debug"); f != nil {
		if err := v.BindPFlag("debug", f); err != nil {
			return nil, err
		}
	}
	cfg, err := storage.LoadConfig(v, root, flagConfig)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		log.SetMinLevel(log.LevelDebug)
	}

	s, err := storage.Open(root, cfg.TemplateDir)
	if err != nil {
		return nil, err
	}
	log.Debug(log.CatConfig, "opened store", "root", s.Root(), "workers", cfg.Workers)

	return &app{
		cfg:    cfg,
		store:  s,
		engine: ops.NewEngine(s, ops.Options{Workers: cfg.Workers}),
	}, nil
}

// resolveName maps user input to a registered template name: an exact
// case-insensitive match, or else a unique prefix.
func (a *app) resolveName(input string) (string, error) {
	reg, err := a.engine.Load()
	if err != nil {
		return "", err
	}
	if t := reg.Lookup(input); t != nil {
		return t.Name, nil
	}
	return cli.MatchName(input, reg.Names())
}

// runRoot shows help, or imports a .tdmcli file given as the only argument.
func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	path := args[0]
	if !strings.HasSuffix(strings.ToLower(path), model.ArchiveExt) {
		if isDir, _ := fsutil.IsDir(path); isDir || !fsutil.Exists(path) {
			return fmt.Errorf("unknown command %q for %q", path, cmd.CommandPath())
		}
	}
	return runImportFile(cmd, path, "")
}
