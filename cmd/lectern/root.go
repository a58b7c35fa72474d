package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Viewer core for books scanned across several volumes",
	Long: `Lectern presents a book split across several scanned PDF volumes as one
continuously numbered document.

It provides:
  - Logical page numbering with an adjustable offset (front matter can be negative)
  - A render cache that prefetches around the current view and cancels
    renders the reader has paged away from
  - Table of contents descriptions and favorite pages
  - An HTTP viewer API, bulk PNG export and manifest tooling`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.lectern/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "lectern home directory (default: ~/.lectern)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "debug logging",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, err := api.ParseOutputFormat(outputFormat); err != nil {
			return err
		}
		api.SetOutputFormat(outputFormat)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger returns the text logger used by long-running commands.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadConfig resolves the home directory and loads config. An explicit
// --config wins; otherwise the home directory's config.yaml is used when it
// exists, then viper's search path.
func loadConfig() (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	file := cfgFile
	if file == "" && h.ConfigExists() {
		file = h.ConfigPath()
	}
	mgr, err := config.NewManager(file)
	if err != nil {
		return nil, nil, err
	}
	return h, mgr, nil
}
