package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/home"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage lectern configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml to the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", h.ConfigPath())
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", h.ConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after applying the config file and
LECTERN_* environment overrides (e.g. LECTERN_CACHE_CAPACITY=80).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, mgr, err := loadConfig()
		if err != nil {
			return err
		}
		return api.Output(mgr.Get())
	},
}

var configDefaultsCmd = &cobra.Command{
	Use:   "defaults [key]",
	Short: "List configuration keys with their defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			e, err := config.LookupDefault(args[0])
			if err != nil {
				return err
			}
			return api.Output(e)
		}
		return api.Output(config.DefaultEntries())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configDefaultsCmd)
	rootCmd.AddCommand(configCmd)
}
