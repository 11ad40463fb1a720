package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/biograph/internal/api"
	"github.com/jackzampolin/biograph/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage biograph configuration",
	Long: `Manage the biograph config file.

Examples:
  biograph config init   # Write a default config to ~/.biograph/config.yaml
  biograph config show   # Print the effective configuration
  biograph config path   # Print the config file location`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}

		path := h.ConfigPath()
		if cfgFile != "" {
			path = cfgFile
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return exitf(ExitConfigError, "config already exists at %s (use --force to overwrite)", path)
		}

		if err := config.WriteDefault(path); err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}

		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging the config file over the
defaults. API keys are shown unresolved, so ${ENV_VAR} references never
leak secrets to the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		return api.Output(cm.Get())
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			fmt.Println(cfgFile)
			return nil
		}
		h, err := getHome()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		fmt.Println(h.ConfigPath())
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}
