package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/biograph/internal/api"
	"github.com/jackzampolin/biograph/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "biograph",
	Short: "Batch artist-bio generation against the OpenAI Responses API",
	Long: `Biograph drives an artist catalog through a server-side bio prompt
and lands the generated bios in Postgres.

A run reads artists from CSV, submits them through a bounded worker
pool, records every outcome in an append-only JSONL result log, and
pauses itself when API quota runs low. Interrupt a run with Ctrl+C:
submission stops, inflight requests drain, and --resume picks up
where the log left off.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.biograph/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "biograph home directory (default: ~/.biograph)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the command logger. Logs go to stderr; stdout stays
// reserved for the event stream and command output.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
