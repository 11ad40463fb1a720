package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/biograph/internal/batch"
	"github.com/jackzampolin/biograph/internal/catalog"
	"github.com/jackzampolin/biograph/internal/config"
	"github.com/jackzampolin/biograph/internal/events"
	"github.com/jackzampolin/biograph/internal/metrics"
	"github.com/jackzampolin/biograph/internal/pipeline"
	"github.com/jackzampolin/biograph/internal/postgres"
	"github.com/jackzampolin/biograph/internal/prompts"
	"github.com/jackzampolin/biograph/internal/providers"
	"github.com/jackzampolin/biograph/internal/results"
	"github.com/jackzampolin/biograph/internal/retry"
	"github.com/jackzampolin/biograph/internal/runctx"
)

var (
	runInput         string
	runWorkers       int
	runResume        bool
	runOutputFile    string
	runTestMode      bool
	runSkipExisting  bool
	runNoDB          bool
	runPromptID      string
	runPromptVersion string
	runDailyLimit    int64
	runMetricsAddr   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate bios for an artist catalog",
	Long: `Run bio generation for every artist in a CSV catalog.

Workers submit artists to the remote prompt concurrently; each response
flows through parsing, quota accounting, the database update, and the
result log. Ctrl+C stops submission and drains inflight requests.

The event stream (TRANSACTION, QUOTA_*, RATE_LIMIT_* lines) goes to
stdout; logs go to stderr.

Examples:
  biograph run --input artists.csv
  biograph run --input artists.csv --workers 8 --test-mode
  biograph run --input artists.csv --resume --skip-existing
  biograph run --input artists.csv --no-db --output-file /tmp/bios.jsonl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		cfg := cm.Get()

		// Flags override the config file.
		if cmd.Flags().Changed("workers") {
			cfg.Batch.Workers = runWorkers
		}
		if cmd.Flags().Changed("prompt-id") {
			cfg.Provider.PromptID = runPromptID
		}
		if cmd.Flags().Changed("prompt-version") {
			cfg.Provider.PromptVersion = runPromptVersion
		}
		if cmd.Flags().Changed("daily-limit") {
			cfg.Quota.DailyLimit = runDailyLimit
		}
		if cmd.Flags().Changed("output-file") {
			cfg.Batch.Output = runOutputFile
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Batch.MetricsAddr = runMetricsAddr
		}

		if err := cfg.Validate(); err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		if err := cfg.Provider.Validate(); err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		if runInput == "" {
			return exitf(ExitInputError, "an input catalog is required (--input)")
		}

		h, err := getHome()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		outputPath := cfg.Batch.Output
		if outputPath == "" {
			outputPath = h.DefaultResultLog()
		}
		statePath := cfg.Quota.StatePath
		if statePath == "" {
			statePath = h.QuotaStatePath()
		}

		artists, stats, err := catalog.Load(runInput, logger)
		if err != nil {
			return &ExitError{Code: ExitInputError, Err: err}
		}
		logger.Info("catalog loaded",
			"path", runInput,
			"loaded", stats.Loaded,
			"invalid", stats.Invalid,
		)

		// The processed set must be read before the log is reopened.
		if runResume {
			processed, err := results.ProcessedIDs(outputPath, logger)
			if err != nil {
				return &ExitError{Code: ExitInputError, Err: err}
			}
			remaining := catalog.FilterProcessed(artists, processed)
			logger.Info("resume filter applied",
				"already_processed", len(artists)-len(remaining),
				"remaining", len(remaining),
			)
			artists = remaining
		}
		if len(artists) == 0 {
			logger.Info("nothing to do")
			return nil
		}

		provider, err := providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:  cfg.Provider.ResolvedAPIKey(),
			Timeout: cfg.Provider.Timeout(),
		})
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}

		emitter := events.NewEmitter(events.Config{Logger: logger})
		mets := metrics.New()

		var dbCfg *postgres.Config
		if !runNoDB {
			pc := cfg.PoolConfig(cfg.Batch.Workers, logger)
			dbCfg = &pc
		}

		res, err := runctx.Acquire(ctx, runctx.Config{
			OutputPath:   outputPath,
			Resume:       runResume,
			QuotaEnabled: cfg.Quota.Enabled,
			DailyLimit:   cfg.Quota.DailyLimit,
			Threshold:    cfg.Quota.Threshold,
			StatePath:    statePath,
			Database:     dbCfg,
			Emitter:      emitter,
			Metrics:      mets,
			Logger:       logger,
		})
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		defer res.Close()

		if cfg.Batch.MetricsAddr != "" {
			metricsCtx, stopMetrics := context.WithCancel(ctx)
			defer stopMetrics()
			go func() {
				if err := mets.Serve(metricsCtx, cfg.Batch.MetricsAddr, logger); err != nil {
					logger.Warn("metrics listener failed", "error", err)
				}
			}()
		}

		// Config edits during a run adjust the pause threshold in place.
		if res.Quota != nil {
			cm.OnChange(func(c *config.Config) {
				res.Quota.SetPauseThreshold(c.Quota.Threshold)
				logger.Info("configuration reloaded", "quota_threshold", c.Quota.Threshold)
			})
			cm.WatchConfig()
		}

		pipe := pipeline.New(pipeline.Config{
			Quota:        res.Quota,
			Emitter:      emitter,
			Metrics:      mets,
			Store:        res.Store,
			Log:          res.Log,
			TestMode:     runTestMode,
			SkipExisting: runSkipExisting,
			Logger:       logger,
		})

		runner := batch.New(batch.Config{
			Provider: provider,
			Pipeline: pipe,
			Retrier:  retry.New(logger),
			Quota:    res.Quota,
			Pause:    res.Pause,
			Emitter:  emitter,
			Metrics:  mets,
			Prompt: prompts.Bio{
				ID:      cfg.Provider.PromptID,
				Version: cfg.Provider.PromptVersion,
			},
			Workers: cfg.Batch.Workers,
			Timeout: cfg.Provider.Timeout(),
			Logger:  logger,
		})

		successful, failed, runErr := runner.Run(ctx, artists)
		logger.Info("run finished",
			"total", len(artists),
			"successful", successful,
			"failed", failed,
		)

		switch {
		case postgres.IsSystemic(runErr):
			res.State.To(runctx.PhaseAborted)
			res.Close()
			return &ExitError{Code: ExitConfigError, Err: fmt.Errorf("run aborted: %w", runErr)}
		case errors.Is(runErr, context.Canceled):
			res.State.To(runctx.PhaseDraining)
			res.Close()
			res.State.To(runctx.PhaseDone)
			return exitf(ExitInterrupted, "interrupted; %d processed before stop", successful+failed)
		case runErr != nil:
			res.State.To(runctx.PhaseAborted)
			res.Close()
			return &ExitError{Code: ExitUnexpected, Err: runErr}
		}

		res.State.To(runctx.PhaseDraining)
		res.Close()
		res.State.To(runctx.PhaseDone)

		if failed > 0 {
			return exitf(ExitItemsFailed, "%d of %d items failed", failed, len(artists))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "artist catalog CSV (required)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", batch.DefaultWorkers, "concurrent workers")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "skip artists already in the result log")
	runCmd.Flags().StringVar(&runOutputFile, "output-file", "", "result log path (default: ~/.biograph/results/results.jsonl)")
	runCmd.Flags().BoolVar(&runTestMode, "test-mode", false, "write bios to the test_artists table")
	runCmd.Flags().BoolVar(&runSkipExisting, "skip-existing", false, "leave rows that already have a bio untouched")
	runCmd.Flags().BoolVar(&runNoDB, "no-db", false, "skip database writes entirely")
	runCmd.Flags().StringVar(&runPromptID, "prompt-id", "", "server-side prompt ID")
	runCmd.Flags().StringVar(&runPromptVersion, "prompt-version", "", "pinned prompt version")
	runCmd.Flags().Int64Var(&runDailyLimit, "daily-limit", 0, "daily request budget (0 uses header windows only)")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Prometheus listen address (e.g. :9090)")

	rootCmd.AddCommand(runCmd)
}
