package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/biograph/internal/api"
	"github.com/jackzampolin/biograph/internal/config"
	"github.com/jackzampolin/biograph/internal/quota"
)

var quotaStatePathFlag string

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect the persisted quota state",
	Long: `Inspect or reset the quota state a run persists on shutdown.

The state file carries the daily request counter and the last rate-limit
snapshot, so consecutive runs on the same day share one budget.`,
}

var quotaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show quota usage from the state file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := quotaStatePath()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		cfg := cm.Get()

		monitor := quota.NewMonitor(quota.Config{
			DailyLimit:     cfg.Quota.DailyLimit,
			PauseThreshold: cfg.Quota.Threshold,
			Logger:         newLogger(),
		})
		loaded, err := monitor.LoadState(path)
		if err != nil {
			return &ExitError{Code: ExitInputError, Err: err}
		}

		report := struct {
			File    string          `json:"file" yaml:"file"`
			Tracked bool            `json:"tracked" yaml:"tracked"`
			Metrics quota.Metrics   `json:"metrics" yaml:"metrics"`
			Status  *quota.Snapshot `json:"status,omitempty" yaml:"status,omitempty"`
		}{File: path, Tracked: loaded}

		report.Metrics = monitor.Metrics()
		if snap, ok := monitor.Snapshot(); ok {
			report.Status = &snap
		}

		return api.Output(report)
	},
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the persisted quota state",
	Long: `Delete the quota state file. The next run starts with a fresh
daily counter, so only do this when the provider-side window has
actually rolled over.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := quotaStatePath()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}

		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No quota state to reset")
				return nil
			}
			return &ExitError{Code: ExitUnexpected, Err: err}
		}

		fmt.Printf("Quota state removed: %s\n", path)
		return nil
	},
}

// quotaStatePath resolves --state-file, then the config file, then the
// home default.
func quotaStatePath() (string, error) {
	if quotaStatePathFlag != "" {
		return quotaStatePathFlag, nil
	}
	cm, err := config.NewManager(cfgFile)
	if err == nil {
		if p := cm.Get().Quota.StatePath; p != "" {
			return p, nil
		}
	}
	h, err := getHome()
	if err != nil {
		return "", err
	}
	return h.QuotaStatePath(), nil
}

func init() {
	quotaCmd.PersistentFlags().StringVar(&quotaStatePathFlag, "state-file", "", "quota state path (default: ~/.biograph/quota_state.json)")

	quotaCmd.AddCommand(quotaStatusCmd)
	quotaCmd.AddCommand(quotaResetCmd)

	rootCmd.AddCommand(quotaCmd)
}
