package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/biograph/internal/api"
	"github.com/jackzampolin/biograph/internal/results"
)

var resultsFile string

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect a result log",
	Long: `Inspect the append-only JSONL result log a run produces.

Examples:
  biograph results summary                 # Outcome counts for the default log
  biograph results ids --file run2.jsonl   # Processed artist IDs, one per line
  biograph results verify                  # Validate every line against the record schema`,
}

var resultsIDsCmd = &cobra.Command{
	Use:   "ids",
	Short: "Print processed artist IDs",
	Long: `Print the artist IDs of successfully processed records, one per
line. The order is stable, so output can be diffed between runs or fed
to other tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resultLogPath()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}

		processed, err := results.ProcessedIDs(path, newLogger())
		if err != nil {
			return &ExitError{Code: ExitInputError, Err: err}
		}

		ids := make([]string, 0, len(processed))
		for id := range processed {
			ids = append(ids, id.String())
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var resultsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarise result log outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resultLogPath()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}

		sum, err := results.Summarize(path, newLogger())
		if err != nil {
			return &ExitError{Code: ExitInputError, Err: err}
		}

		report := struct {
			File      string         `json:"file" yaml:"file"`
			Total     int            `json:"total" yaml:"total"`
			Succeeded int            `json:"succeeded" yaml:"succeeded"`
			Failed    int            `json:"failed" yaml:"failed"`
			Malformed int            `json:"malformed" yaml:"malformed"`
			DBStatus  map[string]int `json:"db_status" yaml:"db_status"`
		}{path, sum.Total, sum.Succeeded, sum.Failed, sum.Malformed, sum.DBStatus}

		return api.Output(report)
	},
}

var resultsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate a result log against the record schema",
	Long: `Validate every line of a result log against the JSON schema for
response records. Invalid lines are reported with their line numbers;
any invalid line makes the command exit non-zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resultLogPath()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}

		verifier, err := results.NewVerifier()
		if err != nil {
			return &ExitError{Code: ExitUnexpected, Err: err}
		}
		report, err := verifier.VerifyFile(path)
		if err != nil {
			return &ExitError{Code: ExitInputError, Err: err}
		}

		if err := api.Output(report); err != nil {
			return err
		}
		if !report.OK() {
			return exitf(ExitInputError, "%d of %d lines invalid", len(report.Invalid), report.Total)
		}
		return nil
	},
}

// resultLogPath resolves --file, falling back to the home default.
func resultLogPath() (string, error) {
	if resultsFile != "" {
		return resultsFile, nil
	}
	h, err := getHome()
	if err != nil {
		return "", err
	}
	return h.DefaultResultLog(), nil
}

func init() {
	resultsCmd.PersistentFlags().StringVar(&resultsFile, "file", "", "result log path (default: ~/.biograph/results/results.jsonl)")

	resultsCmd.AddCommand(resultsIDsCmd)
	resultsCmd.AddCommand(resultsSummaryCmd)
	resultsCmd.AddCommand(resultsVerifyCmd)

	rootCmd.AddCommand(resultsCmd)
}
