package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/biograph/internal/catalog"
	"github.com/jackzampolin/biograph/internal/config"
	"github.com/jackzampolin/biograph/internal/home"
	"github.com/jackzampolin/biograph/internal/postgres"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the local Postgres container",
	Long: `Manage the local Postgres container used for development runs.

The database runs in a Docker container with data persisted to
~/.biograph/postgres/. Production runs point the database config
section at an existing server instead.

Examples:
  biograph db start   # Start the Postgres container
  biograph db init    # Create the artists and test_artists tables
  biograph db seed --input artists.csv --test-mode
  biograph db stop    # Stop the container (data preserved)`,
}

var dbStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Postgres container",
	Long: `Start the Postgres container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.

Data is persisted to ~/.biograph/postgres/.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := dbManager()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		defer mgr.Close()

		fmt.Println("Starting Postgres...")
		if err := mgr.Start(ctx); err != nil {
			return exitf(ExitConfigError, "failed to start Postgres: %v", err)
		}

		fmt.Printf("Postgres is running at %s\n", mgr.ConnString())
		return nil
	},
}

var dbStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Postgres container",
	Long: `Stop the Postgres container.

This stops the container but preserves data. Use 'biograph db start'
to restart it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := dbManager()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		defer mgr.Close()

		fmt.Println("Stopping Postgres...")
		if err := mgr.Stop(ctx); err != nil {
			return exitf(ExitConfigError, "failed to stop Postgres: %v", err)
		}

		fmt.Println("Postgres stopped")
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Postgres container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := dbManager()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return exitf(ExitConfigError, "failed to get status: %v", err)
		}

		switch status {
		case postgres.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.ConnString())
		case postgres.StatusStopped:
			fmt.Printf("Status: %s (use 'biograph db start' to start)\n", status)
		case postgres.StatusNotFound:
			fmt.Printf("Status: %s (use 'biograph db start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var dbLogsTail string

var dbLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show Postgres container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := dbManager()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		defer mgr.Close()

		logs, err := mgr.Logs(ctx, dbLogsTail)
		if err != nil {
			return exitf(ExitConfigError, "failed to get logs: %v", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var dbRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the Postgres container",
	Long: `Remove the Postgres container.

This stops and removes the container. Data in ~/.biograph/postgres/
is NOT deleted - only the container is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := dbManager()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		defer mgr.Close()

		fmt.Println("Removing Postgres container...")
		if err := mgr.Remove(ctx); err != nil {
			return exitf(ExitConfigError, "failed to remove container: %v", err)
		}

		fmt.Println("Postgres container removed (data preserved)")
		return nil
	},
}

var dbWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for Postgres to be ready",
	Long: `Wait for Postgres to accept connections.

This is useful in scripts to ensure the database is fully started
before running other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := dbManager()
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		defer mgr.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		fmt.Printf("Waiting for Postgres (timeout: %s)...\n", timeout)

		if err := mgr.WaitReady(ctx, timeout); err != nil {
			return exitf(ExitConfigError, "Postgres not ready: %v", err)
		}

		fmt.Println("Postgres is ready")
		return nil
	},
}

var dbURL string

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the artists and test_artists tables",
	Long: `Apply the schema to the configured database: the artists and
test_artists tables, created only if missing. Existing data is never
touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := dbConnect(cmd)
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		defer pool.Close()

		if err := postgres.Init(ctx, pool); err != nil {
			return exitf(ExitConfigError, "failed to apply schema: %v", err)
		}

		fmt.Println("Schema applied")
		return nil
	},
}

var (
	dbSeedInput    string
	dbSeedTestMode bool
)

var dbSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert catalog artists into the database",
	Long: `Insert the artists from a CSV catalog, leaving bios empty for a
later run to fill. Rows whose IDs already exist are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		if dbSeedInput == "" {
			return exitf(ExitInputError, "an input catalog is required (--input)")
		}
		artists, stats, err := catalog.Load(dbSeedInput, logger)
		if err != nil {
			return &ExitError{Code: ExitInputError, Err: err}
		}

		pool, err := dbConnect(cmd)
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		defer pool.Close()

		store := postgres.NewStore(pool, postgres.StoreConfig{Logger: logger})
		inserted, err := store.InsertArtists(ctx, artists, dbSeedTestMode)
		if err != nil {
			return exitf(ExitConfigError, "failed to seed artists: %v", err)
		}

		fmt.Printf("Seeded %d artists (%d rows read, %d invalid, %d already present)\n",
			inserted, stats.Rows, stats.Invalid, len(artists)-inserted)
		return nil
	},
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// dbManager creates a DockerManager for the local container.
func dbManager() (*postgres.DockerManager, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}

	dataPath := h.PostgresDataPath()
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return postgres.NewDockerManager(postgres.DockerConfig{
		DataPath: dataPath,
	})
}

// dbConnect opens a pool against --url or the configured database.
func dbConnect(cmd *cobra.Command) (*pgxpool.Pool, error) {
	ctx := cmd.Context()
	logger := newLogger()

	if dbURL != "" {
		return postgres.NewPool(ctx, postgres.Config{URL: dbURL, Logger: logger})
	}

	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := cm.Get()
	return postgres.NewPool(ctx, cfg.PoolConfig(cfg.Batch.Workers, logger))
}

func init() {
	dbCmd.AddCommand(dbStartCmd)
	dbCmd.AddCommand(dbStopCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbLogsCmd)
	dbCmd.AddCommand(dbRemoveCmd)
	dbCmd.AddCommand(dbWaitCmd)
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbSeedCmd)

	dbLogsCmd.Flags().StringVar(&dbLogsTail, "tail", "100", "Number of lines to show from the end")
	dbWaitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for Postgres")

	dbInitCmd.Flags().StringVar(&dbURL, "url", "", "connection URL (default: the configured database)")
	dbSeedCmd.Flags().StringVar(&dbURL, "url", "", "connection URL (default: the configured database)")
	dbSeedCmd.Flags().StringVar(&dbSeedInput, "input", "", "artist catalog CSV (required)")
	dbSeedCmd.Flags().BoolVar(&dbSeedTestMode, "test-mode", false, "seed the test_artists table")

	rootCmd.AddCommand(dbCmd)
}
