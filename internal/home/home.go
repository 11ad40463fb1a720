package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the biograph home directory.
	DefaultDirName = ".biograph"

	// ResultsDirName is the subdirectory for result logs.
	ResultsDirName = "results"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// QuotaStateFileName is the persisted quota monitor state.
	QuotaStateFileName = "quota_state.json"
)

// Dir represents the biograph home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.biograph).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ResultsPath returns the path to the results directory.
func (d *Dir) ResultsPath() string {
	return filepath.Join(d.path, ResultsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// QuotaStatePath returns the path to the quota state file.
func (d *Dir) QuotaStatePath() string {
	return filepath.Join(d.path, QuotaStateFileName)
}

// DefaultResultLog returns the default result log path for a run.
func (d *Dir) DefaultResultLog() string {
	return filepath.Join(d.ResultsPath(), "results.jsonl")
}

// PostgresDataPath returns the host directory mounted into the local
// Postgres container for data persistence.
func (d *Dir) PostgresDataPath() string {
	return filepath.Join(d.path, "postgres")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create results directory (this also creates the parent)
	if err := os.MkdirAll(d.ResultsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
