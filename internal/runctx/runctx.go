// Package runctx owns the lifecycle of one batch run: resources are
// acquired front to back, torn down in reverse, and the run's phase is
// tracked through a small state machine.
package runctx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jackzampolin/biograph/internal/events"
	"github.com/jackzampolin/biograph/internal/metrics"
	"github.com/jackzampolin/biograph/internal/pause"
	"github.com/jackzampolin/biograph/internal/postgres"
	"github.com/jackzampolin/biograph/internal/quota"
	"github.com/jackzampolin/biograph/internal/results"
)

// Config describes the resources a run needs.
type Config struct {
	// OutputPath is the result log location. Resume preserves existing
	// records; otherwise the file is truncated.
	OutputPath string
	Resume     bool

	// QuotaEnabled turns on the monitor and pause controller. StatePath,
	// when set, persists quota state across runs.
	QuotaEnabled bool
	DailyLimit   int64
	Threshold    float64
	StatePath    string

	// Database configures a pool; nil leaves the run without one. Pool
	// takes precedence when supplied externally and is not closed here.
	Database *postgres.Config
	Pool     *pgxpool.Pool

	Emitter *events.Emitter
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Resources is everything a run holds open.
type Resources struct {
	Log   *results.Log
	Quota *quota.Monitor
	Pause *pause.Controller
	Pool  *pgxpool.Pool
	Store *postgres.Store
	State *State

	closers []func() error
	logger  *slog.Logger
}

// Acquire opens the run's resources in order: result log, quota monitor
// and pause controller, database pool. On any failure everything already
// opened is torn down before returning.
func Acquire(ctx context.Context, cfg Config) (*Resources, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	state := NewState(logger)
	state.To(PhaseAcquiring)
	r := &Resources{State: state, logger: logger}

	log, err := results.Open(cfg.OutputPath, cfg.Resume, logger)
	if err != nil {
		state.To(PhaseAborted)
		return nil, fmt.Errorf("open result log: %w", err)
	}
	r.Log = log
	r.closers = append(r.closers, log.Close)

	if cfg.QuotaEnabled {
		monitor := quota.NewMonitor(quota.Config{
			DailyLimit:     cfg.DailyLimit,
			PauseThreshold: cfg.Threshold,
			Logger:         logger,
		})
		if cfg.StatePath != "" {
			if loaded, err := monitor.LoadState(cfg.StatePath); err != nil {
				logger.Warn("quota state not restored", "path", cfg.StatePath, "error", err)
			} else if loaded {
				logger.Info("quota state restored", "path", cfg.StatePath)
			}
			path := cfg.StatePath
			r.closers = append(r.closers, func() error {
				return monitor.PersistState(path)
			})
		}
		r.Quota = monitor

		emitter := cfg.Emitter
		mets := cfg.Metrics
		r.Pause = pause.NewController(pause.Config{
			Logger: logger,
			OnPause: func(reason string, resumeAt time.Time) {
				state.To(PhasePaused)
				mets.SetPaused(true)
				if emitter != nil {
					emitter.QuotaPause(reason, resumeAt)
				}
			},
			OnResume: func(reason string) {
				state.To(PhaseRunning)
				mets.SetPaused(false)
				if emitter != nil {
					emitter.QuotaResume(reason)
				}
			},
		})
	}

	switch {
	case cfg.Pool != nil:
		r.Pool = cfg.Pool
	case cfg.Database != nil:
		pool, err := postgres.NewPool(ctx, *cfg.Database)
		if err != nil {
			r.Close()
			state.To(PhaseAborted)
			return nil, fmt.Errorf("connect database: %w", err)
		}
		r.Pool = pool
		r.closers = append(r.closers, func() error {
			pool.Close()
			return nil
		})
	}
	if r.Pool != nil {
		storeCfg := postgres.StoreConfig{Logger: logger}
		if cfg.Database != nil {
			storeCfg.AcquireTimeout = cfg.Database.AcquireTimeout
			storeCfg.QueryTimeout = cfg.Database.QueryTimeout
		}
		r.Store = postgres.NewStore(r.Pool, storeCfg)
	}

	state.To(PhaseRunning)
	return r, nil
}

// Close tears the resources down in reverse acquisition order. Teardown
// errors are logged, never propagated.
func (r *Resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("teardown error", "error", err)
		}
	}
	r.closers = nil
}
