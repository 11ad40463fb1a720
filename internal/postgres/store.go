package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jackzampolin/biograph/internal/catalog"
	"github.com/jackzampolin/biograph/internal/retry"
)

// Destination tables. Test mode writes to test_artists so rehearsal runs
// never touch production rows.
const (
	TableArtists     = "artists"
	TableTestArtists = "test_artists"
)

// Update outcomes.
const (
	StatusUpdated = "updated"
	StatusSkipped = "skipped"
)

// Transient statement retry schedule: 3 tries, 1s then 2s between them.
const (
	transientAttempts = 3
	transientBase     = time.Second
)

// Store runs the bio update with classification-aware retries.
type Store struct {
	pool           *pgxpool.Pool
	retrier        *retry.Executor
	acquireTimeout time.Duration
	queryTimeout   time.Duration
	logger         *slog.Logger
}

// StoreConfig configures a Store.
type StoreConfig struct {
	AcquireTimeout time.Duration
	QueryTimeout   time.Duration
	Logger         *slog.Logger
}

// NewStore wraps pool with the update statement and its retry policy.
func NewStore(pool *pgxpool.Pool, cfg StoreConfig) *Store {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	retrier := retry.New(cfg.Logger,
		retry.WithMaxAttempts(transientAttempts),
		retry.WithPolicy(
			func(err error) bool { return Classify(err) == ClassTransient },
			func(n uint, _ error) time.Duration { return transientBase << n },
		),
	)
	return &Store{
		pool:           pool,
		retrier:        retrier,
		acquireTimeout: cfg.AcquireTimeout,
		queryTimeout:   cfg.QueryTimeout,
		logger:         cfg.Logger,
	}
}

// Table returns the destination table for the mode.
func Table(testMode bool) string {
	if testMode {
		return TableTestArtists
	}
	return TableArtists
}

func updateQuery(testMode, skipExisting bool) string {
	query := fmt.Sprintf("UPDATE %s SET bio = $1 WHERE id = $2", Table(testMode))
	if skipExisting {
		query += " AND bio IS NULL"
	}
	return query
}

// UpdateBio writes bio for the artist row. With skipExisting only NULL
// bios are written. Returns StatusUpdated when a row changed and
// StatusSkipped when no row matched. Transient failures are retried;
// systemic ones come back wrapped in SystemicError so the caller can
// abort the run.
func (s *Store) UpdateBio(ctx context.Context, id uuid.UUID, bio string, testMode, skipExisting bool) (string, error) {
	query := updateQuery(testMode, skipExisting)

	var rows int64
	err := s.retrier.Do(ctx, "db", func() error {
		acquireCtx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
		conn, err := s.pool.Acquire(acquireCtx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Release()

		queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
		tag, err := conn.Exec(queryCtx, query, bio, id)
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})
	if err != nil {
		if Classify(err) == ClassSystemic {
			return "", &SystemicError{Err: err}
		}
		return "", fmt.Errorf("update bio for %s: %w", id, err)
	}

	if rows >= 1 {
		return StatusUpdated, nil
	}
	return StatusSkipped, nil
}

// InsertArtists seeds catalog rows, leaving existing bios untouched. Used
// by `db seed` and the integration harness.
func (s *Store) InsertArtists(ctx context.Context, artists []catalog.Artist, testMode bool) (int, error) {
	query := fmt.Sprintf(
		"INSERT INTO %s (id, artist_name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING",
		Table(testMode),
	)

	inserted := 0
	for _, a := range artists {
		queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		tag, err := s.pool.Exec(queryCtx, query, a.ID, a.Name)
		cancel()
		if err != nil {
			return inserted, fmt.Errorf("insert artist %s: %w", a.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
