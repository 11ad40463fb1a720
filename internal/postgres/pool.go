package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Defaults for the connection pool and per-operation deadlines.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 5432
	DefaultUser     = "biograph"
	DefaultDatabase = "biograph"
	DefaultSSLMode  = "disable"

	DefaultAcquireTimeout = 30 * time.Second
	DefaultQueryTimeout   = 60 * time.Second

	// DefaultOverflow pads the pool beyond one connection per worker so a
	// status query never waits behind the workers.
	DefaultOverflow = 2
)

// Config describes the destination database connection.
type Config struct {
	// URL takes precedence over the discrete fields when set.
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Workers sizes the pool: MaxConns = Workers + Overflow.
	Workers  int
	Overflow int

	AcquireTimeout time.Duration
	QueryTimeout   time.Duration

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.SSLMode == "" {
		c.SSLMode = DefaultSSLMode
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Overflow <= 0 {
		c.Overflow = DefaultOverflow
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// ConnString renders the connection URL.
func (c Config) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	c = c.withDefaults()
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// NewPool connects a pgx pool sized for the worker count and verifies the
// connection with a ping.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	cfg = cfg.withDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Workers + cfg.Overflow)
	poolCfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Debug("database pool ready",
		"host", cfg.Host,
		"database", cfg.Database,
		"max_conns", poolCfg.MaxConns,
	)
	return pool, nil
}
