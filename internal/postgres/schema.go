package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Both tables share one shape; bio stays NULL until a run fills it.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS artists (
		id UUID PRIMARY KEY,
		artist_name TEXT,
		bio TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS test_artists (
		id UUID PRIMARY KEY,
		artist_name TEXT,
		bio TEXT
	)`,
}

// Init creates the destination tables if they do not exist.
func Init(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
