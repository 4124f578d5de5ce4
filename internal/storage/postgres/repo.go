package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"recsys/internal/storage"
)

/*
Repo implements storage.Repository for Postgres.

It provides:
  - parameterized Exec/Query over a pgx connection pool
  - native VARCHAR(n)[] list columns
  - ALTER TABLE constraint management for post-load foreign keys
*/
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new Postgres-backed Repo and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

func (r *Repo) Dialect() storage.Dialect { return Dialect{} }

// Exec runs a statement after rebinding '?' to $n.
func (r *Repo) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	cmd, err := r.pool.Exec(ctx, storage.Rebind(Dialect{}, query), args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// Query runs a statement and materializes every row.
//
// rows.Values() decodes each column to its natural Go type: text to string,
// integer to int32/int64, boolean to bool and arrays to []any.
func (r *Repo) Query(ctx context.Context, query string, args ...any) ([][]any, error) {
	rows, err := r.pool.Query(ctx, storage.Rebind(Dialect{}, query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
