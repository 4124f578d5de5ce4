package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"recsys/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has no array type. List columns are stored as JSON text and
//     decoded with storage.DecodeList.
//   - Constraints cannot be added with ALTER TABLE, so referential integrity
//     after bulk load is limited to orphan cleanup.
//   - The pool is pinned to one connection; ":memory:" databases are
//     per-connection and SQLite serializes writers anyway.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) Dialect() storage.Dialect { return Dialect{} }

func (r *Repo) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Query materializes every row. TEXT comes back as string, INTEGER as
// int64; booleans are stored as 0/1 integers.
func (r *Repo) Query(ctx context.Context, query string, args ...any) ([][]any, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		dests := make([]any, len(cols))
		for i := range vals {
			dests[i] = &vals[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Dialect renders SQLite SQL.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

// Placeholder keeps SQLite's native '?'.
func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) Ident(name string) string { return sqlIdent(name) }

func (Dialect) ColumnType(c storage.ColumnSpec) string {
	switch c.Type {
	case storage.TypeBool:
		return "BOOLEAN"
	case storage.TypeInt:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (Dialect) WrapCreateTable(table string, defs []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
}

func (Dialect) Limit(n int) string { return fmt.Sprintf(" LIMIT %d", n) }

func (Dialect) AddForeignKeySQL(storage.ForeignKeySpec) string  { return "" }
func (Dialect) DropForeignKeySQL(storage.ForeignKeySpec) string { return "" }

func (Dialect) EncodeList(ids []string) (any, error) { return storage.EncodeJSONList(ids) }

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

var _ storage.Dialect = Dialect{}
