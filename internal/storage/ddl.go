package storage

import (
	"context"
	"fmt"
	"strings"
)

// maxParamsPerStatement keeps batched INSERTs under SQL Server's 2100
// parameter ceiling; the other backends allow more.
const maxParamsPerStatement = 2000

// RowsPerStatement is the largest multi-row INSERT InsertRows sends for a
// table with ncols columns.
func RowsPerStatement(ncols int) int {
	if ncols < 1 {
		return 1
	}
	if per := maxParamsPerStatement / ncols; per > 1 {
		return per
	}
	return 1
}

// EnsureTables creates every table in tables that does not exist yet.
//
// This method is idempotent and safe to run on every migration.
func EnsureTables(ctx context.Context, r Repository, tables []TableSpec) error {
	d := r.Dialect()
	for _, t := range tables {
		q, err := CreateTableSQL(d, t)
		if err != nil {
			return err
		}
		if _, err := r.Exec(ctx, q); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// DropForeignKeys removes the constraints in fks, ignoring ones that do not
// exist. Backends without ALTER ... CONSTRAINT support skip silently.
func DropForeignKeys(ctx context.Context, r Repository, fks []ForeignKeySpec) error {
	d := r.Dialect()
	for _, fk := range fks {
		q := d.DropForeignKeySQL(fk)
		if q == "" {
			continue
		}
		if _, err := r.Exec(ctx, q); err != nil {
			return fmt.Errorf("drop constraint %s: %w", fk.Name, err)
		}
	}
	return nil
}

// BulkInsertSQL renders a multi-row INSERT with '?' placeholders and
// flattens rows into its argument list.
//
// Constraints:
//   - columns must be non-empty.
//   - every row must have len(columns) values.
func BulkInsertSQL(d Dialect, table string, columns []string, rows [][]any) (string, []any, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("insert %s: no columns", table)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Ident(c))
	}
	b.WriteString(") VALUES ")

	tuple := "(" + Placeholders(len(columns)) + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("insert %s: row %d has %d values, want %d", table, i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
		args = append(args, row...)
	}
	return b.String(), args, nil
}

// InsertRows inserts rows in as few statements as the parameter ceiling
// allows and returns the number of rows written.
func InsertRows(ctx context.Context, r Repository, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("insert %s: no columns", table)
	}

	per := RowsPerStatement(len(columns))
	d := r.Dialect()
	var total int64
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		q, args, err := BulkInsertSQL(d, table, columns, rows[start:end])
		if err != nil {
			return total, err
		}
		n, err := r.Exec(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}
