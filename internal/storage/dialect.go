package storage

import (
	"fmt"
	"strings"
)

// Dialect captures the SQL differences between backends that the rest of
// the module cares about. Everything else is written in portable SQL.
type Dialect interface {
	// Name is the backend kind ("postgres", "sqlite", "mssql").
	Name() string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string

	// Ident quotes an identifier.
	Ident(name string) string

	// ColumnType renders the native type for a logical column.
	ColumnType(c ColumnSpec) string

	// WrapCreateTable turns column definitions into an idempotent CREATE TABLE.
	WrapCreateTable(table string, defs []string) string

	// Limit renders a trailing row limit. The statement must already carry
	// an ORDER BY (SQL Server requires one for OFFSET/FETCH).
	Limit(n int) string

	// AddForeignKeySQL and DropForeignKeySQL return "" when the backend cannot
	// alter constraints after table creation.
	AddForeignKeySQL(fk ForeignKeySpec) string
	DropForeignKeySQL(fk ForeignKeySpec) string

	// EncodeList converts a list of ids into the value bound for a
	// TypeTextList column.
	EncodeList(ids []string) (any, error)
}

// Rebind rewrites '?' placeholders into the dialect's native form.
// Question marks inside single-quoted literals are left alone.
func Rebind(d Dialect, query string) string {
	if !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)

	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteString(d.Placeholder(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// CreateTableSQL renders the DDL for t in dialect d.
func CreateTableSQL(d Dialect, t TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("table %s: no columns", t.Name)
	}

	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("table %s: column name is empty", t.Name)
		}

		var b strings.Builder
		b.WriteString(d.Ident(c.Name))
		b.WriteString(" ")
		b.WriteString(d.ColumnType(c))
		if c.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		if c.NotNull || c.PrimaryKey {
			b.WriteString(" NOT NULL")
		}
		defs = append(defs, b.String())
	}

	return d.WrapCreateTable(t.Name, defs), nil
}

// InsertSQL renders a single-row parameterized INSERT for columns.
func InsertSQL(d Dialect, table string, columns []string) string {
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
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
	}
	b.WriteString(")")
	return b.String()
}

// OrphanDeleteSQL renders the statement that removes rows of fk.Table whose
// fk.Column has no match in the referenced table.
func OrphanDeleteSQL(d Dialect, fk ForeignKeySpec) string {
	return fmt.Sprintf(
		"DELETE FROM %s WHERE %s NOT IN (SELECT %s FROM %s)",
		fk.Table, d.Ident(fk.Column), d.Ident(fk.RefColumn), fk.RefTable,
	)
}

// Placeholders renders "?, ?, ?" for n parameters.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
