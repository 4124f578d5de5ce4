package mssql

import (
	"fmt"
	"strings"

	"recsys/internal/storage"
)

// Dialect renders SQL Server T-SQL.
type Dialect struct{}

func (Dialect) Name() string { return "mssql" }

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (Dialect) Ident(name string) string { return mssqlIdent(name) }

func (Dialect) ColumnType(c storage.ColumnSpec) string {
	switch c.Type {
	case storage.TypeBool:
		return "BIT"
	case storage.TypeInt:
		return "INT"
	case storage.TypeTextList:
		return "NVARCHAR(MAX)"
	default:
		if c.Size <= 0 {
			return "NVARCHAR(MAX)"
		}
		return fmt.Sprintf("NVARCHAR(%d)", c.Size)
	}
}

// WrapCreateTable wraps a CREATE TABLE statement in an OBJECT_ID guard.
//
// This keeps table creation idempotent without requiring IF NOT EXISTS syntax.
func (Dialect) WrapCreateTable(table string, defs []string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		table,
		mssqlTableIdent(table),
		strings.Join(defs, ", "),
	)
}

// Limit uses OFFSET/FETCH, which requires the statement to have an ORDER BY.
func (Dialect) Limit(n int) string {
	return fmt.Sprintf(" OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY", n)
}

func (Dialect) AddForeignKeySQL(fk storage.ForeignKeySpec) string {
	return fmt.Sprintf(
		"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		mssqlTableIdent(fk.Table), mssqlIdent(fk.Name), mssqlIdent(fk.Column),
		mssqlTableIdent(fk.RefTable), mssqlIdent(fk.RefColumn),
	)
}

// DropForeignKeySQL relies on DROP CONSTRAINT IF EXISTS (SQL Server 2016+)
// and is a no-op when the table itself is missing.
func (Dialect) DropForeignKeySQL(fk storage.ForeignKeySpec) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NOT NULL ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s",
		strings.ReplaceAll(fk.Table, "'", "''"), mssqlTableIdent(fk.Table), mssqlIdent(fk.Name),
	)
}

func (Dialect) EncodeList(ids []string) (any, error) { return storage.EncodeJSONList(ids) }

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.product" -> [dbo].[product]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

var _ storage.Dialect = Dialect{}
