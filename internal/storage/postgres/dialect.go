package postgres

import (
	"fmt"
	"strings"

	"recsys/internal/storage"
)

// Dialect renders Postgres SQL.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// Ident double-quotes an identifier, escaping embedded quotes.
func (Dialect) Ident(name string) string { return pgIdent(name) }

func (Dialect) ColumnType(c storage.ColumnSpec) string {
	switch c.Type {
	case storage.TypeBool:
		return "BOOLEAN"
	case storage.TypeInt:
		return "INTEGER"
	case storage.TypeTextList:
		return varchar(c.Size) + "[]"
	default:
		return varchar(c.Size)
	}
}

func (Dialect) WrapCreateTable(table string, defs []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
}

func (Dialect) Limit(n int) string { return fmt.Sprintf(" LIMIT %d", n) }

func (Dialect) AddForeignKeySQL(fk storage.ForeignKeySpec) string {
	return fmt.Sprintf(
		"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		fk.Table, pgIdent(fk.Name), pgIdent(fk.Column), fk.RefTable, pgIdent(fk.RefColumn),
	)
}

func (Dialect) DropForeignKeySQL(fk storage.ForeignKeySpec) string {
	return fmt.Sprintf("ALTER TABLE IF EXISTS %s DROP CONSTRAINT IF EXISTS %s", fk.Table, pgIdent(fk.Name))
}

// EncodeList passes ids through; pgx encodes []string as a text array.
func (Dialect) EncodeList(ids []string) (any, error) {
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func varchar(size int) string {
	if size <= 0 {
		return "TEXT"
	}
	return fmt.Sprintf("VARCHAR(%d)", size)
}

var _ storage.Dialect = Dialect{}
