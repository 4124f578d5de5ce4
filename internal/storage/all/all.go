// Package all registers every storage backend. Import it for side effects.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "recsys/internal/storage/mssql"
	_ "recsys/internal/storage/postgres"
	_ "recsys/internal/storage/sqlite"
)
