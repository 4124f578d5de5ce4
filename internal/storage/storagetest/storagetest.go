// Package storagetest opens throwaway SQLite databases for package tests.
package storagetest

import (
	"context"
	"strings"
	"testing"

	"recsys/internal/storage"
	_ "recsys/internal/storage/sqlite"
)

// OpenSQLite returns an in-memory SQLite repository named after the test,
// with the relational model's tables created. It is closed on cleanup.
func OpenSQLite(t testing.TB) storage.Repository {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	r, err := storage.Open(context.Background(), storage.Config{
		Kind: "sqlite",
		DSN:  "file:" + name + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(r.Close)

	if err := storage.EnsureTables(context.Background(), r, storage.Tables()); err != nil {
		t.Fatalf("ensure tables: %v", err)
	}
	return r
}

// MustExec runs q or fails the test.
func MustExec(t testing.TB, r storage.Repository, q string, args ...any) {
	t.Helper()
	if _, err := r.Exec(context.Background(), q, args...); err != nil {
		t.Fatalf("exec %q: %v", q, err)
	}
}
