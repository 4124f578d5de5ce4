// Package storage defines the relational-store capability used by every
// component that reads or writes tables, plus the backend registry.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a Repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string `koanf:"kind" validate:"required,oneof=postgres sqlite mssql"`
	DSN  string `koanf:"dsn" validate:"required"`
}

// Repository is the "execute a parameterized statement and return rows"
// capability. Callers write statements with '?' placeholders; each backend
// rebinds them to its native style before execution.
//
// A Repository is opened by the caller and passed explicitly into the
// extractor, loader, content-rule generator and recommendation engine.
// Nothing in this module keeps a package-level connection.
type Repository interface {
	// Dialect exposes the SQL flavour so callers can render identifiers,
	// DDL and LIMIT clauses.
	Dialect() Dialect

	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Query runs a statement and returns every row fully materialized.
	// Values are driver-native (string, int64, bool, []any for arrays, ...).
	Query(ctx context.Context, query string, args ...any) ([][]any, error)

	// Close releases backend resources. Call once.
	Close()
}

// ErrNoRows is returned by QueryOne when the statement yields nothing.
var ErrNoRows = errors.New("storage: no rows")

// QueryOne runs query and returns the first row.
//
// If the statement yields more than one row the rest are ignored; this is
// the "first result wins" rule used by lookups.
func QueryOne(ctx context.Context, r Repository, query string, args ...any) ([]any, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows[0], nil
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// Open constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func Open(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
