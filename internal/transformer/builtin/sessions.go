package builtin

import (
	"context"
	"errors"
	"fmt"

	"recsys/internal/storage"
)

// ProfileResolver finds the profile a BUID belongs to.
type ProfileResolver interface {
	// ResolveProfile returns ok=false when no profile carries buid. When
	// several do, the first one the store returns is used.
	ResolveProfile(ctx context.Context, buid string) (profileID string, ok bool, err error)
}

// StoreResolver resolves BUIDs against the loaded profiles table.
type StoreResolver struct {
	Repo storage.Repository
}

var resolveProfileSQL = fmt.Sprintf("SELECT profile_id FROM %s WHERE buid = ?", storage.TableProfiles)

func (r StoreResolver) ResolveProfile(ctx context.Context, buid string) (string, bool, error) {
	row, err := storage.QueryOne(ctx, r.Repo, resolveProfileSQL, buid)
	if errors.Is(err, storage.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	id, ok := storage.AsString(row[0])
	return id, ok, nil
}

// LinkSessionsToProfile replaces each session's BUID with its profile id.
//
// Input rows are (session_id, buid); an array-shaped buid uses its first
// element and an empty array drops the row. Sessions whose BUID resolves to
// no profile are dropped. Resolver errors abort the pass.
//
// Must run after the profiles table is loaded.
func LinkSessionsToProfile(ctx context.Context, resolver ProfileResolver, rows [][]any) ([][]any, error) {
	var out [][]any
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) < 2 {
			continue
		}

		raw := row[1]
		if list, ok := asList(raw); ok {
			if len(list) == 0 {
				continue
			}
			raw = list[0]
		}
		buid, ok := idString(raw)
		if !ok {
			continue
		}

		profileID, found, err := resolver.ResolveProfile(ctx, buid)
		if err != nil {
			return nil, fmt.Errorf("link session %d: resolve buid %q: %w", i, buid, err)
		}
		if !found {
			continue
		}
		out = append(out, []any{row[0], profileID})
	}
	return out, nil
}
