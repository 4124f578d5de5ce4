// Package pipeline migrates document collections into the relational model.
//
// A Job describes one target table: which collection to read, which field
// paths to project, the steps that normalize and filter the projected
// tuples, and the columns they bind to. Runner executes jobs in dependency
// order, then cleans up references.
package pipeline

import (
	"context"
	"fmt"

	"recsys/internal/document"
	"recsys/internal/storage"
	"recsys/internal/transformer"
	"recsys/internal/transformer/builtin"
)

// Step rewrites a batch of tuples. repo is the target store, for steps
// that look up already-loaded tables.
type Step struct {
	Name string
	Run  func(ctx context.Context, repo storage.Repository, rows [][]any) ([][]any, error)
}

// Coerce normalizes column index of every row to kind.
func Coerce(index int, kind transformer.Kind) Step {
	return Step{
		Name: fmt.Sprintf("coerce[%d]=%s", index, kind),
		Run: func(_ context.Context, _ storage.Repository, rows [][]any) ([][]any, error) {
			if err := transformer.CoerceColumn(rows, index, kind); err != nil {
				return nil, err
			}
			return rows, nil
		},
	}
}

// FilterOrders expands (session_id, has_sale, products) into order lines.
func FilterOrders() Step {
	return Step{Name: "filter_orders", Run: pure(builtin.FilterOrders)}
}

// FilterHistory expands (profile_id, recommended, viewed) into history rows.
func FilterHistory() Step {
	return Step{Name: "filter_history", Run: pure(builtin.FilterHistory)}
}

// FilterProfiles folds (profile_id, buids) into (buid, profile_id).
func FilterProfiles() Step {
	return Step{Name: "filter_profiles", Run: pure(builtin.FilterProfiles)}
}

// LinkSessions replaces session BUIDs with profile ids from the loaded
// profiles table.
func LinkSessions() Step {
	return Step{
		Name: "link_sessions",
		Run: func(ctx context.Context, repo storage.Repository, rows [][]any) ([][]any, error) {
			return builtin.LinkSessionsToProfile(ctx, builtin.StoreResolver{Repo: repo}, rows)
		},
	}
}

func pure(f func([][]any) [][]any) func(context.Context, storage.Repository, [][]any) ([][]any, error) {
	return func(_ context.Context, _ storage.Repository, rows [][]any) ([][]any, error) {
		return f(rows), nil
	}
}

// Job fills one table from one collection.
type Job struct {
	Table      string
	Collection string
	Fields     []document.FieldSpec
	Filter     document.Filter
	Steps      []Step
	Columns    []string

	// DependsOn names tables that must be loaded first.
	DependsOn []string
}

// Collections names the source collections.
type Collections struct {
	Products string `koanf:"products" validate:"required"`
	Visitors string `koanf:"visitors" validate:"required"`
	Sessions string `koanf:"sessions" validate:"required"`
}

// DefaultCollections returns the collection names of the original feed.
func DefaultCollections() Collections {
	return Collections{Products: "products", Visitors: "visitors", Sessions: "sessions"}
}

// Fields holds source field names that differ between feeds.
type Fields struct {
	// RepeatFlag is the product field mapped to repeat_product.
	RepeatFlag string `koanf:"repeat_flag" validate:"required"`
}

// DefaultFields returns the field names of the original feed.
func DefaultFields() Fields {
	return Fields{RepeatFlag: "herhaalaankopen"}
}

// DefaultJobs returns the five base-table jobs in load order.
func DefaultJobs(c Collections, f Fields) []Job {
	return []Job{
		{
			Table:      storage.TableProduct,
			Collection: c.Products,
			Fields: []document.FieldSpec{
				document.Field("_id"),
				document.Field("brand"),
				document.Field("category"),
				document.Field("sub_category"),
				document.ParseFieldSpec(f.RepeatFlag),
				document.Field("fast_mover"),
				document.Path("properties", "stock"),
				document.Path("properties", "discount"),
			},
			Steps: []Step{
				Coerce(0, transformer.KindString),
				Coerce(6, transformer.KindInteger),
				Coerce(7, transformer.KindString),
			},
			Columns: storage.ProductColumns,
		},
		{
			Table:      storage.TableProfiles,
			Collection: c.Visitors,
			Fields:     []document.FieldSpec{document.Field("_id"), document.Field("buids")},
			Steps: []Step{
				Coerce(0, transformer.KindString),
				FilterProfiles(),
			},
			Columns: storage.ProfilesColumns,
		},
		{
			Table:      storage.TableSessions,
			Collection: c.Sessions,
			Fields:     []document.FieldSpec{document.Field("_id"), document.Field("buid")},
			Filter:     document.Filter{"has_sale": true},
			Steps: []Step{
				Coerce(0, transformer.KindString),
				LinkSessions(),
			},
			Columns:   storage.SessionsColumns,
			DependsOn: []string{storage.TableProfiles},
		},
		{
			Table:      storage.TableOrdered,
			Collection: c.Sessions,
			Fields: []document.FieldSpec{
				document.Field("_id"),
				document.Field("has_sale"),
				document.Path("order", "products"),
			},
			Steps: []Step{
				Coerce(0, transformer.KindString),
				FilterOrders(),
			},
			Columns: storage.OrderedColumns,
		},
		{
			Table:      storage.TableHistory,
			Collection: c.Visitors,
			Fields: []document.FieldSpec{
				document.Field("_id"),
				document.Field("previously_recommended"),
				document.Path("recommendations", "viewed_before"),
			},
			Steps: []Step{
				Coerce(0, transformer.KindString),
				FilterHistory(),
			},
			Columns: storage.HistoryColumns,
		},
	}
}

// Order returns jobs sorted so every job follows the jobs it depends on.
// Independent jobs keep their relative order. Dependencies on tables not
// in jobs are treated as satisfied.
func Order(jobs []Job) ([]Job, error) {
	present := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		if present[j.Table] {
			return nil, fmt.Errorf("pipeline: duplicate job for table %q", j.Table)
		}
		present[j.Table] = true
	}

	done := make(map[string]bool, len(jobs))
	placed := make([]bool, len(jobs))
	out := make([]Job, 0, len(jobs))

	for len(out) < len(jobs) {
		progressed := false
		for i, j := range jobs {
			if placed[i] || !ready(j, present, done) {
				continue
			}
			out = append(out, j)
			placed[i] = true
			done[j.Table] = true
			progressed = true
			break
		}
		if !progressed {
			var stuck []string
			for i, j := range jobs {
				if !placed[i] {
					stuck = append(stuck, j.Table)
				}
			}
			return nil, fmt.Errorf("pipeline: dependency cycle among %v", stuck)
		}
	}
	return out, nil
}

func ready(j Job, present, done map[string]bool) bool {
	for _, dep := range j.DependsOn {
		if present[dep] && !done[dep] {
			return false
		}
	}
	return true
}

// Select keeps the jobs whose table is in tables; an empty list keeps all.
func Select(jobs []Job, tables []string) ([]Job, error) {
	if len(tables) == 0 {
		return jobs, nil
	}
	byTable := make(map[string]Job, len(jobs))
	for _, j := range jobs {
		byTable[j.Table] = j
	}
	out := make([]Job, 0, len(tables))
	for _, t := range tables {
		j, ok := byTable[t]
		if !ok {
			return nil, fmt.Errorf("pipeline: no job for table %q", t)
		}
		out = append(out, j)
	}
	return out, nil
}
