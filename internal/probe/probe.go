// Package probe samples a document collection and reports which field
// paths occur, with which value types, and how unique their values are.
//
// The report is used to pick field specs and filters for a migration job
// (for instance the product field carrying the repeat-purchase flag) before
// running it against the full collection.
//
// Sampling is bounded by Options.Limit documents and distinct counting by
// Options.MaxDistinct values per path.
package probe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"recsys/internal/document"
)

const (
	defaultLimit       = 1000
	defaultMaxDistinct = 10000
)

// Options bound a probe run.
type Options struct {
	// Limit is the number of documents sampled; <= 0 uses 1000.
	Limit int
	// MaxDistinct caps distinct-value tracking per path; <= 0 uses 10000.
	MaxDistinct int
	// Filter restricts the sample, as in a job.
	Filter document.Filter
}

// FieldStats describes one dotted field path.
type FieldStats struct {
	Path string
	// Present counts documents with a non-null value at Path.
	Present int
	// Nulls counts explicit nulls.
	Nulls int
	// Types counts values per type name (string, int, float, bool, list,
	// document, other).
	Types map[string]int
	// Distinct counts distinct non-null values, up to the cap.
	Distinct int
	Capped   bool
}

// Uniqueness is Distinct / Present, 0 when the path never has a value.
func (f FieldStats) Uniqueness() float64 {
	if f.Present == 0 {
		return 0
	}
	return float64(f.Distinct) / float64(f.Present)
}

// Report is the result of sampling one collection.
type Report struct {
	Collection string
	Sampled    int
	// Fields are sorted by path.
	Fields []FieldStats
}

// Field returns the stats for path.
func (r Report) Field(path string) (FieldStats, bool) {
	i := sort.Search(len(r.Fields), func(i int) bool { return r.Fields[i].Path >= path })
	if i < len(r.Fields) && r.Fields[i].Path == path {
		return r.Fields[i], true
	}
	return FieldStats{}, false
}

type tracker struct {
	stats    FieldStats
	distinct map[string]struct{}
}

// Collection samples up to opt.Limit documents of collection from src.
// Nested documents are walked; lists count as one value of type list.
func Collection(ctx context.Context, src document.Source, collection string, opt Options) (Report, error) {
	if opt.Limit <= 0 {
		opt.Limit = defaultLimit
	}
	if opt.MaxDistinct <= 0 {
		opt.MaxDistinct = defaultMaxDistinct
	}

	cur, err := src.Find(ctx, collection, opt.Filter, nil)
	if err != nil {
		return Report{}, fmt.Errorf("probe %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	rep := Report{Collection: collection}
	byPath := map[string]*tracker{}

	for rep.Sampled < opt.Limit && cur.Next(ctx) {
		rep.Sampled++
		walk("", cur.Doc(), func(path string, v any) {
			t := byPath[path]
			if t == nil {
				t = &tracker{stats: FieldStats{Path: path, Types: map[string]int{}}, distinct: map[string]struct{}{}}
				byPath[path] = t
			}
			t.observe(v, opt.MaxDistinct)
		})
	}
	if err := cur.Err(); err != nil {
		return rep, fmt.Errorf("probe %s: %w", collection, err)
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	rep.Fields = make([]FieldStats, 0, len(byPath))
	for _, t := range byPath {
		t.stats.Distinct = len(t.distinct)
		rep.Fields = append(rep.Fields, t.stats)
	}
	sort.Slice(rep.Fields, func(i, j int) bool { return rep.Fields[i].Path < rep.Fields[j].Path })
	return rep, nil
}

func walk(prefix string, doc map[string]any, fn func(path string, v any)) {
	for k, v := range doc {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if m, ok := v.(map[string]any); ok {
			fn(path, v)
			walk(path, m, fn)
			continue
		}
		fn(path, v)
	}
}

func (t *tracker) observe(v any, maxDistinct int) {
	if v == nil {
		t.stats.Nulls++
		return
	}
	t.stats.Present++
	t.stats.Types[typeName(v)]++

	if _, isDoc := v.(map[string]any); isDoc {
		return
	}
	if len(t.distinct) >= maxDistinct {
		t.stats.Capped = true
		return
	}
	t.distinct[distinctKey(v)] = struct{}{}
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case bool:
		return "bool"
	case []any:
		return "list"
	case map[string]any:
		return "document"
	default:
		return "other"
	}
}

// distinctKey makes lists and scalars comparable; "1" and 1 stay apart.
func distinctKey(v any) string {
	switch t := v.(type) {
	case string:
		return "s:" + t
	case []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("l:%v", t)
		}
		return "l:" + string(b)
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

// Format renders r as a tab-separated table, most repetitive paths first.
func (r Report) Format() string {
	if r.Sampled == 0 {
		return fmt.Sprintf("%s: no documents sampled", r.Collection)
	}

	rows := append([]FieldStats(nil), r.Fields...)
	sort.SliceStable(rows, func(i, j int) bool {
		ui, uj := rows[i].Uniqueness(), rows[j].Uniqueness()
		if ui == uj {
			return rows[i].Path < rows[j].Path
		}
		return ui < uj
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\tsampled=%d\n", r.Collection, r.Sampled)
	fmt.Fprintf(&b, "%-30s\t%-7s\t%-7s\t%-7s\tratio\ttypes\n", "path", "present", "nulls", "unique")
	for _, f := range rows {
		capped := ""
		if f.Capped {
			capped = "+"
		}
		fmt.Fprintf(&b, "%-30s\t%-7d\t%-7d\t%-7s\t%.1f%%\t%s\n",
			f.Path, f.Present, f.Nulls, fmt.Sprintf("%d%s", f.Distinct, capped), f.Uniqueness()*100, formatTypes(f.Types))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTypes(types map[string]int) string {
	names := make([]string, 0, len(types))
	for n := range types {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%d", n, types[n])
	}
	return strings.Join(parts, ",")
}
