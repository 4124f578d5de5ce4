// Package document reads document-shaped records and projects them into
// positional tuples.
//
// A Source is any document store that can return the documents of a
// collection matching an equality filter. Project and Extract turn those
// documents into [][]any rows whose slots line up with a list of FieldSpecs.
package document

import (
	"context"
	"fmt"
	"strings"
)

// Doc is one decoded document. Nested documents are map[string]any and
// arrays are []any; adapters convert their native types to these shapes.
type Doc = map[string]any

// FieldSpec is a path of one or more field names, outermost first.
type FieldSpec []string

// Field is a top-level field spec.
func Field(name string) FieldSpec { return FieldSpec{name} }

// Path is a nested field spec, e.g. Path("properties", "stock").
func Path(names ...string) FieldSpec { return FieldSpec(names) }

// ParseFieldSpec splits a dotted path ("order.products").
func ParseFieldSpec(s string) FieldSpec {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return FieldSpec(strings.Split(s, "."))
}

// String renders the dotted form used by Mongo projections.
func (f FieldSpec) String() string { return strings.Join(f, ".") }

// Filter is a set of field-equality constraints keyed by dotted path.
// A nil or empty Filter matches every document.
type Filter map[string]any

// Cursor iterates the documents returned by Source.Find.
type Cursor interface {
	// Next advances to the next document. It returns false at the end of
	// the result set or on error; check Err afterwards.
	Next(ctx context.Context) bool
	Doc() Doc
	Err() error
	Close(ctx context.Context) error
}

// Source is the "fetch documents matching an optional filter, projected to
// given field paths" capability.
//
// fields is a hint: a Source may return more fields than requested.
type Source interface {
	Find(ctx context.Context, collection string, filter Filter, fields []FieldSpec) (Cursor, error)
}

// Lookup walks path through doc. ok is false when a key is missing or an
// intermediate value is not a document.
func Lookup(doc Doc, path FieldSpec) (v any, ok bool) {
	if len(path) == 0 || doc == nil {
		return nil, false
	}

	var cur any = doc
	for _, name := range path {
		m, isMap := cur.(map[string]any)
		if !isMap {
			return nil, false
		}
		cur, ok = m[name]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Project extracts one value per spec, in spec order.
//
// The result always has len(specs) slots. A missing key, a nil intermediate
// or a non-document intermediate yields nil in that slot.
func Project(doc Doc, specs []FieldSpec) []any {
	out := make([]any, len(specs))
	for i, spec := range specs {
		if v, ok := Lookup(doc, spec); ok {
			out[i] = v
		}
	}
	return out
}

// Extract runs src.Find and projects every returned document.
// Rows follow the source's iteration order.
func Extract(ctx context.Context, src Source, collection string, fields []FieldSpec, filter Filter) ([][]any, error) {
	cur, err := src.Find(ctx, collection, filter, fields)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var rows [][]any
	for cur.Next(ctx) {
		rows = append(rows, Project(cur.Doc(), fields))
	}
	if err := cur.Err(); err != nil {
		return rows, fmt.Errorf("read %s: %w", collection, err)
	}
	return rows, nil
}
