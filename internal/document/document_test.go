package document

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

func TestProject_LengthAndNilSlots(t *testing.T) {
	doc := Doc{
		"_id":   "p1",
		"brand": "acme",
		"properties": map[string]any{
			"stock":    int64(4),
			"discount": nil,
		},
		"scalar": "not-a-doc",
	}

	tests := []struct {
		name  string
		specs []FieldSpec
		want  []any
	}{
		{
			name:  "top_level",
			specs: []FieldSpec{Field("_id"), Field("brand")},
			want:  []any{"p1", "acme"},
		},
		{
			name:  "nested",
			specs: []FieldSpec{Path("properties", "stock")},
			want:  []any{int64(4)},
		},
		{
			name:  "missing_key",
			specs: []FieldSpec{Field("nope"), Path("properties", "nope")},
			want:  []any{nil, nil},
		},
		{
			name:  "nil_intermediate",
			specs: []FieldSpec{Path("properties", "discount", "value")},
			want:  []any{nil},
		},
		{
			name:  "non_document_intermediate",
			specs: []FieldSpec{Path("scalar", "x"), Path("brand", "x", "y")},
			want:  []any{nil, nil},
		},
		{
			name:  "empty_spec",
			specs: []FieldSpec{nil, Field("_id")},
			want:  []any{nil, "p1"},
		},
		{
			name:  "no_specs",
			specs: nil,
			want:  []any{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Project(doc, tc.specs)
			if len(got) != len(tc.specs) {
				t.Fatalf("len=%d want %d", len(got), len(tc.specs))
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %#v want %#v", got, tc.want)
			}
		})
	}
}

func TestProject_NilDocument(t *testing.T) {
	got := Project(nil, []FieldSpec{Field("a"), Path("b", "c")})
	if len(got) != 2 || got[0] != nil || got[1] != nil {
		t.Fatalf("got %#v", got)
	}
}

func TestParseFieldSpec(t *testing.T) {
	if got := ParseFieldSpec("order.products"); !reflect.DeepEqual(got, Path("order", "products")) {
		t.Fatalf("got %#v", got)
	}
	if got := ParseFieldSpec(" "); got != nil {
		t.Fatalf("blank spec should be nil, got %#v", got)
	}
	if got := Path("a", "b", "c").String(); got != "a.b.c" {
		t.Fatalf("String()=%q", got)
	}
}

func TestMatches(t *testing.T) {
	doc := Doc{"has_sale": true, "n": json.Number("3"), "o": map[string]any{"k": "v"}}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty", filter: nil, want: true},
		{name: "bool_eq", filter: Filter{"has_sale": true}, want: true},
		{name: "bool_ne", filter: Filter{"has_sale": false}, want: false},
		{name: "number_across_types", filter: Filter{"n": 3}, want: true},
		{name: "nested", filter: Filter{"o.k": "v"}, want: true},
		{name: "missing", filter: Filter{"absent": true}, want: false},
		{name: "type_mismatch", filter: Filter{"has_sale": "true"}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(doc, tc.filter); got != tc.want {
				t.Fatalf("Matches=%v want %v", got, tc.want)
			}
		})
	}
}

func TestExtract_FiltersAndProjects(t *testing.T) {
	src := SliceSource{
		"sessions": {
			{"_id": "s1", "buid": []any{"B1"}, "has_sale": true},
			{"_id": "s2", "buid": "B2", "has_sale": false},
			{"_id": "s3", "has_sale": true},
		},
	}

	rows, err := Extract(context.Background(), src, "sessions",
		[]FieldSpec{Field("_id"), Field("buid")}, Filter{"has_sale": true})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := [][]any{
		{"s1", []any{"B1"}},
		{"s3", nil},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("got %#v want %#v", rows, want)
	}
}

func TestExtract_UnknownCollectionIsEmpty(t *testing.T) {
	rows, err := Extract(context.Background(), SliceSource{}, "nope", []FieldSpec{Field("_id")}, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %v", rows)
	}
}

func TestExtract_CanceledContextIsAnError(t *testing.T) {
	src := SliceSource{"sessions": {{"_id": "s1"}, {"_id": "s2"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows, err := Extract(ctx, src, "sessions", []FieldSpec{Field("_id")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows=%v, want none", rows)
	}
}
