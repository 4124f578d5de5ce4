package probe

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"recsys/internal/document"
)

func sampleSource() document.SliceSource {
	return document.SliceSource{
		"products": {
			{"_id": "p1", "brand": "Acme", "herhaalaankopen": true, "properties": map[string]any{"stock": int64(3), "discount": nil}},
			{"_id": "p2", "brand": "Acme", "herhaalaankopen": false, "properties": map[string]any{"stock": 4.5}},
			{"_id": "p3", "brand": "Other", "tags": []any{"a", "b"}},
			{"_id": "p4", "brand": "Acme", "tags": []any{"a", "b"}},
		},
	}
}

func TestCollection(t *testing.T) {
	rep, err := Collection(context.Background(), sampleSource(), "products", Options{})
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if rep.Sampled != 4 {
		t.Fatalf("Sampled=%d, want 4", rep.Sampled)
	}

	var paths []string
	for _, f := range rep.Fields {
		paths = append(paths, f.Path)
	}
	wantPaths := []string{"_id", "brand", "herhaalaankopen", "properties", "properties.discount", "properties.stock", "tags"}
	if !reflect.DeepEqual(paths, wantPaths) {
		t.Fatalf("paths=%v, want %v", paths, wantPaths)
	}

	tests := []struct {
		path     string
		present  int
		nulls    int
		distinct int
		types    map[string]int
	}{
		{"_id", 4, 0, 4, map[string]int{"string": 4}},
		{"brand", 4, 0, 2, map[string]int{"string": 4}},
		{"properties", 2, 0, 0, map[string]int{"document": 2}},
		{"properties.discount", 0, 1, 0, map[string]int{}},
		{"properties.stock", 2, 0, 2, map[string]int{"int": 1, "float": 1}},
		{"tags", 2, 0, 1, map[string]int{"list": 2}},
	}
	for _, tc := range tests {
		f, ok := rep.Field(tc.path)
		if !ok {
			t.Fatalf("missing path %q", tc.path)
		}
		if f.Present != tc.present || f.Nulls != tc.nulls || f.Distinct != tc.distinct || !reflect.DeepEqual(f.Types, tc.types) {
			t.Errorf("%s = %+v", tc.path, f)
		}
	}

	if _, ok := rep.Field("nope"); ok {
		t.Fatalf("Field(nope) found")
	}
}

func TestCollection_LimitCapAndFilter(t *testing.T) {
	src := sampleSource()

	rep, err := Collection(context.Background(), src, "products", Options{Limit: 2, MaxDistinct: 1})
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if rep.Sampled != 2 {
		t.Fatalf("Sampled=%d, want 2", rep.Sampled)
	}
	id, _ := rep.Field("_id")
	if id.Distinct != 1 || !id.Capped {
		t.Fatalf("_id=%+v, want capped at 1", id)
	}

	rep, err = Collection(context.Background(), src, "products", Options{Filter: document.Filter{"brand": "Other"}})
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if rep.Sampled != 1 {
		t.Fatalf("filtered Sampled=%d, want 1", rep.Sampled)
	}
}

func TestReportFormat(t *testing.T) {
	rep, err := Collection(context.Background(), sampleSource(), "products", Options{})
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	out := rep.Format()
	lines := strings.Split(out, "\n")
	if lines[0] != "products:\tsampled=4" {
		t.Fatalf("header=%q", lines[0])
	}
	if !strings.Contains(out, "float=1,int=1") {
		t.Fatalf("types missing:\n%s", out)
	}
	// Least unique paths come first, ties by path.
	if !strings.HasPrefix(lines[2], "properties ") {
		t.Fatalf("first row=%q", lines[2])
	}
	if !strings.HasPrefix(lines[len(lines)-1], "properties.stock ") {
		t.Fatalf("last row=%q", lines[len(lines)-1])
	}

	empty := Report{Collection: "visitors"}
	if got := empty.Format(); got != "visitors: no documents sampled" {
		t.Fatalf("empty Format=%q", got)
	}
}
