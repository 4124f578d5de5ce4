package contentrule

import (
	"context"
	"reflect"
	"testing"

	"recsys/internal/loader"
	"recsys/internal/storage"
	"recsys/internal/storage/storagetest"
)

func seedProducts(t *testing.T, repo storage.Repository, rows [][]any) {
	t.Helper()
	l := &loader.Loader{Repo: repo}
	if _, err := l.Load(context.Background(), storage.TableProduct, []string{"product_id", "brand", "category", "sub_category"}, rows); err != nil {
		t.Fatalf("seed products: %v", err)
	}
}

func rulesByProduct(rules []Rule) map[string][]string {
	out := make(map[string][]string, len(rules))
	for _, r := range rules {
		out[r.ProductID] = r.Recommended
	}
	return out
}

func TestGenerate(t *testing.T) {
	repo := storagetest.OpenSQLite(t)
	seedProducts(t, repo, [][]any{
		{"p1", "Acme", "Food", "Snacks"},
		{"p2", "Acme", "Food", "Snacks"},
		{"p3", "Acme", "Food", "Snacks"},
		{"p4", "Acme", "Food", "Drinks"}, // singleton class
		{"p5", "Acme", "Food", nil},      // partial triple
		{"p6", "O'Brien", "Food", "Snacks"},
		{"p7", "O'Brien", "Food", "Snacks"}, // quoted triple
		{"p8", "Zeta", "Home", "Garden"},
		{"p'9", "Zeta", "Home", "Garden"}, // quoted id
	})

	rules, err := Generate(context.Background(), repo)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got := rulesByProduct(rules)

	tests := []struct {
		product string
		want    []string
		present bool
	}{
		{product: "p1", want: []string{"p2", "p3"}, present: true},
		{product: "p2", want: []string{"p1", "p3"}, present: true},
		{product: "p3", want: []string{"p1", "p2"}, present: true},
		{product: "p4"},
		{product: "p5"},
		{product: "p6"},
		{product: "p7"},
		// p8's class is found through p8; the quoted id still belongs to it.
		{product: "p8", want: []string{"p'9"}, present: true},
		{product: "p'9", want: []string{"p8"}, present: true},
	}
	for _, tc := range tests {
		t.Run(tc.product, func(t *testing.T) {
			rec, ok := got[tc.product]
			if ok != tc.present {
				t.Fatalf("rule present=%v, want %v (rules=%v)", ok, tc.present, got)
			}
			if tc.present && !reflect.DeepEqual(rec, tc.want) {
				t.Fatalf("recommended=%v, want %v", rec, tc.want)
			}
		})
	}
	if len(rules) != 5 {
		t.Fatalf("rules=%d, want 5: %v", len(rules), rules)
	}
}

func TestGenerate_NeverRecommendsSelf(t *testing.T) {
	repo := storagetest.OpenSQLite(t)
	seedProducts(t, repo, [][]any{
		{"a", "B", "C", "D"},
		{"b", "B", "C", "D"},
		{"c", "B", "C", "D"},
		{"d", "B", "C", "D"},
	})

	rules, err := Generate(context.Background(), repo)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, r := range rules {
		if len(r.Recommended) != 3 {
			t.Fatalf("%s: %d siblings, want 3", r.ProductID, len(r.Recommended))
		}
		for _, id := range r.Recommended {
			if id == r.ProductID {
				t.Fatalf("%s recommends itself", r.ProductID)
			}
		}
	}
}

func TestGenerate_EmptyCatalog(t *testing.T) {
	repo := storagetest.OpenSQLite(t)
	rules, err := Generate(context.Background(), repo)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("rules=%v, want none", rules)
	}
}

func TestRebuild_ReplacesTable(t *testing.T) {
	repo := storagetest.OpenSQLite(t)
	ctx := context.Background()
	seedProducts(t, repo, [][]any{
		{"p1", "Acme", "Food", "Snacks"},
		{"p2", "Acme", "Food", "Snacks"},
	})
	storagetest.MustExec(t, repo, "INSERT INTO content_rule (product_id, recommended_product_ids) VALUES (?, ?)", "stale", "[]")

	l := &loader.Loader{Repo: repo}
	res, err := Rebuild(ctx, l)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if res.Inserted != 2 {
		t.Fatalf("inserted=%d, want 2", res.Inserted)
	}

	rows, err := repo.Query(ctx, "SELECT product_id, recommended_product_ids FROM content_rule ORDER BY product_id")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%v, want p1 and p2 only", rows)
	}
	id, _ := storage.AsString(rows[0][0])
	list, err := storage.DecodeList(rows[0][1])
	if err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if id != "p1" || !reflect.DeepEqual(list, []string{"p2"}) {
		t.Fatalf("row 0 = %s %v, want p1 [p2]", id, list)
	}
}
