package recommend

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"recsys/internal/loader"
	"recsys/internal/storage"
	"recsys/internal/storage/storagetest"
)

// seedEngine loads a small store:
//
//	u1: p1 p2          (target)
//	u2: p1 p3 p4       overlap 1
//	u3: p1 p2 p5       overlap 2
//	u4: p6             overlap 0
//	u5: p2 p3          overlap 1
//	u6: no orders
func seedEngine(t *testing.T) storage.Repository {
	t.Helper()
	repo := storagetest.OpenSQLite(t)
	ctx := context.Background()
	l := &loader.Loader{Repo: repo}

	load := func(table string, cols []string, rows [][]any) {
		t.Helper()
		if _, err := l.Load(ctx, table, cols, rows); err != nil {
			t.Fatalf("seed %s: %v", table, err)
		}
	}

	load(storage.TableProduct, storage.ProductColumns, [][]any{
		{"p1", "A", "C", "S", nil, nil, int64(1), nil},
		{"p2", "A", "C", "S", nil, nil, int64(1), nil},
		{"p3", "A", "C", "T", true, false, int64(5), "10%"},
		{"p4", "B", "C", "T", false, true, int64(10), nil},
		{"p5", "B", "D", "T", nil, nil, nil, nil},
		{"p6", "B", "D", "U", nil, nil, int64(99), nil},
	})
	load(storage.TableSessions, storage.SessionsColumns, [][]any{
		{"s1", "u1"}, {"s2", "u2"}, {"s3", "u3"}, {"s4", "u4"}, {"s5", "u5"}, {"s6", "u6"},
	})
	load(storage.TableOrdered, storage.OrderedColumns, [][]any{
		{"s1", "p1"}, {"s1", "p2"},
		{"s2", "p1"}, {"s2", "p3"}, {"s2", "p4"},
		{"s3", "p1"}, {"s3", "p2"}, {"s3", "p5"},
		{"s4", "p6"},
		{"s5", "p2"}, {"s5", "p3"},
	})

	list, err := repo.Dialect().EncodeList([]string{"p2", "p3", "p4"})
	if err != nil {
		t.Fatalf("encode list: %v", err)
	}
	load(storage.TableContentRule, storage.ContentRuleColumns, [][]any{{"p1", list}})
	return repo
}

func TestContentRecommendations(t *testing.T) {
	e := New(seedEngine(t))

	tests := []struct {
		name    string
		product string
		amount  int
		want    []string
	}{
		{name: "truncates", product: "p1", amount: 2, want: []string{"p2", "p3"}},
		{name: "exhausted_list", product: "p1", amount: 10, want: []string{"p2", "p3", "p4"}},
		{name: "unknown_product", product: "nope", amount: 3, want: []string{}},
		{name: "zero_amount", product: "p1", amount: 0, want: []string{}},
		{name: "negative_amount", product: "p1", amount: -1, want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.ContentRecommendations(context.Background(), tc.product, tc.amount)
			if err != nil {
				t.Fatalf("ContentRecommendations: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNeighbors_TieBreakOnProfileID(t *testing.T) {
	e := New(seedEngine(t))

	got, err := e.Neighbors(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	want := []Neighbor{{"u3", 2}, {"u2", 1}, {"u5", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("neighbors=%v, want %v", got, want)
	}
}

func TestProfileRecommendations(t *testing.T) {
	e := New(seedEngine(t))

	tests := []struct {
		name    string
		profile string
		k, n    int
		want    []string
	}{
		// u3,u2 -> p5 (u3), p3 p4 (u2); all freq 1, stock orders p4 > p3 > p5(NULL).
		{name: "two_neighbors", profile: "u1", k: 2, n: 10, want: []string{"p4", "p3", "p5"}},
		// u5 adds a second p3 order line.
		{name: "frequency_first", profile: "u1", k: 3, n: 10, want: []string{"p3", "p4", "p5"}},
		{name: "bounded_by_amount", profile: "u1", k: 3, n: 2, want: []string{"p3", "p4"}},
		{name: "no_orders", profile: "u6", k: 3, n: 5, want: []string{}},
		{name: "unknown_profile", profile: "ghost", k: 3, n: 5, want: []string{}},
		{name: "zero_neighbors", profile: "u1", k: 0, n: 5, want: []string{}},
		{name: "zero_amount", profile: "u1", k: 3, n: 0, want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.ProfileRecommendations(context.Background(), tc.profile, tc.k, tc.n)
			if err != nil {
				t.Fatalf("ProfileRecommendations: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestProfileRecommendations_ExcludesOwnedProducts(t *testing.T) {
	e := New(seedEngine(t))

	for _, profile := range []string{"u1", "u2", "u3", "u4", "u5"} {
		owned := map[string]bool{}
		rows, err := e.Repo.Query(context.Background(), ownedProductsSQL, profile)
		if err != nil {
			t.Fatalf("owned: %v", err)
		}
		for _, r := range rows {
			id, _ := storage.AsString(r[0])
			owned[id] = true
		}

		got, err := e.ProfileRecommendations(context.Background(), profile, 5, 10)
		if err != nil {
			t.Fatalf("ProfileRecommendations(%s): %v", profile, err)
		}
		for _, id := range got {
			if owned[id] {
				t.Fatalf("%s: recommended owned product %s", profile, id)
			}
		}
	}
}

type mapCache struct {
	m      map[string][]string
	gen    int
	genErr error
	getErr error
	sets   int
}

func (c *mapCache) Generation(context.Context) (string, error) {
	if c.genErr != nil {
		return "", c.genErr
	}
	return fmt.Sprint(c.gen), nil
}

func (c *mapCache) Invalidate(context.Context) error {
	c.gen++
	return nil
}

func (c *mapCache) Get(_ context.Context, key string) ([]string, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, ids []string) error {
	c.sets++
	c.m[key] = ids
	return nil
}

func TestProfileRecommendations_Cache(t *testing.T) {
	repo := seedEngine(t)

	t.Run("hit_skips_store", func(t *testing.T) {
		c := &mapCache{m: map[string][]string{profileCacheKey("0", "u1", 2, 10): {"cached"}}}
		e := &Engine{Repo: repo, Cache: c}
		got, err := e.ProfileRecommendations(context.Background(), "u1", 2, 10)
		if err != nil {
			t.Fatalf("ProfileRecommendations: %v", err)
		}
		if !reflect.DeepEqual(got, []string{"cached"}) || c.sets != 0 {
			t.Fatalf("got %v sets=%d, want cached value and no write", got, c.sets)
		}
	})

	t.Run("miss_fills_cache", func(t *testing.T) {
		c := &mapCache{m: map[string][]string{}}
		e := &Engine{Repo: repo, Cache: c}
		got, err := e.ProfileRecommendations(context.Background(), "u1", 2, 10)
		if err != nil {
			t.Fatalf("ProfileRecommendations: %v", err)
		}
		if !reflect.DeepEqual(c.m[profileCacheKey("0", "u1", 2, 10)], got) {
			t.Fatalf("cache=%v, want %v", c.m, got)
		}
	})

	t.Run("get_error_falls_back_to_store", func(t *testing.T) {
		c := &mapCache{m: map[string][]string{}, getErr: errors.New("redis down")}
		e := &Engine{Repo: repo, Cache: c}
		got, err := e.ProfileRecommendations(context.Background(), "u1", 2, 10)
		if err != nil {
			t.Fatalf("ProfileRecommendations: %v", err)
		}
		if !reflect.DeepEqual(got, []string{"p4", "p3", "p5"}) {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("generation_error_bypasses_cache", func(t *testing.T) {
		c := &mapCache{m: map[string][]string{profileCacheKey("0", "u1", 2, 10): {"cached"}}, genErr: errors.New("redis down")}
		e := &Engine{Repo: repo, Cache: c}
		got, err := e.ProfileRecommendations(context.Background(), "u1", 2, 10)
		if err != nil {
			t.Fatalf("ProfileRecommendations: %v", err)
		}
		if !reflect.DeepEqual(got, []string{"p4", "p3", "p5"}) || c.sets != 0 {
			t.Fatalf("got %v sets=%d, want store result and no write", got, c.sets)
		}
	})
}

func TestProfileRecommendations_CacheFollowsReload(t *testing.T) {
	repo := seedEngine(t)
	ctx := context.Background()
	c := &mapCache{m: map[string][]string{}}
	e := &Engine{Repo: repo, Cache: c}

	before, err := e.ProfileRecommendations(ctx, "u1", 2, 10)
	if err != nil {
		t.Fatalf("ProfileRecommendations: %v", err)
	}
	if !reflect.DeepEqual(before, []string{"p4", "p3", "p5"}) {
		t.Fatalf("before reload = %v", before)
	}

	// u3, the closest neighbor, now also ordered p6.
	l := &loader.Loader{Repo: repo}
	if _, err := l.Load(ctx, storage.TableOrdered, storage.OrderedColumns, [][]any{{"s3", "p6"}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	want, err := New(repo).ProfileRecommendations(ctx, "u1", 2, 10)
	if err != nil {
		t.Fatalf("uncached ProfileRecommendations: %v", err)
	}
	if reflect.DeepEqual(want, before) {
		t.Fatalf("store change did not alter the result %v", want)
	}

	got, err := e.ProfileRecommendations(ctx, "u1", 2, 10)
	if err != nil {
		t.Fatalf("ProfileRecommendations: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("after reload = %v, want %v", got, want)
	}
	if c.sets != 2 {
		t.Fatalf("sets=%d, want one per generation", c.sets)
	}
}

func TestScanCandidate(t *testing.T) {
	c, ok := scanCandidate([]any{"p1", int64(3), nil, "5%", int64(1), nil})
	if !ok {
		t.Fatalf("scanCandidate: not ok")
	}
	want := Candidate{ProductID: "p1", Frequency: 3, Discount: c.Discount, RepeatProduct: c.RepeatProduct}
	if !reflect.DeepEqual(c, want) || *c.Discount != "5%" || !*c.RepeatProduct || c.Stock != nil || c.FastMover != nil {
		t.Fatalf("candidate=%+v", c)
	}
	if _, ok := scanCandidate([]any{nil, int64(1), nil, nil, nil, nil}); ok {
		t.Fatalf("NULL product id accepted")
	}
}
