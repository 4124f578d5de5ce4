package builtin

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"recsys/internal/storage"
	"recsys/internal/storage/storagetest"
)

type oid string

func (o oid) Hex() string { return string(o) }

func TestFilterOrders(t *testing.T) {
	rows := [][]any{
		{"s1", true, []any{map[string]any{"id": "p1"}, map[string]any{"id": "p2"}}},
		{"s2", false, []any{map[string]any{"id": "p3"}}},
		{"s3", true, nil},
		{"s4", true, "not-a-list"},
		{"s5", true, []any{map[string]any{"name": "no id"}, "p4", nil, oid("p5")}},
		{"s6", int64(1), []any{map[string]any{"id": int64(77)}}},
		{"s7"},
	}

	got := FilterOrders(rows)
	want := [][]any{
		{"s1", "p1"},
		{"s1", "p2"},
		{"s5", "p4"},
		{"s5", "p5"},
		{"s6", "77"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got  %#v\nwant %#v", got, want)
	}
}

func TestFilterHistory_DropsLongIDs(t *testing.T) {
	got := FilterHistory([][]any{
		{"pA", []any{strings.Repeat("x", 33)}, []any{"y"}},
	})
	want := [][]any{{"pA", "y", HistoryViewedBefore}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestFilterHistory_ListsAreIndependent(t *testing.T) {
	got := FilterHistory([][]any{
		{"pA", nil, []any{"v1"}},
		{"pB", []any{"r1", int64(5), strings.Repeat("z", 32)}, "bad"},
		{"pC", nil, nil},
	})
	want := [][]any{
		{"pA", "v1", HistoryViewedBefore},
		{"pB", "r1", HistoryPreviouslyRecommended},
		{"pB", strings.Repeat("z", 32), HistoryPreviouslyRecommended},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got  %#v\nwant %#v", got, want)
	}
}

func TestFilterProfiles_LastWins(t *testing.T) {
	got := FilterProfiles([][]any{
		{"p1", []any{"B"}},
		{"p2", []any{"B"}},
	})
	want := [][]any{{"B", "p2"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestFilterProfiles_OrderAndShapes(t *testing.T) {
	got := FilterProfiles([][]any{
		{"p1", []any{"B1", "B2"}},
		{"p2", nil},
		{"p3", "B3"},
		{"p4", []any{"B1", nil}},
		{"p5", []any{}},
	})
	want := [][]any{
		{"B1", "p4"},
		{"B2", "p1"},
		{"B3", "p3"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got  %#v\nwant %#v", got, want)
	}
}

func TestFilterProfiles_Idempotent(t *testing.T) {
	first := FilterProfiles([][]any{
		{"p1", []any{"B1", "B2"}},
		{"p2", []any{"B2", "B3"}},
		{"p3", []any{"B1"}},
	})

	again := make([][]any, 0, len(first))
	for _, r := range first {
		again = append(again, []any{r[1], []any{r[0]}})
	}
	second := FilterProfiles(again)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("fold not idempotent:\nfirst  %#v\nsecond %#v", first, second)
	}
}

type mapResolver struct {
	m     map[string]string
	err   error
	calls []string
}

func (r *mapResolver) ResolveProfile(_ context.Context, buid string) (string, bool, error) {
	r.calls = append(r.calls, buid)
	if r.err != nil {
		return "", false, r.err
	}
	id, ok := r.m[buid]
	return id, ok, nil
}

func TestLinkSessionsToProfile(t *testing.T) {
	res := &mapResolver{m: map[string]string{"B1": "p1", "B2": "p2"}}

	got, err := LinkSessionsToProfile(context.Background(), res, [][]any{
		{"s1", "B1"},
		{"s2", []any{"B2", "B1"}},
		{"s3", "unknown"},
		{"s4", []any{}},
		{"s5", nil},
	})
	if err != nil {
		t.Fatalf("LinkSessionsToProfile: %v", err)
	}
	want := [][]any{{"s1", "p1"}, {"s2", "p2"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
	if !reflect.DeepEqual(res.calls, []string{"B1", "B2", "unknown"}) {
		t.Fatalf("unexpected resolver calls: %v", res.calls)
	}
}

func TestLinkSessionsToProfile_StoreErrorIsFatal(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := LinkSessionsToProfile(context.Background(), &mapResolver{err: boom}, [][]any{{"s1", "B1"}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestStoreResolver_FirstMatchWins(t *testing.T) {
	repo := storagetest.OpenSQLite(t)
	ctx := context.Background()

	if _, err := storage.InsertRows(ctx, repo, storage.TableProfiles, storage.ProfilesColumns, [][]any{
		{"B1", "p1"},
		{"B2", "p2"},
	}); err != nil {
		t.Fatalf("seed profiles: %v", err)
	}

	r := StoreResolver{Repo: repo}
	id, ok, err := r.ResolveProfile(ctx, "B2")
	if err != nil || !ok || id != "p2" {
		t.Fatalf("ResolveProfile(B2) = (%q, %v, %v)", id, ok, err)
	}
	_, ok, err = r.ResolveProfile(ctx, "nope")
	if err != nil || ok {
		t.Fatalf("ResolveProfile(nope) = (%v, %v)", ok, err)
	}
}

func TestTruthy(t *testing.T) {
	truthy := []any{true, int64(1), "x", []any{1}, map[string]any{"a": 1}, 0.5}
	falsy := []any{nil, false, int64(0), "", []any{}, map[string]any{}, 0.0}
	for _, v := range truthy {
		if !Truthy(v) {
			t.Fatalf("Truthy(%#v) = false", v)
		}
	}
	for _, v := range falsy {
		if Truthy(v) {
			t.Fatalf("Truthy(%#v) = true", v)
		}
	}
}
