package pipeline

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"recsys/internal/storage"
	"recsys/internal/transformer"
)

func tables(jobs []Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.Table
	}
	return out
}

func TestOrder(t *testing.T) {
	tests := []struct {
		name string
		in   []Job
		want []string
	}{
		{
			name: "already_ordered",
			in:   []Job{{Table: "a"}, {Table: "b", DependsOn: []string{"a"}}},
			want: []string{"a", "b"},
		},
		{
			name: "dependency_moved_forward",
			in:   []Job{{Table: "b", DependsOn: []string{"a"}}, {Table: "c"}, {Table: "a"}},
			want: []string{"c", "a", "b"},
		},
		{
			name: "independent_jobs_keep_order",
			in:   []Job{{Table: "z"}, {Table: "y"}, {Table: "x"}},
			want: []string{"z", "y", "x"},
		},
		{
			name: "missing_dependency_is_satisfied",
			in:   []Job{{Table: "sessions", DependsOn: []string{"profiles"}}},
			want: []string{"sessions"},
		},
		{
			name: "chain",
			in: []Job{
				{Table: "c", DependsOn: []string{"b"}},
				{Table: "b", DependsOn: []string{"a"}},
				{Table: "a"},
			},
			want: []string{"a", "b", "c"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Order(tc.in)
			if err != nil {
				t.Fatalf("Order: %v", err)
			}
			if !reflect.DeepEqual(tables(got), tc.want) {
				t.Fatalf("order=%v, want %v", tables(got), tc.want)
			}
		})
	}
}

func TestOrder_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   []Job
		want string
	}{
		{
			name: "cycle",
			in:   []Job{{Table: "a", DependsOn: []string{"b"}}, {Table: "b", DependsOn: []string{"a"}}, {Table: "c"}},
			want: "dependency cycle among [a b]",
		},
		{
			name: "duplicate",
			in:   []Job{{Table: "a"}, {Table: "a"}},
			want: `duplicate job for table "a"`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Order(tc.in)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	jobs := DefaultJobs(DefaultCollections(), DefaultFields())

	all, err := Select(jobs, nil)
	if err != nil || len(all) != len(jobs) {
		t.Fatalf("Select(nil) = %d jobs, err=%v", len(all), err)
	}

	got, err := Select(jobs, []string{storage.TableHistory, storage.TableProduct})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if want := []string{storage.TableHistory, storage.TableProduct}; !reflect.DeepEqual(tables(got), want) {
		t.Fatalf("Select=%v, want %v", tables(got), want)
	}

	if _, err := Select(jobs, []string{"content_rule"}); err == nil {
		t.Fatalf("Select(content_rule): want error")
	}
}

func TestDefaultJobs(t *testing.T) {
	jobs := DefaultJobs(DefaultCollections(), Fields{RepeatFlag: "flags.repeat"})

	want := []string{
		storage.TableProduct,
		storage.TableProfiles,
		storage.TableSessions,
		storage.TableOrdered,
		storage.TableHistory,
	}
	if !reflect.DeepEqual(tables(jobs), want) {
		t.Fatalf("tables=%v, want %v", tables(jobs), want)
	}

	ordered, err := Order(jobs)
	if err != nil {
		t.Fatalf("Order(DefaultJobs): %v", err)
	}
	if !reflect.DeepEqual(tables(ordered), want) {
		t.Fatalf("default jobs are not in load order: %v", tables(ordered))
	}

	product := jobs[0]
	if len(product.Fields) != len(product.Columns) {
		t.Fatalf("product fields=%d columns=%d", len(product.Fields), len(product.Columns))
	}
	if got := product.Fields[4].String(); got != "flags.repeat" {
		t.Fatalf("repeat flag path=%q", got)
	}

	sessions := jobs[2]
	if sessions.Filter["has_sale"] != true {
		t.Fatalf("sessions filter=%v", sessions.Filter)
	}
	if !reflect.DeepEqual(sessions.DependsOn, []string{storage.TableProfiles}) {
		t.Fatalf("sessions depends on %v", sessions.DependsOn)
	}
}

func TestCoerceStep(t *testing.T) {
	rows := [][]any{{float64(3)}, {nil}}
	s := Coerce(0, transformer.KindInteger)
	got, err := s.Run(context.Background(), nil, rows)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got[0][0] != int64(3) || got[1][0] != nil {
		t.Fatalf("rows=%v", got)
	}
	if s.Name != "coerce[0]=int" {
		t.Fatalf("name=%q", s.Name)
	}

	if _, err := Coerce(1, transformer.KindInteger).Run(context.Background(), nil, rows); err == nil {
		t.Fatalf("Coerce out of range: want error")
	}
}
