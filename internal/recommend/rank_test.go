package recommend

import (
	"reflect"
	"testing"
)

func i64(v int64) *int64   { return &v }
func str(v string) *string { return &v }
func boolp(v bool) *bool   { return &v }

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ProductID
	}
	return out
}

func TestRankCandidates(t *testing.T) {
	tests := []struct {
		name string
		in   []Candidate
		want []string
	}{
		{
			name: "frequency_desc",
			in:   []Candidate{{ProductID: "a", Frequency: 1}, {ProductID: "b", Frequency: 3}, {ProductID: "c", Frequency: 2}},
			want: []string{"b", "c", "a"},
		},
		{
			name: "stock_desc_nulls_last",
			in: []Candidate{
				{ProductID: "a", Frequency: 1},
				{ProductID: "b", Frequency: 1, Stock: i64(2)},
				{ProductID: "c", Frequency: 1, Stock: i64(7)},
			},
			want: []string{"c", "b", "a"},
		},
		{
			name: "discount_asc_nulls_last",
			in: []Candidate{
				{ProductID: "a", Frequency: 1, Stock: i64(1)},
				{ProductID: "b", Frequency: 1, Stock: i64(1), Discount: str("20%")},
				{ProductID: "c", Frequency: 1, Stock: i64(1), Discount: str("10%")},
			},
			want: []string{"c", "b", "a"},
		},
		{
			name: "repeat_then_fast_mover_desc",
			in: []Candidate{
				{ProductID: "a", Frequency: 1, RepeatProduct: boolp(false), FastMover: boolp(true)},
				{ProductID: "b", Frequency: 1, RepeatProduct: boolp(true)},
				{ProductID: "c", Frequency: 1, RepeatProduct: boolp(true), FastMover: boolp(true)},
				{ProductID: "d", Frequency: 1},
			},
			want: []string{"c", "b", "a", "d"},
		},
		{
			name: "product_id_breaks_full_ties",
			in:   []Candidate{{ProductID: "z", Frequency: 1}, {ProductID: "m", Frequency: 1}, {ProductID: "a", Frequency: 1}},
			want: []string{"a", "m", "z"},
		},
		{
			name: "empty",
			in:   nil,
			want: []string{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			RankCandidates(tc.in)
			if got := ids(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("order=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestNullsLast(t *testing.T) {
	cmp := func(x, y int64) int { return cmpInt(x, y) }
	tests := []struct {
		name string
		a, b *int64
		want int
	}{
		{"both_nil", nil, nil, 0},
		{"a_nil", nil, i64(1), 1},
		{"b_nil", i64(1), nil, -1},
		{"less", i64(1), i64(2), -1},
		{"equal", i64(2), i64(2), 0},
	}
	for _, tc := range tests {
		if got := nullsLast(tc.a, tc.b, cmp); got != tc.want {
			t.Errorf("%s: nullsLast=%d, want %d", tc.name, got, tc.want)
		}
	}
}
