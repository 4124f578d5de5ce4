package recommend

import (
	"sort"
	"strings"
)

// Candidate is a product bought by a neighbor, with the attributes used to
// rank it. Nil attributes are NULL in the store.
type Candidate struct {
	ProductID     string
	Frequency     int64
	Stock         *int64
	Discount      *string
	RepeatProduct *bool
	FastMover     *bool
}

// RankCandidates sorts cs best first: frequency desc, stock desc, discount
// asc (lexicographic), repeat_product desc, fast_mover desc, product_id asc.
// A NULL attribute ranks after every non-NULL value of the same key.
func RankCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return compareCandidates(cs[i], cs[j]) < 0
	})
}

func compareCandidates(a, b Candidate) int {
	if a.Frequency != b.Frequency {
		if a.Frequency > b.Frequency {
			return -1
		}
		return 1
	}
	if c := nullsLast(a.Stock, b.Stock, func(x, y int64) int { return cmpInt(y, x) }); c != 0 {
		return c
	}
	if c := nullsLast(a.Discount, b.Discount, strings.Compare); c != 0 {
		return c
	}
	if c := nullsLast(a.RepeatProduct, b.RepeatProduct, func(x, y bool) int { return cmpBool(y, x) }); c != 0 {
		return c
	}
	if c := nullsLast(a.FastMover, b.FastMover, func(x, y bool) int { return cmpBool(y, x) }); c != 0 {
		return c
	}
	return strings.Compare(a.ProductID, b.ProductID)
}

func nullsLast[T any](a, b *T, cmp func(x, y T) int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp(*a, *b)
	}
}

func cmpInt(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func cmpBool(x, y bool) int {
	switch {
	case x == y:
		return 0
	case !x:
		return -1
	default:
		return 1
	}
}
