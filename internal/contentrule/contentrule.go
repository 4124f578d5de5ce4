// Package contentrule precomputes content-affinity recommendations.
//
// Products sharing an identical (brand, category, sub_category) triple form
// a class; every member of a class with two or more products is recommended
// the other members. Products missing any of the three attributes, and
// classes of one, produce no rule.
package contentrule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recsys/internal/loader"
	"recsys/internal/metrics"
	"recsys/internal/storage"
)

// Rule is one content_rule row.
type Rule struct {
	ProductID   string
	Recommended []string
}

type triple struct {
	brand, category, subCategory string
}

func (t triple) hasQuote() bool {
	return strings.Contains(t.brand, "'") || strings.Contains(t.category, "'") || strings.Contains(t.subCategory, "'")
}

var (
	productIDsSQL = fmt.Sprintf("SELECT product_id FROM %s ORDER BY product_id", storage.TableProduct)

	attributesSQL = fmt.Sprintf(
		"SELECT brand, category, sub_category FROM %s"+
			" WHERE product_id = ? AND brand IS NOT NULL AND category IS NOT NULL AND sub_category IS NOT NULL",
		storage.TableProduct)

	classSQL = fmt.Sprintf(
		"SELECT product_id FROM %s WHERE brand = ? AND category = ? AND sub_category = ? ORDER BY product_id",
		storage.TableProduct)
)

// Generate derives the rules from the product table.
//
// Product ids and attribute values containing a single quote are left out
// as rule sources; a quoted id can still appear as a sibling of others.
func Generate(ctx context.Context, repo storage.Repository) ([]Rule, error) {
	idRows, err := repo.Query(ctx, productIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("content rule: list products: %w", err)
	}

	seen := make(map[triple]bool)
	var classes []triple
	for _, row := range idRows {
		id, ok := storage.AsString(row[0])
		if !ok || strings.Contains(id, "'") {
			continue
		}
		attrs, err := storage.QueryOne(ctx, repo, attributesSQL, id)
		if errors.Is(err, storage.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("content rule: attributes of %q: %w", id, err)
		}
		t, ok := toTriple(attrs)
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		classes = append(classes, t)
	}

	var rules []Rule
	for _, t := range classes {
		if t.hasQuote() {
			continue
		}
		members, err := classMembers(ctx, repo, t)
		if err != nil {
			return nil, err
		}
		if len(members) < 2 {
			continue
		}
		for i, id := range members {
			siblings := make([]string, 0, len(members)-1)
			siblings = append(siblings, members[:i]...)
			siblings = append(siblings, members[i+1:]...)
			rules = append(rules, Rule{ProductID: id, Recommended: siblings})
		}
	}
	return rules, nil
}

func toTriple(row []any) (triple, bool) {
	if len(row) < 3 {
		return triple{}, false
	}
	b, ok1 := storage.AsString(row[0])
	c, ok2 := storage.AsString(row[1])
	s, ok3 := storage.AsString(row[2])
	if !ok1 || !ok2 || !ok3 {
		return triple{}, false
	}
	return triple{brand: b, category: c, subCategory: s}, true
}

func classMembers(ctx context.Context, repo storage.Repository, t triple) ([]string, error) {
	rows, err := repo.Query(ctx, classSQL, t.brand, t.category, t.subCategory)
	if err != nil {
		return nil, fmt.Errorf("content rule: class %s/%s/%s: %w", t.brand, t.category, t.subCategory, err)
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if id, ok := storage.AsString(r[0]); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Rebuild regenerates the rules and replaces the content_rule table with
// them. It is a full rebuild, never a merge.
func Rebuild(ctx context.Context, l *loader.Loader) (res loader.Result, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep("content_rule", start, err) }()

	rules, err := Generate(ctx, l.Repo)
	if err != nil {
		return loader.Result{}, err
	}
	rows, err := Rows(l.Repo.Dialect(), rules)
	if err != nil {
		return loader.Result{}, err
	}
	return l.Replace(ctx, storage.TableContentRule, storage.ContentRuleColumns, rows)
}

// Rows encodes rules as content_rule tuples for dialect d.
func Rows(d storage.Dialect, rules []Rule) ([][]any, error) {
	rows := make([][]any, 0, len(rules))
	for _, r := range rules {
		list, err := d.EncodeList(r.Recommended)
		if err != nil {
			return nil, fmt.Errorf("content rule: encode %q: %w", r.ProductID, err)
		}
		rows = append(rows, []any{r.ProductID, list})
	}
	return rows, nil
}
