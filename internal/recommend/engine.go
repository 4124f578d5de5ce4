// Package recommend answers recommendation requests from the relational
// store.
//
// The content path reads the precomputed content_rule table. The profile
// path is collaborative: it finds the profiles whose orders overlap most
// with the target's and ranks what they bought that the target has not.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recsys/internal/logging"
	"recsys/internal/metrics"
	"recsys/internal/storage"
)

// Engine serves recommendations. Cache is optional.
type Engine struct {
	Repo  storage.Repository
	Cache Cache
}

// New returns an engine without a cache.
func New(repo storage.Repository) *Engine {
	return &Engine{Repo: repo}
}

var contentSQL = fmt.Sprintf("SELECT recommended_product_ids FROM %s WHERE product_id = ?", storage.TableContentRule)

// ContentRecommendations returns at most amount ids from the product's
// content rule, in stored order. Unknown products and amount <= 0 yield an
// empty slice.
func (e *Engine) ContentRecommendations(ctx context.Context, productID string, amount int) (ids []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordRecommend("content", start, err) }()

	if amount <= 0 {
		return []string{}, nil
	}
	row, err := storage.QueryOne(ctx, e.Repo, contentSQL, productID)
	if errors.Is(err, storage.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("content recommendations for %q: %w", productID, err)
	}
	list, err := storage.DecodeList(row[0])
	if err != nil {
		return nil, fmt.Errorf("content recommendations for %q: %w", productID, err)
	}
	if len(list) > amount {
		list = list[:amount]
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// ProfileRecommendations returns at most amount products for profileID,
// drawn from what its comparativeUsers nearest neighbors ordered.
//
// Neighbors are profiles with at least one order of a product the target
// ordered, scored by how many such orders they have; ties go to the lower
// profile_id. Products the target already ordered are never returned.
func (e *Engine) ProfileRecommendations(ctx context.Context, profileID string, comparativeUsers, amount int) (ids []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordRecommend("profile", start, err) }()

	if comparativeUsers <= 0 || amount <= 0 {
		return []string{}, nil
	}

	var key string
	if e.Cache != nil {
		gen, cerr := e.Cache.Generation(ctx)
		if cerr != nil {
			logging.Warn().Err(cerr).Msg("recommend cache generation failed; bypassing cache")
		} else {
			key = profileCacheKey(gen, profileID, comparativeUsers, amount)
			cached, ok, cerr := e.Cache.Get(ctx, key)
			if cerr != nil {
				logging.Warn().Err(cerr).Str("key", key).Msg("recommend cache get failed")
			} else if ok {
				return cached, nil
			}
		}
	}

	ids, err = e.profileRecommendations(ctx, profileID, comparativeUsers, amount)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if cerr := e.Cache.Set(ctx, key, ids); cerr != nil {
			logging.Warn().Err(cerr).Str("key", key).Msg("recommend cache set failed")
		}
	}
	return ids, nil
}

func (e *Engine) profileRecommendations(ctx context.Context, profileID string, comparativeUsers, amount int) ([]string, error) {
	owned, err := e.Repo.Query(ctx, ownedProductsSQL, profileID)
	if err != nil {
		return nil, fmt.Errorf("profile recommendations for %q: products: %w", profileID, err)
	}
	if len(owned) == 0 {
		return []string{}, nil
	}

	neighbors, err := e.Neighbors(ctx, profileID, comparativeUsers)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return []string{}, nil
	}

	cands, err := e.Candidates(ctx, profileID, neighbors)
	if err != nil {
		return nil, err
	}
	RankCandidates(cands)

	if len(cands) > amount {
		cands = cands[:amount]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ProductID
	}
	return out, nil
}

// ownedSubquery lists the products ordered in the target's sessions. Its
// single parameter is the target profile id.
var ownedSubquery = fmt.Sprintf(
	"SELECT o2.product_id FROM %s s2 JOIN %s o2 ON s2.session_id = o2.session_id WHERE s2.profile_id = ?",
	storage.TableSessions, storage.TableOrdered)

var ownedProductsSQL = fmt.Sprintf(
	"SELECT DISTINCT o.product_id FROM %s s JOIN %s o ON s.session_id = o.session_id WHERE s.profile_id = ?",
	storage.TableSessions, storage.TableOrdered)

// Neighbor is a profile scored by its overlap with the target.
type Neighbor struct {
	ProfileID string
	Score     int64
}

// Neighbors returns the k profiles whose orders overlap most with
// profileID's, best first.
func (e *Engine) Neighbors(ctx context.Context, profileID string, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	q := fmt.Sprintf(
		"SELECT s.profile_id, COUNT(o.product_id) AS total"+
			" FROM %s s JOIN %s o ON s.session_id = o.session_id"+
			" WHERE o.product_id IN (%s) AND s.profile_id <> ?"+
			" GROUP BY s.profile_id"+
			" ORDER BY total DESC, s.profile_id ASC%s",
		storage.TableSessions, storage.TableOrdered, ownedSubquery, e.Repo.Dialect().Limit(k))

	rows, err := e.Repo.Query(ctx, q, profileID, profileID)
	if err != nil {
		return nil, fmt.Errorf("profile recommendations for %q: neighbors: %w", profileID, err)
	}
	out := make([]Neighbor, 0, len(rows))
	for _, r := range rows {
		id, ok := storage.AsString(r[0])
		if !ok {
			continue
		}
		n, _ := storage.AsInt64(r[1])
		out = append(out, Neighbor{ProfileID: id, Score: n})
	}
	return out, nil
}

// Candidates returns the products ordered by neighbors that profileID has
// not ordered, with their frequency among the neighbors' order lines.
// The result is unranked.
func (e *Engine) Candidates(ctx context.Context, profileID string, neighbors []Neighbor) ([]Candidate, error) {
	if len(neighbors) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(
		"SELECT p.product_id, COUNT(s.profile_id) AS freq, p.stock, p.discount, p.repeat_product, p.fast_mover"+
			" FROM %s s JOIN %s o ON s.session_id = o.session_id JOIN %s p ON p.product_id = o.product_id"+
			" WHERE s.profile_id IN (%s) AND o.product_id NOT IN (%s)"+
			" GROUP BY p.product_id, p.stock, p.discount, p.repeat_product, p.fast_mover",
		storage.TableSessions, storage.TableOrdered, storage.TableProduct,
		storage.Placeholders(len(neighbors)), ownedSubquery)

	args := make([]any, 0, len(neighbors)+1)
	for _, n := range neighbors {
		args = append(args, n.ProfileID)
	}
	args = append(args, profileID)

	rows, err := e.Repo.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("profile recommendations for %q: candidates: %w", profileID, err)
	}
	out := make([]Candidate, 0, len(rows))
	for _, r := range rows {
		c, ok := scanCandidate(r)
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func scanCandidate(r []any) (Candidate, bool) {
	if len(r) < 6 {
		return Candidate{}, false
	}
	id, ok := storage.AsString(r[0])
	if !ok {
		return Candidate{}, false
	}
	c := Candidate{ProductID: id}
	c.Frequency, _ = storage.AsInt64(r[1])
	if n, ok := storage.AsInt64(r[2]); ok {
		c.Stock = &n
	}
	if s, ok := storage.AsString(r[3]); ok {
		c.Discount = &s
	}
	if b, ok := storage.AsBool(r[4]); ok {
		c.RepeatProduct = &b
	}
	if b, ok := storage.AsBool(r[5]); ok {
		c.FastMover = &b
	}
	return c, true
}

func profileCacheKey(gen, profileID string, k, n int) string {
	return strings.Join([]string{"profile", gen, profileID, fmt.Sprint(k), fmt.Sprint(n)}, ":")
}
