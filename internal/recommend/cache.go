package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
)

// Cache stores computed recommendation lists. A miss is ok=false with a
// nil error.
//
// Keys are scoped to the Generation current when the list was computed; a
// reload of the tables moves to a new generation, so older lists are never
// read again.
type Cache interface {
	Generation(ctx context.Context) (string, error)
	Get(ctx context.Context, key string) (ids []string, ok bool, err error)
	Set(ctx context.Context, key string, ids []string) error
}

// RedisCache keeps lists as JSON strings under Prefix+key with a TTL.
type RedisCache struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// DefaultCacheTTL is used when NewRedisCache gets ttl <= 0.
const DefaultCacheTTL = 10 * time.Minute

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis cache: empty address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisCache(rdb, ttl), nil
}

func newRedisCache(rdb *goredis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{rdb: rdb, prefix: "recsys:", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false, fmt.Errorf("redis cache: decode %s: %w", key, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err()
}

// generationKey holds a counter bumped by Invalidate.
const generationKey = "generation"

// Generation returns the current data generation, "0" before the first
// Invalidate.
func (c *RedisCache) Generation(ctx context.Context) (string, error) {
	gen, err := c.rdb.Get(ctx, c.prefix+generationKey).Result()
	if errors.Is(err, goredis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return gen, nil
}

// Invalidate starts a new data generation. Lists cached under older
// generations expire with their TTL.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, c.prefix+generationKey).Err()
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

var _ Cache = (*RedisCache)(nil)
