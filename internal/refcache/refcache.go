// Package refcache keeps the category catalog in Redis so that listing
// requests across API replicas do not reload it from the database.
package refcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ledger-core/internal/ledger"
)

const DefaultTTL = 5 * time.Minute

// RedisCatalogCache implements ledger.CatalogCache. Catalogs live under
// <prefix>:catalog:<generation>; Invalidate increments the generation
// counter, leaving older keys to expire unread.
type RedisCatalogCache struct {
	Redis  *redis.Client
	Prefix string
	TTL    time.Duration
}

func New(client *redis.Client, prefix string, ttl time.Duration) *RedisCatalogCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCatalogCache{Redis: client, Prefix: prefix, TTL: ttl}
}

func (c *RedisCatalogCache) base() string {
	if c.Prefix == "" {
		return "catalog"
	}
	return c.Prefix + ":catalog"
}

func (c *RedisCatalogCache) generationKey() string {
	return c.base() + ":gen"
}

func (c *RedisCatalogCache) key(generation int64) string {
	return c.base() + ":" + strconv.FormatInt(generation, 10)
}

func (c *RedisCatalogCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.Redis.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog generation: %w", err)
	}
	return gen, nil
}

// Get returns the catalog cached for the current generation, reporting
// false on a miss
func (c *RedisCatalogCache) Get(ctx context.Context) (*ledger.Catalog, int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	raw, err := c.Redis.Get(ctx, c.key(gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, err
	}
	var snap ledger.CatalogSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, gen, false, fmt.Errorf("failed to decode cached catalog: %w", err)
	}
	return ledger.NewCatalog(snap), gen, true, nil
}

func (c *RedisCatalogCache) Set(ctx context.Context, generation int64, catalog *ledger.Catalog) error {
	raw, err := json.Marshal(catalog.Snapshot())
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, c.key(generation), raw, c.TTL).Err()
}

func (c *RedisCatalogCache) Invalidate(ctx context.Context) error {
	return c.Redis.Incr(ctx, c.generationKey()).Err()
}
