package refcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ledger-core/internal/ledger"
)

func newCache(t *testing.T) (*RedisCatalogCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "ledger", time.Minute), mr
}

func rentCatalog() *ledger.Catalog {
	return ledger.NewCatalog(ledger.CatalogSnapshot{
		Groups:     []ledger.CategoryGroup{{ID: "g1", Name: "Living", Type: ledger.CategoryTypeExpense}},
		Categories: []ledger.Category{{ID: "c1", Name: "Rent", GroupID: "g1"}},
	})
}

func TestCatalogCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, mr := newCache(t)

	_, gen, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, gen)

	require.NoError(t, cache.Set(ctx, gen, rentCatalog()))
	assert.True(t, mr.Exists("ledger:catalog:0"))
	assert.Equal(t, time.Minute, mr.TTL("ledger:catalog:0"))

	got, _, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	cat, found := got.Lookup("c1")
	require.True(t, found)
	assert.Equal(t, "Living", cat.GroupName)
	assert.Equal(t, ledger.CategoryTypeExpense, cat.Type)

	require.NoError(t, cache.Invalidate(ctx))
	_, gen, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)
}

func TestCatalogCacheDropsLoadRacingInvalidate(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)

	_, gen, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// a writer invalidates while the reader is still loading
	require.NoError(t, cache.Invalidate(ctx))
	require.NoError(t, cache.Set(ctx, gen, rentCatalog()))

	_, _, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "catalog loaded before the invalidation must not be served")
}

func TestCatalogCacheExpires(t *testing.T) {
	ctx := context.Background()
	cache, mr := newCache(t)
	require.NoError(t, cache.Set(ctx, 0, ledger.NewCatalog(ledger.CatalogSnapshot{})))

	mr.FastForward(2 * time.Minute)
	_, _, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCatalogCacheCorruptValue(t *testing.T) {
	ctx := context.Background()
	cache, mr := newCache(t)
	require.NoError(t, mr.Set("ledger:catalog:0", "{not json"))

	_, _, ok, err := cache.Get(ctx)
	assert.Error(t, err)
	assert.False(t, ok)

	require.NoError(t, mr.Set("ledger:catalog:gen", "nope"))
	_, _, _, err = cache.Get(ctx)
	assert.Error(t, err)
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, New(nil, "", 0).TTL)
	assert.Equal(t, "catalog:3", New(nil, "", 0).key(3))
}
