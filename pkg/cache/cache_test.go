package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Pair string  `json:"pair"`
	Z    float64 `json:"z"`
}

func newRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedisCache(WithRedisAddr(mr.Addr()), WithRedisPrefix("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	rc, mr := newRedis(t)

	require.NoError(t, rc.Set(ctx, "snapshot:KO/PEP", point{Pair: "KO/PEP", Z: 1.25}, time.Minute))
	assert.True(t, mr.Exists("test:snapshot:KO/PEP"))

	var got point
	require.NoError(t, rc.Get(ctx, "snapshot:KO/PEP", &got))
	assert.Equal(t, point{Pair: "KO/PEP", Z: 1.25}, got)

	ok, err := rc.Exists(ctx, "snapshot:KO/PEP")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, rc.Get(ctx, "snapshot:KO/PEP", &got), ErrCacheMiss)
}

func TestMGetTypedSkipsMissing(t *testing.T) {
	ctx := context.Background()
	rc, _ := newRedis(t)

	require.NoError(t, rc.Set(ctx, "a", point{Pair: "a", Z: 1}, 0))
	require.NoError(t, rc.Set(ctx, "b", point{Pair: "b", Z: 2}, 0))
	require.NoError(t, rc.Set(ctx, "junk", "not json", 0))

	got, err := MGetTyped[point](ctx, rc, "a", "b", "missing", "junk")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2.0, got["b"].Z)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	time.Sleep(time.Millisecond)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "c", &v))
	assert.Equal(t, 3, v)
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", "v", 5*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
}

func TestLayeredCacheReadsThroughAndFillsL1(t *testing.T) {
	ctx := context.Background()
	rc, mr := newRedis(t)
	lc := NewLayeredCache(rc, WithLayeredMemoryTTL(time.Minute))

	require.NoError(t, rc.Set(ctx, "k", point{Pair: "x", Z: -3}, time.Hour))

	var got point
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, -3.0, got.Z)

	// served from L1 once Redis has lost the key
	mr.Del("test:k")
	got = point{}
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "x", got.Pair)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "signals:KO/PEP:10:20", GenerateKeyWithParams("signals", "KO/PEP", 10, 20))
	assert.Equal(t, "snapshot:KO/PEP", GenerateKey("snapshot", "KO/PEP"))
}
