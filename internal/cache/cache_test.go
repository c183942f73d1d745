package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/internal/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 12, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newCache(t *testing.T, capacity int, clock *fakeClock) *cache.Cache[string] {
	t.Helper()

	c, err := cache.New[string](capacity, cache.WithClock(clock.Now))
	require.NoError(t, err)
	return c
}

var statusKey = cache.Key{Namespace: "status", Endpoint: "/api/system/status"}

func TestCacheTTLScenario(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newCache(t, 16, clock)

	stored, err := c.Put(statusKey, "playing", 5*time.Second, c.Generation("status"))
	require.NoError(t, err)
	require.True(t, stored)

	// t=3s: still fresh.
	clock.Advance(3 * time.Second)
	got, ok := c.Get(statusKey)
	require.True(t, ok)
	assert.Equal(t, "playing", got)

	// t=6s: expired, and removed on access.
	clock.Advance(3 * time.Second)
	_, ok = c.Get(statusKey)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheExpiresExactlyAtTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newCache(t, 16, clock)

	_, err := c.Put(statusKey, "idle", 2*time.Second, 0)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, ok := c.Get(statusKey)
	assert.False(t, ok)
}

func TestCachePutRejects(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newCache(t, 16, clock)

	t.Run("zero ttl disables caching", func(t *testing.T) {
		stored, err := c.Put(statusKey, "x", 0, 0)
		require.NoError(t, err)
		assert.False(t, stored)
	})

	t.Run("missing namespace is an invariant violation", func(t *testing.T) {
		stored, err := c.Put(cache.Key{Endpoint: "/api/x"}, "x", time.Second, 0)
		assert.False(t, stored)

		var invariant *fpperr.CacheInvariantError
		require.ErrorAs(t, err, &invariant)
		assert.Equal(t, "|/api/x", invariant.Key)
	})

	_, ok := c.Get(statusKey)
	assert.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newCache(t, 16, clock)

	playlists := cache.Key{Namespace: "playlist", Endpoint: "/api/playlists"}
	one := cache.Key{Namespace: "playlist", Endpoint: "/api/playlist/:name", Params: `{"name":"Show"}`}
	sequences := cache.Key{Namespace: "sequence", Endpoint: "/api/sequence"}

	for _, key := range []cache.Key{statusKey, playlists, one, sequences} {
		_, err := c.Put(key, key.Endpoint, time.Minute, 0)
		require.NoError(t, err)
	}

	removed := c.Invalidate("status", "playlist")
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get(sequences)
	assert.True(t, ok)

	assert.Equal(t, uint64(1), c.Generation("status"))
	assert.Equal(t, uint64(1), c.Generation("playlist"))
	assert.Equal(t, uint64(0), c.Generation("sequence"))

	assert.Equal(t, 0, c.Invalidate())
}

func TestCacheStaleGenerationIsDropped(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newCache(t, 16, clock)

	// A read starts and remembers the generation.
	gen := c.Generation("status")

	// A write lands while the read is in flight.
	c.Invalidate("status")

	// The read completes with pre-write data.
	stored, err := c.Put(statusKey, "stale", time.Minute, gen)
	require.NoError(t, err)
	assert.False(t, stored)

	_, ok := c.Get(statusKey)
	assert.False(t, ok)

	stored, err = c.Put(statusKey, "fresh", time.Minute, c.Generation("status"))
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestCacheLRUBound(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newCache(t, 2, clock)

	keys := make([]cache.Key, 3)
	for i := range keys {
		keys[i] = cache.Key{Namespace: "playlist", Endpoint: "/api/playlist/:name", Params: fmt.Sprintf(`{"name":"p%d"}`, i)}
	}

	_, _ = c.Put(keys[0], "p0", time.Minute, 0)
	_, _ = c.Put(keys[1], "p1", time.Minute, 0)

	// Touch p0 so p1 becomes the eviction candidate.
	_, ok := c.Get(keys[0])
	require.True(t, ok)

	_, _ = c.Put(keys[2], "p2", time.Minute, 0)

	assert.Equal(t, 2, c.Len())
	_, ok = c.Get(keys[1])
	assert.False(t, ok)
	_, ok = c.Get(keys[0])
	assert.True(t, ok)
}

func TestCachePurge(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newCache(t, 16, clock)

	gen := c.Generation("status")
	_, _ = c.Put(statusKey, "x", time.Minute, gen)

	c.Purge()

	assert.Equal(t, 0, c.Len())
	stored, err := c.Put(statusKey, "y", time.Minute, gen)
	require.NoError(t, err)
	assert.False(t, stored)
}

func TestCacheDefaultCapacity(t *testing.T) {
	t.Parallel()

	c, err := cache.New[int](0)
	require.NoError(t, err)

	for i := range cache.DefaultCapacity + 10 {
		_, _ = c.Put(cache.Key{Namespace: "n", Endpoint: fmt.Sprint(i)}, i, time.Minute, 0)
	}
	assert.Equal(t, cache.DefaultCapacity, c.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	c, err := cache.New[int](64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := cache.Key{Namespace: "status", Endpoint: fmt.Sprint(i % 5)}
			for range 100 {
				_, _ = c.Put(key, i, time.Minute, c.Generation("status"))
				_, _ = c.Get(key)
				if i%7 == 0 {
					c.Invalidate("status")
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 5)
}

func TestKeyString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "status|/api/system/status", statusKey.String())
	assert.Equal(t, `playlist|/api/playlist/:name|{"name":"a"}`,
		cache.Key{Namespace: "playlist", Endpoint: "/api/playlist/:name", Params: `{"name":"a"}`}.String())
}
