// Package cache implements the bounded, TTL-aware response cache used by the
// FPP client.
//
// Entries are grouped by namespace. A write to the device invalidates whole
// namespaces and bumps their generation; a Put carrying a stale generation is
// dropped, so a read that raced with a write can never re-populate the cache
// with data from before the write.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/lexfrei/go-fpp/fpperr"
)

// DefaultCapacity is the number of entries kept when New is given zero.
const DefaultCapacity = 256

// Key identifies a cached response.
type Key struct {
	Namespace string
	Endpoint  string
	// Params is the canonical form of the request parameters.
	Params string
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Namespace)
	b.WriteByte('|')
	b.WriteString(k.Endpoint)
	if k.Params != "" {
		b.WriteByte('|')
		b.WriteString(k.Params)
	}
	return b.String()
}

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return !now.Before(e.storedAt.Add(e.ttl))
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now. Tests use it to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Cache is an LRU cache with per-entry TTL and per-namespace generations.
// It is safe for concurrent use.
type Cache[V any] struct {
	mu   sync.Mutex
	lru  *simplelru.LRU[Key, entry[V]]
	gens map[string]uint64
	now  func() time.Time
}

// New creates a cache holding at most capacity entries.
func New[V any](capacity int, opts ...Option) (*Cache[V], error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	lru, err := simplelru.NewLRU[Key, entry[V]](capacity, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create LRU")
	}

	return &Cache[V]{
		lru:  lru,
		gens: make(map[string]uint64),
		now:  o.now,
	}, nil
}

// Get returns the value stored under key if it has not expired. Expired
// entries are removed.
func (c *Cache[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	e, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}

	if e.expired(c.now()) {
		c.lru.Remove(key)
		return zero, false
	}

	return e.value, true
}

// Generation returns the current generation of namespace. Callers read it
// before issuing a request and hand it back to Put.
func (c *Cache[V]) Generation(namespace string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[namespace]
}

// Put stores value under key for ttl. It reports whether the value was
// stored: a non-positive ttl or a generation that no longer matches the
// namespace leaves the cache untouched.
func (c *Cache[V]) Put(key Key, value V, ttl time.Duration, generation uint64) (bool, error) {
	if key.Namespace == "" {
		return false, &fpperr.CacheInvariantError{Key: key.String(), Msg: "entry without namespace"}
	}
	if ttl <= 0 {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[key.Namespace] != generation {
		return false, nil
	}

	c.lru.Add(key, entry[V]{value: value, storedAt: c.now(), ttl: ttl})
	return true, nil
}

// Invalidate drops every entry of the given namespaces and bumps their
// generations. It returns the number of entries removed.
func (c *Cache[V]) Invalidate(namespaces ...string) int {
	if len(namespaces) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	drop := make(map[string]struct{}, len(namespaces))
	for _, ns := range namespaces {
		drop[ns] = struct{}{}
		c.gens[ns]++
	}

	removed := 0
	for _, key := range c.lru.Keys() {
		if _, ok := drop[key.Namespace]; ok {
			c.lru.Remove(key)
			removed++
		}
	}

	return removed
}

// Len returns the number of entries, expired ones included until they are
// touched.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge empties the cache. Generations of every known namespace are bumped
// so in-flight reads do not refill it.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.lru.Keys() {
		if _, ok := c.gens[key.Namespace]; !ok {
			c.gens[key.Namespace] = 0
		}
	}
	for ns := range c.gens {
		c.gens[ns]++
	}
	c.lru.Purge()
}
