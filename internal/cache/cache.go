// Package cache implements the two process-local bounded caches from
// spec.md §4.8: decoded raster headers and recent point samples. Both are
// pure memoization — size- and TTL-bounded LRUs that never participate in
// correctness — built on hashicorp/golang-lru, the same bounded-LRU library
// the rest of the retrieved corpus (the H3 spatial-cache services) reaches
// for rather than a hand-rolled container/list cache.
package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry pairs a cached value with its insertion time (for TTL) and its
// approximate size in bytes (for the byte-budget eviction rule).
type entry[V any] struct {
	value     V
	storedAt  time.Time
	sizeBytes int64
}

// boundedCache is the shared shape behind HeaderCache and PointCache: an
// LRU bounded by entry count, with an additional running byte budget and a
// TTL checked on read. golang-lru already gives us entry-count eviction;
// the byte budget is enforced here by evicting the LRU tail until the
// running total fits, mirroring §4.8's "on size-cap overrun, evict until
// both limits satisfied."
type boundedCache[K comparable, V any] struct {
	mu        sync.Mutex
	lru       *lru.Cache[K, entry[V]]
	ttl       time.Duration
	maxBytes  int64
	curBytes  int64
}

func newBoundedCache[K comparable, V any](maxEntries int, maxBytes int64, ttl time.Duration) *boundedCache[K, V] {
	c := &boundedCache[K, V]{ttl: ttl, maxBytes: maxBytes}
	// NewWithEvict rather than New: the entry-count cap can itself evict the
	// LRU tail inside Add, and curBytes must shrink when that happens or it
	// drifts upward and triggers over-eager byte-budget eviction later.
	l, err := lru.NewWithEvict[K, entry[V]](maxEntries, func(_ K, evicted entry[V]) {
		c.curBytes -= evicted.sizeBytes
	})
	if err != nil {
		// maxEntries <= 0 is a caller bug (config validation should have
		// caught it), not a runtime condition worth a typed error.
		panic(fmt.Sprintf("cache: invalid capacity %d: %v", maxEntries, err))
	}
	c.lru = l
	return c
}

func (c *boundedCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if c.ttl > 0 && time.Since(e.storedAt) > c.ttl {
		c.lru.Remove(key) // triggers the evict callback, which decrements curBytes
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *boundedCache[K, V]) set(key K, value V, sizeBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(key); ok {
		c.curBytes -= old.sizeBytes
	}
	c.lru.Add(key, entry[V]{value: value, storedAt: time.Now(), sizeBytes: sizeBytes})
	c.curBytes += sizeBytes

	for c.curBytes > c.maxBytes && c.lru.Len() > 0 {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
}

func (c *boundedCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
