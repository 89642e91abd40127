// Package cache holds short-lived copies of folio-server market responses.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Entry is a cached response body.
type Entry struct {
	Body     []byte
	StoredAt time.Time
}

type item struct {
	entry     Entry
	expiry    time.Time
	insertIdx int64
}

// ResponseCache is a TTL cache with a bounded entry count. The oldest
// insertion is evicted first when the cache is full.
type ResponseCache struct {
	mu         sync.RWMutex
	items      map[string]item
	ttl        time.Duration
	maxEntries int
	nextIdx    int64

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache. A non-positive maxEntries disables storage.
func New(ttl time.Duration, maxEntries int) *ResponseCache {
	return &ResponseCache{
		items:      make(map[string]item),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// MakeKey builds "scope:method:path". path should include the query string.
func MakeKey(scope, method, path string) string {
	return scope + ":" + method + ":" + path
}

// Get returns a live entry for key.
func (c *ResponseCache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return Entry{}, false
	}
	if time.Now().After(it.expiry) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && time.Now().After(cur.expiry) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	return it.entry, true
}

// Set stores body under key.
func (c *ResponseCache) Set(key string, body []byte) {
	if c.maxEntries <= 0 || c.ttl <= 0 {
		return
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	it := item{
		entry:     Entry{Body: body, StoredAt: now},
		expiry:    now.Add(c.ttl),
		insertIdx: c.nextIdx,
	}
	c.nextIdx++

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxEntries {
		c.evictOldest()
	}
	c.items[key] = it
}

// InvalidatePrefix removes every key starting with prefix.
func (c *ResponseCache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
			n++
		}
	}
	return n
}

// Len reports the number of stored entries, expired or not.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats reports hit and miss counts since creation.
func (c *ResponseCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// evictOldest must be called with mu held.
func (c *ResponseCache) evictOldest() {
	var oldestKey string
	var oldestIdx int64 = -1

	for key, it := range c.items {
		if oldestIdx == -1 || it.insertIdx < oldestIdx {
			oldestIdx = it.insertIdx
			oldestKey = key
		}
	}
	if oldestIdx != -1 {
		delete(c.items, oldestKey)
	}
}
