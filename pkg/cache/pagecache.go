package cache

import (
	"sync"
	"time"

	"github.com/artforge/artforge-client/pkg/api"
)

// Page cache defaults.
const (
	DefaultPageCacheTTL     = 3 * time.Minute
	DefaultPageCacheEntries = 64
)

// PageKey identifies one fetched result page within a search.
type PageKey struct {
	Query  string
	Filter string
	Page   int
}

type pageEntry struct {
	page     api.ResultPage
	storedAt time.Time
}

// PageCache is a bounded in-memory cache of (query, page) result pages.
// Entries expire after a fixed TTL; when the entry bound is reached the
// oldest-inserted entry is evicted first. Issuing a new query clears the
// cache wholesale via Clear.
type PageCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[PageKey]pageEntry
	order      []PageKey

	// now is replaceable in tests.
	now func() time.Time
}

// NewPageCache creates a page cache. Non-positive arguments select the
// defaults.
func NewPageCache(maxEntries int, ttl time.Duration) *PageCache {
	if maxEntries <= 0 {
		maxEntries = DefaultPageCacheEntries
	}
	if ttl <= 0 {
		ttl = DefaultPageCacheTTL
	}
	return &PageCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[PageKey]pageEntry),
		now:        time.Now,
	}
}

// Get returns the cached page for key, if present and fresh.
func (c *PageCache) Get(key PageKey) (api.ResultPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		CacheMisses.WithLabelValues("memory").Inc()
		return api.ResultPage{}, false
	}

	if c.now().Sub(entry.storedAt) > c.ttl {
		c.removeLocked(key)
		CacheMisses.WithLabelValues("memory").Inc()
		return api.ResultPage{}, false
	}

	CacheHits.WithLabelValues("memory").Inc()
	return entry.page, true
}

// Put stores a page, evicting the oldest-inserted entry when full.
// Re-inserting an existing key refreshes the value but keeps its place
// in the eviction order.
func (c *PageCache) Put(key PageKey, page api.ResultPage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
			oldest := c.order[0]
			c.removeLocked(oldest)
			CacheEvictions.Inc()
		}
		c.order = append(c.order, key)
	}

	c.entries[key] = pageEntry{page: page, storedAt: c.now()}
}

// Clear drops every entry. Called when a new query supersedes the
// previous one.
func (c *PageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[PageKey]pageEntry)
	c.order = c.order[:0]
}

// Len returns the current entry count.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *PageCache) removeLocked(key PageKey) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
