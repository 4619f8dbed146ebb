package search

import (
	"container/list"
	"sync"
	"time"

	"github.com/cyans/todo-app-sub000/internal/models"
)

const (
	// DefaultCacheTTL is how long a cached result set stays valid
	DefaultCacheTTL = 5 * time.Minute
	// DefaultCacheSize is the number of result sets kept before eviction
	DefaultCacheSize = 100
)

// CacheStats reports cache occupancy at call time
type CacheStats struct {
	TotalEntries   int     `json:"totalEntries"`
	ValidEntries   int     `json:"validEntries"`
	ExpiredEntries int     `json:"expiredEntries"`
	TTLMinutes     float64 `json:"ttlMinutes"`
	MaxSize        int     `json:"maxSize"`
}

type cacheEntry struct {
	key      string
	results  []*models.Todo
	storedAt time.Time
}

// Cache memoizes search results by key. Entries expire after the TTL and, once
// the cache is full, the oldest inserted entry is evicted regardless of reads.
// Expired entries are skipped on lookup but only removed by eviction or Clear.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]*list.Element
	order   *list.List
	now     func() time.Time
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithCacheClock overrides the clock used for TTL checks
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a cache. Non-positive ttl or maxSize fall back to the defaults.
func NewCache(ttl time.Duration, maxSize int, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	c := &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the results stored under key if they have not expired
func (c *Cache) Get(key string) ([]*models.Todo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.expired(entry) {
		return nil, false
	}
	return cloneResults(entry.results), true
}

// Set stores results under key. Re-setting a key moves it to the back of the
// eviction order.
func (c *Cache) Set(key string, results []*models.Todo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}

	c.entries[key] = c.order.PushBack(&cacheEntry{
		key:      key,
		results:  cloneResults(results),
		storedAt: c.now(),
	})

	for c.order.Len() > c.maxSize {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Clear removes every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Keys returns the cached keys, oldest first
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*cacheEntry).key)
	}
	return keys
}

// Stats counts valid and expired entries against the current time
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		TotalEntries: c.order.Len(),
		TTLMinutes:   c.ttl.Minutes(),
		MaxSize:      c.maxSize,
	}
	for el := c.order.Front(); el != nil; el = el.Next() {
		if c.expired(el.Value.(*cacheEntry)) {
			stats.ExpiredEntries++
		} else {
			stats.ValidEntries++
		}
	}
	return stats
}

func (c *Cache) expired(entry *cacheEntry) bool {
	return c.now().Sub(entry.storedAt) >= c.ttl
}

func cloneResults(results []*models.Todo) []*models.Todo {
	out := make([]*models.Todo, len(results))
	for i, todo := range results {
		out[i] = todo.Clone()
	}
	return out
}
