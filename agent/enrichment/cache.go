package enrichment

import (
	"container/list"
	"sync"
	"time"
)

// metricsCache is a bounded LRU keyed by channel reference. Entries carry
// their own expiry so provider-sourced and fallback-sourced values can live
// under different TTLs in the same cache. Safe for concurrent use.
type metricsCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	now      func() time.Time
}

type cacheEntry struct {
	key       string
	metrics   ChannelMetrics
	expiresAt time.Time
}

func newMetricsCache(capacity int) *metricsCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &metricsCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
}

// Get returns the cached metrics for key if present and not expired.
// Expired entries are evicted on access.
func (c *metricsCache) Get(key string) (ChannelMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return ChannelMetrics{}, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return ChannelMetrics{}, false
	}
	c.order.MoveToFront(el)
	return entry.metrics, true
}

// Put stores metrics under key for ttl, evicting the least recently used
// entry when the cache is full.
func (c *metricsCache) Put(key string, m ChannelMetrics, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(ttl)
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.metrics = m
		entry.expiresAt = expires
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, metrics: m, expiresAt: expires})
}

// Len reports the number of live entries, counting expired ones that have
// not been touched yet.
func (c *metricsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
