package finance

import (
	"sync"
	"time"
)

// ChartCache keeps rendered PNGs for a short TTL.
type ChartCache struct {
	mu      sync.Mutex
	entries map[string]chartCacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewChartCache() *ChartCache {
	return &ChartCache{entries: map[string]chartCacheEntry{}, ttl: chartCacheTTL, now: time.Now}
}

func (c *ChartCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.createdAt.Add(c.ttl)) {
		delete(c.entries, key)
		return nil, false
	}
	img := make([]byte, len(entry.image))
	copy(img, entry.image)
	return img, true
}

// Set stores img under key and drops every expired entry.
func (c *ChartCache) Set(key string, img []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.createdAt.Add(c.ttl)) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = chartCacheEntry{createdAt: now, image: img}
}
