// Package memcache provides an in-process implementation of the core.URLCache interface.
//
// The cache is unbounded and never evicts. Keys are content-addressed
// digests, so an entry can never go stale; the only cost of keeping it is
// memory proportional to the number of distinct requests served since
// process start.
package memcache

import "sync"

// URLCache maps cache keys to resolved public URLs. Safe for concurrent use.
type URLCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// New creates an empty URLCache.
func New() *URLCache {
	return &URLCache{
		mu:      sync.RWMutex{},
		entries: make(map[string]string),
	}
}

// Get returns the cached URL for key, if present.
func (c *URLCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	url, found := c.entries[key]

	return url, found
}

// Set records the resolved URL for key.
func (c *URLCache) Set(key, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = url
}

// Len reports the number of cached entries.
func (c *URLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
