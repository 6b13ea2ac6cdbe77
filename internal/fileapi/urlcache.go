package fileapi

import (
	"sync"
	"time"
)

type cacheEntry struct {
	url       string
	expiresAt time.Time
}

// urlCache holds signed URLs until shortly before they expire. Lookups
// take a buffer so a URL about to lapse is treated as a miss instead of
// being handed to a download that would outlive it.
type urlCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func newURLCache() *urlCache {
	return &urlCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *urlCache) get(key string, buffer time.Duration) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.expiresAt.After(c.now().Add(buffer)) {
		return "", false
	}
	return e.url, true
}

func (c *urlCache) put(key, url string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{url: url, expiresAt: c.now().Add(ttl)}
}

func (c *urlCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// staleKeys returns keys whose entries expire within the buffer.
func (c *urlCache) staleKeys(buffer time.Duration) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(buffer)
	var keys []string
	for k, e := range c.entries {
		if !e.expiresAt.After(cutoff) {
			keys = append(keys, k)
		}
	}
	return keys
}

// sweep drops entries already past their expiry and reports how many.
func (c *urlCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if !e.expiresAt.After(now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *urlCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}
