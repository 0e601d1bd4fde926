package metadata

import (
	"fmt"
	"sync"
	"time"
)

// Cache memoizes fetch results for a short window, keyed by user and URL, so
// a burst of processing does not hit the same page twice. Absence is always
// safe; entries expire after the TTL and the oldest entry is evicted once
// the capacity is reached.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

type cacheEntry struct {
	md       Metadata
	storedAt time.Time
}

// NewCache creates a cache with the given TTL and capacity.
func NewCache(ttl time.Duration, capacity int) *Cache {
	return &Cache{
		entries:  make(map[string]cacheEntry),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

func cacheKey(userID int64, pageURL string) string {
	return fmt.Sprintf("%d|%s", userID, pageURL)
}

// Get returns the cached metadata for the URL, if present and not expired.
func (c *Cache) Get(userID int64, pageURL string) (Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cacheKey(userID, pageURL)]
	if !ok {
		return Metadata{}, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, cacheKey(userID, pageURL))
		return Metadata{}, false
	}
	return entry.md, true
}

// Put stores freshly fetched metadata, evicting the oldest entry when full.
func (c *Cache) Put(userID int64, pageURL string, md Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(userID, pageURL)
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{md: md, storedAt: c.now()}
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
