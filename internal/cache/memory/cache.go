// Package memory provides an in-process TTL cache implementing the
// domain.ResponseCache interface. Entries are evicted lazily on read.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/davidbz/verdant/internal/domain"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is a mutex-guarded TTL map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewCache creates a new in-memory cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value for key, evicting expired entries on read.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, domain.ErrCacheMiss
	}

	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; Set may have replaced the entry.
		if cur, still := c.entries[key]; still && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, domain.ErrCacheMiss
	}

	return e.value, nil
}

// Set stores value under key with the given TTL, overwriting any prior entry.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Delete evicts the entry for key, if any.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}
