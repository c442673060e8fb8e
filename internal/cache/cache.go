// Package cache provides a small TTL cache used by the retrieval layer. It is
// an injected collaborator rather than package-level state so retrieval code
// stays testable, and it keeps expired entries around for stale fallback:
// when the backing store is unavailable, a recently expired page beats an
// error.
package cache

import (
	"sync"
	"time"
)

type item struct {
	value     any
	expiresAt time.Time
}

// Cache is a concurrency-safe TTL cache with stale fallback.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]item
	ttl      time.Duration
	staleFor time.Duration
}

// New creates a cache with the given TTL. Expired entries remain readable via
// GetStale for ten times the TTL before a later write sweeps them out.
func New(ttl time.Duration) *Cache {
	return &Cache{
		items:    make(map[string]item),
		ttl:      ttl,
		staleFor: 10 * ttl,
	}
}

// Set stores a value under the key with the cache's TTL. Writes also sweep
// entries aged past the stale window, so the map stays bounded without a
// background goroutine.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, it := range c.items {
		if now.Sub(it.expiresAt) > c.staleFor {
			delete(c.items, k)
		}
	}
	c.items[key] = item{value: value, expiresAt: now.Add(c.ttl)}
}

// Get returns a fresh value, or ok=false if the key is absent or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, exists := c.items[key]
	if !exists || time.Now().After(it.expiresAt) {
		return nil, false
	}
	return it.value, true
}

// GetStale returns a value even if expired, as long as it has not been
// cleaned up. Used as a degraded fallback when the store is unreachable.
func (c *Cache) GetStale(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, exists := c.items[key]
	if !exists {
		return nil, false
	}
	return it.value, true
}
