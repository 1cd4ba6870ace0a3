// Package infra provides shared infrastructure components used across
// navcompare: TTL caching and logging.
package infra

import (
	"sync"
	"time"
)

// Clock returns the current time. Injected so TTL behaviour is testable.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// --- Single-value cache ---

// TTLCell holds one value together with the time it was stored.
// The value is replaced wholesale on Set and never mutated in place.
type TTLCell[T any] struct {
	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	populated bool
	ttl       time.Duration
	now       Clock
}

// NewTTLCell creates an empty cell. A nil clock uses time.Now.
func NewTTLCell[T any](ttl time.Duration, clock Clock) *TTLCell[T] {
	return &TTLCell[T]{ttl: ttl, now: orNow(clock)}
}

// Get returns the value if one is stored and younger than the TTL.
func (c *TTLCell[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero T
	if !c.populated || c.now().Sub(c.fetchedAt) >= c.ttl {
		return zero, false
	}
	return c.value, true
}

// Peek returns the stored value regardless of age.
func (c *TTLCell[T]) Peek() (T, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.fetchedAt, c.populated
}

// Set replaces the stored value and stamps it with the current time.
func (c *TTLCell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	c.fetchedAt = c.now()
	c.populated = true
	c.mu.Unlock()
}

// Invalidate empties the cell.
func (c *TTLCell[T]) Invalidate() {
	c.mu.Lock()
	var zero T
	c.value = zero
	c.fetchedAt = time.Time{}
	c.populated = false
	c.mu.Unlock()
}

// --- Keyed cache ---

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a simple thread-safe in-memory keyed cache with TTL. Expired
// entries are swept on Set, at most once per TTL.
type Cache[V any] struct {
	mu        sync.RWMutex
	entries   map[string]cacheEntry[V]
	ttl       time.Duration
	now       Clock
	nextSweep time.Time
}

// NewCache creates a new cache with the given default TTL.
func NewCache[V any](ttl time.Duration, clock Clock) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]cacheEntry[V]),
		ttl:     ttl,
		now:     orNow(clock),
	}
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	now := c.now()
	if !now.Before(c.nextSweep) {
		c.sweepLocked(now)
		c.nextSweep = now.Add(c.ttl)
	}
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate removes a key from the cache.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache[V]) sweepLocked(now time.Time) {
	for k, v := range c.entries {
		if !now.Before(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}
