// Package cache provides the two cache stores of the enrichment pipeline:
// a generic in-process TTL map for per-source snapshots and a redis-backed
// JSON cache for assembled reports.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// TTL is an in-process cache with per-entry expiry. Negative results are
// first-class: a cached zero value is returned with found=true until it
// expires, which keeps known-bad lookups from hammering upstream.
type TTL[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	now     func() time.Time
}

// NewTTL creates an empty TTL cache.
func NewTTL[T any]() *TTL[T] {
	return &TTL[T]{
		entries: make(map[string]entry[T]),
		now:     time.Now,
	}
}

// Get returns the cached value and whether a live entry exists.
func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value for the given lifetime. A non-positive TTL is a no-op.
func (c *TTL[T]) Set(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[T]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *TTL[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
