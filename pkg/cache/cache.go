// Package cache is a small generic in-memory store with optional per-entry
// expiry.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means the entry never expires
}

type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

type Option[K comparable, V any] func(*Cache[K, V])

// WithTTL makes every entry expire ttl after it was set.
func WithTTL[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.ttl = ttl
	}
}

// WithClock replaces the time source, for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.now = now
	}
}

func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry[V]{value: value}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.entries[key] = e
}

// Get reports a miss for entries past their expiry; the janitor removes them.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Take removes and returns the entry in one step, so concurrent callers
// cannot both claim the same key. Expired entries report a miss.
func (c *Cache[K, V]) Take(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		var zero V
		return zero, false
	}

	delete(c.entries, key)
	return e.value, true
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartJanitor evicts expired entries every interval until ctx is canceled.
func (c *Cache[K, V]) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.evictExpired()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Cache[K, V]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache[K, V]) expired(e entry[V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}
