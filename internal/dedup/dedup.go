package dedup

import (
	"sync"
	"time"
)

// Cache is a time-windowed set of recently seen idempotency keys.
// Entries older than the window are pruned on insert, keeping memory
// bounded under at-least-once redelivery.
type Cache struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func New(window time.Duration) *Cache {
	return &Cache{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// Contains reports whether key was added within the window.
func (c *Cache) Contains(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.seen[key]
	return ok && !at.Before(now.Add(-c.window))
}

// Add records key at time now and prunes entries outside the window.
// Callers add a key only after the record was durably handled, so a
// failed sink write stays retryable.
func (c *Cache) Add(key string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-c.window)
	for k, at := range c.seen {
		if at.Before(cutoff) {
			delete(c.seen, k)
		}
	}
	c.seen[key] = now
}

// Len reports the number of tracked keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
