package cache

import (
	"sync"
	"time"
)

// TTLCache is an unbounded in-memory map whose entries go stale after a fixed
// TTL. Stale entries are kept and reported with needsRefresh=true.
type TTLCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     Clock
	entries map[string]Entry
}

// Option configures an in-memory backend.
type Option func(*options)

type options struct {
	now Clock
}

// WithClock overrides the time source used for staleness checks.
func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewTTLCache creates an empty TTL cache. A non-positive ttl never goes stale.
func NewTTLCache(ttl time.Duration, opts ...Option) *TTLCache {
	o := buildOptions(opts)
	return &TTLCache{
		ttl:     ttl,
		now:     o.now,
		entries: make(map[string]Entry),
	}
}

// TTL returns the configured staleness threshold.
func (c *TTLCache) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// SetTTL changes the staleness threshold. Entries are kept and judged
// against the new TTL from the next Get on.
func (c *TTLCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// Get implements Cache
func (c *TTLCache) Get(key string) (*Entry, bool, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	ttl := c.ttl
	c.mu.RUnlock()
	if !ok {
		return nil, false, false
	}
	return &e, isStale(c.now(), e.FetchedAt, ttl), true
}

// Set implements Cache
func (c *TTLCache) Set(key string, entry Entry) {
	entry.FetchedAt = c.now()
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Restore implements Restorer
func (c *TTLCache) Restore(key string, entry Entry) {
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Delete implements Cache
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge implements Purger
func (c *TTLCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
}

// Len returns the number of entries, stale ones included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
