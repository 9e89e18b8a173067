package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache is a size and age bounded cache. Unlike TTLCache, entries older
// than maxAge are dropped instead of being served stale, so an expired key is
// a plain miss.
type LRUCache struct {
	// mu makes the expiry check and removal in Get one step with respect to Set.
	mu     sync.Mutex
	lru    *lru.Cache[string, Entry]
	maxAge time.Duration
	now    Clock
}

// NewLRUCache creates a cache holding at most size entries. A non-positive
// maxAge disables age based expiry.
func NewLRUCache(size int, maxAge time.Duration, opts ...Option) (*LRUCache, error) {
	l, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("lru cache: %w", err)
	}
	o := buildOptions(opts)
	return &LRUCache{lru: l, maxAge: maxAge, now: o.now}, nil
}

// Get implements Cache
func (c *LRUCache) Get(key string) (*Entry, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, false
	}
	if isStale(c.now(), e.FetchedAt, c.maxAge) {
		c.lru.Remove(key)
		return nil, false, false
	}
	return &e, false, true
}

// Set implements Cache
func (c *LRUCache) Set(key string, entry Entry) {
	entry.FetchedAt = c.now()
	c.Restore(key, entry)
}

// Restore implements Restorer
func (c *LRUCache) Restore(key string, entry Entry) {
	c.mu.Lock()
	c.lru.Add(key, entry)
	c.mu.Unlock()
}

// Delete implements Cache
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	c.lru.Remove(key)
	c.mu.Unlock()
}

// Purge implements Purger
func (c *LRUCache) Purge() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}

// Len returns the number of entries currently held.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}
