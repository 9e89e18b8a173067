// Package cache provides the pluggable node cache used by the djedi client,
// with TTL-based staleness and interchangeable backends.
package cache

import (
	"time"
)

// Entry represents a cached node with metadata
type Entry struct {
	// URI is the canonical URI the value was returned under. It may carry a
	// version even when the entry is stored under the versionless key.
	URI       string    `json:"uri"`
	Value     string    `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cache is the capability the client relies on. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns the entry for key. needsRefresh is true when the entry is
	// older than the backend's TTL; stale entries are still usable. ok is
	// false on a cold miss.
	Get(key string) (entry *Entry, needsRefresh bool, ok bool)

	// Set stores entry under key, stamping FetchedAt, and overwrites any
	// previous value.
	Set(key string, entry Entry)

	// Delete removes key. Deleting a missing key is a no-op.
	Delete(key string)
}

// Restorer is implemented by caches that can store an entry as is, keeping
// its FetchedAt instead of stamping the current time.
type Restorer interface {
	Restore(key string, entry Entry)
}

// Purger is implemented by caches that can drop every entry at once.
type Purger interface {
	Purge()
}

// Clock returns the current time. Backends take one so tests can control staleness.
type Clock func() time.Time

// isStale reports whether an entry fetched at fetchedAt needs a refresh.
// A non-positive ttl never goes stale.
func isStale(now, fetchedAt time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(fetchedAt) > ttl
}
