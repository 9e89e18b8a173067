package cache

// Tiered puts a fast local cache in front of a shared one. Reads try the
// local tier first and copy fresh shared hits into it; writes and deletes go
// to both tiers.
type Tiered struct {
	local  Cache
	shared Cache
}

// NewTiered creates a two-level cache.
func NewTiered(local, shared Cache) *Tiered {
	return &Tiered{local: local, shared: shared}
}

// Get implements Cache
func (t *Tiered) Get(key string) (*Entry, bool, bool) {
	if e, stale, ok := t.local.Get(key); ok && !stale {
		return e, false, true
	}

	e, stale, ok := t.shared.Get(key)
	if !ok {
		return nil, false, false
	}
	// The local copy keeps the shared FetchedAt so it goes stale on the same
	// schedule. A stale entry is not copied at all.
	if !stale {
		if r, ok := t.local.(Restorer); ok {
			r.Restore(key, *e)
		} else {
			t.local.Set(key, *e)
		}
	}
	return e, stale, true
}

// Set implements Cache
func (t *Tiered) Set(key string, entry Entry) {
	t.local.Set(key, entry)
	t.shared.Set(key, entry)
}

// Delete implements Cache
func (t *Tiered) Delete(key string) {
	t.local.Delete(key)
	t.shared.Delete(key)
}

// Purge implements Purger for whichever tiers support it.
func (t *Tiered) Purge() {
	if p, ok := t.local.(Purger); ok {
		p.Purge()
	}
	if p, ok := t.shared.(Purger); ok {
		p.Purge()
	}
}
