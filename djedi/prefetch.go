package djedi

import (
	"context"

	"github.com/briangreenhill/djedi-go/uri"
)

// ReportPrefetchableNode registers a node that Prefetch should load. The last
// reported default wins; when it differs from the previous one the cached
// value is dropped so the next prefetch or read fetches it again.
func (c *Client) ReportPrefetchableNode(node Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.normalizeLocked(node.URI)
	if prev, ok := c.prefetchable[key]; ok && !sameValue(prev, node.Value) {
		c.cache.Delete(key)
	}
	c.prefetchable[key] = node.Value
}

// Prefetch fetches, in one request, every registered node that is not cached
// or is stale plus any extra nodes in the same state. When nothing needs
// fetching no request is made and the result of the last prefetch is
// returned, so a server render and the following client render see the same
// map.
func (c *Client) Prefetch(ctx context.Context, opts PrefetchOptions) (map[string]string, error) {
	c.mu.Lock()
	sep := c.settings.uri.Separators
	candidates := make(map[string]*string)
	for key, value := range c.prefetchable {
		if c.needsFetchLocked(key) {
			candidates[key] = value
		}
	}
	extra := make(map[string]*string)
	for _, n := range opts.Extra {
		key := c.normalizeLocked(n.URI)
		if c.needsFetchLocked(key) {
			extra[key] = n.Value
		}
	}
	c.mu.Unlock()

	nodes := make(map[string]*string, len(candidates)+len(extra))
	for key, value := range candidates {
		if opts.Filter == nil || opts.Filter(uri.Parse(key, sep)) {
			nodes[key] = value
		}
	}
	for key, value := range extra {
		nodes[key] = value
	}

	if len(nodes) == 0 {
		return c.LastPrefetch(), nil
	}

	results, _, err := c.fetch(ctx, nodes)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lastPrefetch = copyValues(results)
	c.mu.Unlock()
	return results, nil
}

// LastPrefetch returns the result of the most recent prefetch that made a
// request, or an empty map.
func (c *Client) LastPrefetch() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyValues(c.lastPrefetch)
}

// Snapshot returns the cached values of the given nodes, keyed by canonical
// URI, for handing to AddNodes in another process. A node cached from a
// versioned result is also listed under its versioned URI.
func (c *Client) Snapshot(uris []string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(uris))
	for _, raw := range uris {
		key := c.normalizeLocked(raw)
		e, _, ok := c.cache.Get(key)
		if !ok {
			continue
		}
		out[key] = e.Value
		if e.URI != "" && e.URI != key {
			out[e.URI] = e.Value
		}
	}
	return out
}

func (c *Client) needsFetchLocked(key string) bool {
	_, stale, ok := c.cache.Get(key)
	return !ok || stale
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyValues(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
