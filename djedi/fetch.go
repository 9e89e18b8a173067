package djedi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/briangreenhill/djedi-go/cache"
	"github.com/briangreenhill/djedi-go/uri"
)

// FetchMany requests nodes (URI to default, nil for none) in one round trip,
// merges the response into the cache and returns it. Nodes the service
// answered with null are left out of the result.
func (c *Client) FetchMany(ctx context.Context, nodes map[string]*string) (map[string]string, error) {
	c.mu.Lock()
	normalized := make(map[string]*string, len(nodes))
	for raw, value := range nodes {
		normalized[c.normalizeLocked(raw)] = value
	}
	c.mu.Unlock()

	results, _, err := c.fetch(ctx, normalized)
	return results, err
}

// AddNodes merges a URI to value map into the cache, typically the result of
// a server side Prefetch, so the first client side reads are served warm.
func (c *Client) AddNodes(nodes map[string]string) {
	c.mu.Lock()
	c.mergeLocked(nodes, nil)
	c.mu.Unlock()
}

// fetch posts canonical keys, merges the response and returns it along with
// the nodes resolved for each requested key.
func (c *Client) fetch(ctx context.Context, nodes map[string]*string) (map[string]string, map[string]Node, error) {
	c.mu.Lock()
	baseURL := c.settings.baseURL
	c.mu.Unlock()

	results, err := c.post(ctx, baseURL+nodesPath, nodes)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	resolved := c.mergeLocked(results, nodes)
	c.mu.Unlock()
	return results, resolved, nil
}

// mergeLocked stores results under their canonical keys. A versioned result
// is also stored under its versionless key when that key is not cached yet,
// or when it was part of this request, so a refresh of one revision never
// changes a node already rendered from another. The returned map resolves
// canonical keys, versionless aliases included, to the node to deliver.
func (c *Client) mergeLocked(results map[string]string, requested map[string]*string) map[string]Node {
	exact := make(map[string]string, len(results))
	for raw, value := range results {
		exact[c.normalizeLocked(raw)] = value
	}

	keys := make([]string, 0, len(exact))
	for key := range exact {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	resolved := make(map[string]Node, len(exact))
	for _, key := range keys {
		value := exact[key]
		c.cache.Set(key, cache.Entry{URI: key, Value: value})
		resolved[key] = valueNode(key, value)
	}

	for _, key := range keys {
		u := uri.Parse(key, c.settings.uri.Separators)
		if u.Version == "" {
			continue
		}
		u.Version = ""
		bare := c.settings.uri.Stringify(u)
		if _, ok := exact[bare]; ok {
			continue
		}
		if _, wanted := requested[bare]; !wanted {
			if _, _, cached := c.cache.Get(bare); cached {
				continue
			}
		}
		value := exact[key]
		c.cache.Set(bare, cache.Entry{URI: key, Value: value})
		resolved[bare] = valueNode(key, value)
	}
	return resolved
}

func (c *Client) post(ctx context.Context, endpoint string, nodes map[string]*string) (map[string]string, error) {
	// nil defaults marshal as null so every requested key is sent.
	body, err := json.Marshal(nodes)
	if err != nil {
		return nil, fmt.Errorf("encode nodes: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Method: http.MethodPost, URL: endpoint, StatusCode: -1, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Method: http.MethodPost, URL: endpoint, StatusCode: -1, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Method: http.MethodPost, URL: endpoint, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &RequestError{
			Method:     http.MethodPost,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Err:        fmt.Errorf("%w: got %d but expected 200 <= status < 400", ErrStatus, resp.StatusCode),
		}
	}

	var out map[string]*string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &RequestError{
			Method:     http.MethodPost,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Err:        fmt.Errorf("%w: %v", ErrMalformed, err),
		}
	}

	results := make(map[string]string, len(out))
	for key, value := range out {
		if value != nil {
			results[key] = *value
		}
	}
	return results, nil
}
