// Package djedi is a client for a djedi content service. It fetches small
// content nodes by URI, caches them with stale-while-revalidate semantics,
// coalesces concurrent requests into batches and supports a prefetch then
// hydrate flow for server side rendering.
package djedi

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/djedi-go/cache"
	"github.com/briangreenhill/djedi-go/uri"
)

const (
	DefaultBaseURL       = "http://localhost:8000/djedi"
	DefaultBatchInterval = 10 * time.Millisecond

	nodesPath = "/nodes/"
)

type settings struct {
	baseURL       string
	batchInterval time.Duration
	uri           uri.Options
}

func (s settings) clone() settings {
	s.uri = s.uri.Clone()
	return s
}

// Client owns the cache, the prefetch and rendered-node registries and the
// pending batch. It is safe for concurrent use.
type Client struct {
	http *http.Client
	log  zerolog.Logger

	mu       sync.Mutex
	settings settings
	initial  settings
	sink     Sink

	cache    cache.Cache
	cacheTTL time.Duration

	prefetchable map[string]*string
	rendered     map[string]*renderedNode
	refreshing   map[string]struct{}
	lastPrefetch map[string]string
	batch        *batch
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) { c.settings.baseURL = strings.TrimRight(raw, "/") }
}

// WithBatchInterval sets how long requests are collected before a batch is
// sent. Zero or less disables batching.
func WithBatchInterval(d time.Duration) Option {
	return func(c *Client) { c.settings.batchInterval = d }
}

// WithCache replaces the default in-memory cache.
func WithCache(cc cache.Cache) Option {
	return func(c *Client) {
		if cc != nil {
			c.cache = cc
		}
	}
}

// WithCacheTTL sets when entries of the in-memory TTL cache go stale. Any
// other backend is replaced by a TTL cache.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.applyTTL(d) }
}

func WithURIOptions(o uri.Options) Option {
	return func(c *Client) { c.settings.uri = o.Clone() }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithSink sets where the rendered-node snapshot is published.
func WithSink(s Sink) Option {
	return func(c *Client) {
		if s != nil {
			c.sink = s
		}
	}
}

// New creates a client. Without options it talks to DefaultBaseURL, batches
// for DefaultBatchInterval and caches in memory with entries that never go
// stale.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		http: http.DefaultClient,
		log:  zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger(),
		settings: settings{
			baseURL:       DefaultBaseURL,
			batchInterval: DefaultBatchInterval,
			uri:           uri.DefaultOptions(),
		},
		sink:  nopSink{},
		cache: cache.NewTTLCache(0),
	}
	for _, o := range opts {
		o(c)
	}
	if err := c.settings.uri.Separators.Validate(); err != nil {
		return nil, err
	}
	c.initial = c.settings.clone()
	c.clearLocked()
	return c, nil
}

// SetCache swaps the cache backend. Entries held by the previous backend are
// no longer visible.
func (c *Client) SetCache(cc cache.Cache) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cc == nil {
		cc = cache.NewTTLCache(c.cacheTTL)
	}
	c.cache = cc
}

// SetCacheTTL changes when cached nodes go stale. Nodes already held by the
// in-memory TTL cache, hydrated ones included, are kept. Any other backend is
// replaced by an empty TTL cache.
func (c *Client) SetCacheTTL(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyTTL(d)
}

func (c *Client) applyTTL(d time.Duration) {
	c.cacheTTL = d
	if t, ok := c.cache.(*cache.TTLCache); ok {
		t.SetTTL(d)
		return
	}
	c.cache = cache.NewTTLCache(d)
}

// SetBatchInterval changes the batch window for requests made from now on.
func (c *Client) SetBatchInterval(d time.Duration) {
	c.mu.Lock()
	c.settings.batchInterval = d
	c.mu.Unlock()
}

// SetURIOptions changes how URIs are normalized. Keys already cached under
// the previous options are not rewritten.
func (c *Client) SetURIOptions(o uri.Options) error {
	if err := o.Separators.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.settings.uri = o.Clone()
	c.mu.Unlock()
	return nil
}

// ResetOptions restores the options the client was created with.
func (c *Client) ResetOptions() {
	c.mu.Lock()
	c.settings = c.initial.clone()
	c.mu.Unlock()
}

// ResetState drops every cached node, both registries and the pending batch.
// Callbacks still waiting in the batch receive ErrReset.
func (c *Client) ResetState() {
	c.mu.Lock()
	b := c.batch
	if b.timer != nil {
		b.timer.Stop()
	}
	if p, ok := c.cache.(cache.Purger); ok {
		p.Purge()
	} else {
		c.cache = cache.NewTTLCache(c.cacheTTL)
	}
	for key := range c.rendered {
		c.sink.Unpublish(key)
	}
	c.clearLocked()
	c.mu.Unlock()

	for key, p := range b.queue {
		for _, cb := range p.callbacks {
			cb(Node{URI: key}, ErrReset)
		}
	}
}

func (c *Client) clearLocked() {
	c.prefetchable = make(map[string]*string)
	c.rendered = make(map[string]*renderedNode)
	c.refreshing = make(map[string]struct{})
	c.lastPrefetch = make(map[string]string)
	c.batch = newBatch()
}

// Normalize returns the canonical form of a node URI.
func (c *Client) Normalize(raw string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.normalizeLocked(raw)
}

func (c *Client) normalizeLocked(raw string) string {
	return c.settings.uri.Normalize(raw)
}

func (c *Client) versionlessLocked(raw string) string {
	return c.settings.uri.Versionless(raw)
}

// Get resolves a node without batching. A cached value is delivered
// synchronously; a stale one is delivered and refreshed in the background.
// On a miss the node is fetched on its own and cb is called from the fetch
// goroutine.
func (c *Client) Get(node Node, cb Callback) {
	c.mu.Lock()
	key := c.normalizeLocked(node.URI)
	if e, stale, ok := c.cache.Get(key); ok {
		if stale {
			c.refreshLocked(key, node.Value, false)
		}
		c.mu.Unlock()
		cb(valueNode(e.URI, e.Value), nil)
		return
	}
	c.mu.Unlock()

	go c.fetchOne(key, node.Value, cb)
}

// Load is the blocking form of Get. ctx only bounds the wait; the fetch
// itself carries on and still fills the cache.
func (c *Client) Load(ctx context.Context, node Node) (Node, error) {
	return wait(ctx, node, c.Get)
}

// LoadBatched is the blocking form of GetBatched.
func (c *Client) LoadBatched(ctx context.Context, node Node) (Node, error) {
	return wait(ctx, node, c.GetBatched)
}

func wait(ctx context.Context, node Node, get func(Node, Callback)) (Node, error) {
	type result struct {
		node Node
		err  error
	}
	ch := make(chan result, 1)
	get(node, func(n Node, err error) {
		ch <- result{n, err}
	})
	select {
	case r := <-ch:
		return r.node, r.err
	case <-ctx.Done():
		return Node{URI: node.URI}, ctx.Err()
	}
}

// refreshLocked schedules a silent refetch of a stale key unless one is
// already in flight. Failures are only logged since the caller already got
// the stale value.
func (c *Client) refreshLocked(key string, value *string, batched bool) {
	if _, ok := c.refreshing[key]; ok {
		return
	}
	refreshing := c.refreshing
	refreshing[key] = struct{}{}

	done := func(_ Node, err error) {
		c.mu.Lock()
		delete(refreshing, key)
		c.mu.Unlock()
		if err != nil && !errors.Is(err, ErrReset) {
			c.log.Warn().Err(err).Str("uri", key).Msg("background refresh failed")
		}
	}

	if batched {
		c.enqueueLocked(key, value, done)
		return
	}
	go c.fetchOne(key, value, done)
}

func (c *Client) fetchOne(key string, value *string, cb Callback) {
	_, resolved, err := c.fetch(context.Background(), map[string]*string{key: value})
	cb(deliver(resolved, key, err))
}

func deliver(resolved map[string]Node, key string, err error) (Node, error) {
	if err != nil {
		return Node{URI: key}, err
	}
	if n, ok := resolved[key]; ok {
		return n, nil
	}
	return Node{URI: key}, &MissingError{URI: key}
}
