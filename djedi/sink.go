package djedi

import (
	"sync"

	"github.com/rs/zerolog"
)

// Sink receives the rendered-node snapshot, keyed by versionless canonical
// URI, as nodes appear on and disappear from screen. Editing tools read it to
// know which defaults are currently displayed.
type Sink interface {
	Publish(uri string, value *string)
	Unpublish(uri string)
}

// MapSink keeps the snapshot in memory.
type MapSink struct {
	mu    sync.RWMutex
	nodes map[string]*string
}

func NewMapSink() *MapSink {
	return &MapSink{nodes: make(map[string]*string)}
}

func (s *MapSink) Publish(uri string, value *string) {
	s.mu.Lock()
	s.nodes[uri] = value
	s.mu.Unlock()
}

func (s *MapSink) Unpublish(uri string) {
	s.mu.Lock()
	delete(s.nodes, uri)
	s.mu.Unlock()
}

// Snapshot returns a copy of the published nodes.
func (s *MapSink) Snapshot() map[string]*string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*string, len(s.nodes))
	for k, v := range s.nodes {
		out[k] = v
	}
	return out
}

// LogSink writes snapshot changes to a logger.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Publish(uri string, value *string) {
	ev := s.Log.Info().Str("uri", uri)
	if value != nil {
		ev = ev.Str("default", *value)
	}
	ev.Msg("node rendered")
}

func (s LogSink) Unpublish(uri string) {
	s.Log.Info().Str("uri", uri).Msg("node removed")
}

type nopSink struct{}

func (nopSink) Publish(string, *string) {}
func (nopSink) Unpublish(string)        {}
