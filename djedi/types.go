package djedi

import "github.com/briangreenhill/djedi-go/uri"

// Node is a content fragment addressed by URI. On input Value is the default
// (nil when there is none); on output it is the resolved content.
type Node struct {
	URI   string  `json:"uri"`
	Value *string `json:"value"`
}

// Callback receives the resolved node or an error. It may be called
// synchronously from the requesting goroutine or later from a timer or
// fetch goroutine.
type Callback func(Node, error)

// PrefetchOptions narrow or extend a prefetch.
type PrefetchOptions struct {
	// Filter is called with the components of each registered node's
	// canonical URI; nodes it rejects are skipped.
	Filter func(u uri.URI) bool
	// Extra nodes are always considered and never filtered.
	Extra []Node
}

// String returns a pointer to s, for building default values.
func String(s string) *string {
	return &s
}

// StringValue returns the value of p, or "" when p is nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func valueNode(key, value string) Node {
	return Node{URI: key, Value: &value}
}
