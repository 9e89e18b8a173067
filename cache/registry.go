package cache

import (
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Settings carries everything a backend factory may need
type Settings struct {
	TTL       time.Duration
	Size      int
	Dir       string
	Prefix    string
	RedisAddr string
	Logger    zerolog.Logger
}

// Factory builds a cache backend from settings
type Factory func(s Settings) (Cache, error)

// Registry manages available cache backends by name
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty backend registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry returns a registry with the built-in backends:
// ttl, lru, file, redis and tiered (lru in front of redis).
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("ttl", func(s Settings) (Cache, error) {
		return NewTTLCache(s.TTL), nil
	})
	r.Register("lru", func(s Settings) (Cache, error) {
		return NewLRUCache(s.Size, s.TTL)
	})
	r.Register("file", func(s Settings) (Cache, error) {
		return NewFileCache(s.Dir, s.TTL)
	})
	r.Register("redis", newRedisFromSettings)
	r.Register("tiered", func(s Settings) (Cache, error) {
		shared, err := newRedisFromSettings(s)
		if err != nil {
			return nil, err
		}
		local, err := NewLRUCache(s.Size, s.TTL)
		if err != nil {
			return nil, err
		}
		return NewTiered(local, shared), nil
	})
	return r
}

func newRedisFromSettings(s Settings) (Cache, error) {
	if s.RedisAddr == "" {
		return nil, fmt.Errorf("redis cache: address required")
	}
	client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
	opts := []RedisOption{WithRedisLogger(s.Logger)}
	if s.Prefix != "" {
		opts = append(opts, WithPrefix(s.Prefix))
	}
	return NewRedisCache(client, s.TTL, opts...), nil
}

// Register adds a backend to the registry, replacing one with the same name
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get retrieves a backend factory by name
func (r *Registry) Get(name string) (Factory, bool) {
	f, exists := r.factories[name]
	return f, exists
}

// Build constructs the named backend
func (r *Registry) Build(name string, s Settings) (Cache, error) {
	f, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown cache backend %q (available: %v)", name, r.List())
	}
	return f(s)
}

// List returns all registered backend names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
