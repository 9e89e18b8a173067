// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/briangreenhill/djedi-go/cache"
	"github.com/briangreenhill/djedi-go/djedi"
	"github.com/briangreenhill/djedi-go/uri"
)

// Config holds all application configuration
type Config struct {
	BaseURL       string        `env:"DJEDI_BASE_URL" envDefault:"http://localhost:8000/djedi"`
	BatchInterval time.Duration `env:"DJEDI_BATCH_INTERVAL" envDefault:"10ms"`
	URIConfig     string        `env:"DJEDI_URI_CONFIG"`
	Cache         CacheConfig   `envPrefix:"DJEDI_CACHE_"`

	RedisAddr string `env:"REDIS_ADDR"`
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// URI is read from URIConfig, or the defaults when unset
	URI uri.Options
}

// CacheConfig selects and sizes the node cache backend
type CacheConfig struct {
	Backend string        `env:"BACKEND" envDefault:"ttl"`
	TTL     time.Duration `env:"TTL" envDefault:"20s"`
	Size    int           `env:"SIZE" envDefault:"1000"`
	Dir     string        `env:"DIR"`
	Prefix  string        `env:"PREFIX" envDefault:"djedi:"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.URI = uri.DefaultOptions()
	if cfg.URIConfig != "" {
		opts, err := LoadURIOptions(cfg.URIConfig)
		if err != nil {
			return nil, err
		}
		cfg.URI = opts
	}
	return cfg, nil
}

type uriFile struct {
	URI uri.Options `yaml:"uri"`
}

// LoadURIOptions reads a YAML file of the form
//
//	uri:
//	  defaults: {scheme: i18n, ext: txt}
//	  namespaceByScheme: {i18n: "{lang}-us"}
//	  separators: {scheme: "://", namespace: "@", path: "/", ext: ".", version: "#"}
//	  placeholders: {lang: en}
//
// Keys left out keep their default values.
func LoadURIOptions(path string) (uri.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return uri.Options{}, fmt.Errorf("read uri config: %w", err)
	}

	f := uriFile{URI: uri.DefaultOptions()}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return uri.Options{}, fmt.Errorf("parse uri config %s: %w", path, err)
	}
	return f.URI, nil
}

// HasRedis returns true if a redis address is configured
func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

// Validate rejects configurations the client or the binaries cannot run with
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("DJEDI_BASE_URL must not be empty")
	}

	backends := cache.DefaultRegistry().List()
	if !slices.Contains(backends, c.Cache.Backend) {
		return fmt.Errorf("unknown DJEDI_CACHE_BACKEND %q (available: %v)", c.Cache.Backend, backends)
	}
	if (c.Cache.Backend == "redis" || c.Cache.Backend == "tiered") && !c.HasRedis() {
		return fmt.Errorf("DJEDI_CACHE_BACKEND=%s requires REDIS_ADDR", c.Cache.Backend)
	}
	// An unprefixed cache shares its keyspace with the asynq queues
	if (c.Cache.Backend == "redis" || c.Cache.Backend == "tiered") && c.Cache.Prefix == "" {
		return fmt.Errorf("DJEDI_CACHE_BACKEND=%s requires a non-empty DJEDI_CACHE_PREFIX", c.Cache.Backend)
	}
	if c.Cache.Size <= 0 && (c.Cache.Backend == "lru" || c.Cache.Backend == "tiered") {
		return fmt.Errorf("DJEDI_CACHE_SIZE must be positive, got %d", c.Cache.Size)
	}

	if err := c.URI.Separators.Validate(); err != nil {
		return err
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the configured log level, info if it cannot be parsed
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewCache builds the configured cache backend
func (c *Config) NewCache(log zerolog.Logger) (cache.Cache, error) {
	return cache.DefaultRegistry().Build(c.Cache.Backend, cache.Settings{
		TTL:       c.Cache.TTL,
		Size:      c.Cache.Size,
		Dir:       c.Cache.Dir,
		Prefix:    c.Cache.Prefix,
		RedisAddr: c.RedisAddr,
		Logger:    log,
	})
}

// NewClient builds a djedi client from the configuration. Extra options are
// applied last.
func (c *Config) NewClient(log zerolog.Logger, extra ...djedi.Option) (*djedi.Client, error) {
	cc, err := c.NewCache(log)
	if err != nil {
		return nil, err
	}
	opts := []djedi.Option{
		djedi.WithBaseURL(c.BaseURL),
		djedi.WithBatchInterval(c.BatchInterval),
		djedi.WithURIOptions(c.URI),
		djedi.WithCache(cc),
		djedi.WithLogger(log),
	}
	return djedi.New(append(opts, extra...)...)
}
