package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisPrefix namespaces cache keys so they never mix with other users
// of the same redis database, such as the asynq queues.
const DefaultRedisPrefix = "djedi:"

// RedisCache stores entries in redis so several processes share one cache.
// Staleness follows the same TTL rule as TTLCache; keys additionally expire in
// redis after Expire (if set) so abandoned nodes do not pile up.
type RedisCache struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	expire  time.Duration
	timeout time.Duration
	now     Clock
	log     zerolog.Logger
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithPrefix namespaces every key, e.g. per environment. With an empty prefix
// Purge does nothing.
func WithPrefix(prefix string) RedisOption {
	return func(c *RedisCache) { c.prefix = prefix }
}

// WithExpire sets the hard redis expiry of each key.
func WithExpire(d time.Duration) RedisOption {
	return func(c *RedisCache) { c.expire = d }
}

// WithTimeout bounds every redis round trip.
func WithTimeout(d time.Duration) RedisOption {
	return func(c *RedisCache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRedisLogger sets the logger used for redis failures.
func WithRedisLogger(l zerolog.Logger) RedisOption {
	return func(c *RedisCache) { c.log = l }
}

// WithRedisClock overrides the time source used for staleness checks.
func WithRedisClock(now Clock) RedisOption {
	return func(c *RedisCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewRedisCache wraps an existing redis client.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		client:  client,
		prefix:  DefaultRedisPrefix,
		ttl:     ttl,
		timeout: 2 * time.Second,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements Cache. Redis errors are logged and reported as a miss.
func (c *RedisCache) Get(key string) (*Entry, bool, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("redis cache get failed")
		}
		return nil, false, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("redis cache entry corrupt")
		return nil, false, false
	}
	return &e, isStale(c.now(), e.FetchedAt, c.ttl), true
}

// Set implements Cache
func (c *RedisCache) Set(key string, entry Entry) {
	entry.FetchedAt = c.now()
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.client.Set(ctx, c.prefix+key, data, c.expire).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("redis cache set failed")
	}
}

// Delete implements Cache
func (c *RedisCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("redis cache delete failed")
	}
}

// Purge implements Purger by deleting every key under the prefix. It refuses
// to run without a prefix since that would empty the whole database.
func (c *RedisCache) Purge() {
	if c.prefix == "" {
		c.log.Warn().Msg("redis cache has no key prefix, not purging")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*c.timeout)
	defer cancel()

	var keys []string
	iter := c.client.Scan(ctx, 0, escapeGlob(c.prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn().Err(err).Msg("redis cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Int("keys", len(keys)).Msg("redis cache purge failed")
	}
}

var globReplacer = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"?", `\?`,
	"[", `\[`,
	"]", `\]`,
)

// escapeGlob quotes the characters redis MATCH patterns treat specially.
func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
