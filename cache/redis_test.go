package cache

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis cache test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCache(t *testing.T) {
	client := newTestRedis(t)
	prefix := "djedi-test:" + uuid.NewString() + ":"

	c := NewRedisCache(client, time.Minute, WithPrefix(prefix), WithExpire(time.Minute))
	t.Cleanup(c.Purge)
	contractTest(t, c)
}

func TestRedisCacheStalenessAndPurge(t *testing.T) {
	client := newTestRedis(t)
	prefix := "djedi-test:" + uuid.NewString() + ":"
	clock := newFakeClock()

	c := NewRedisCache(client, time.Minute, WithPrefix(prefix), WithRedisClock(clock.Now))
	c.Set("a", Entry{URI: "a", Value: "1"})
	c.Set("b", Entry{URI: "b", Value: "2"})

	clock.Advance(2 * time.Minute)
	e, stale, ok := c.Get("a")
	require.True(t, ok)
	assert.True(t, stale)
	assert.Equal(t, "1", e.Value)

	c.Purge()
	_, _, ok = c.Get("a")
	assert.False(t, ok)
	_, _, ok = c.Get("b")
	assert.False(t, ok)
}

// recordingHook captures commands instead of sending them, so key handling
// can be checked without a redis server.
type recordingHook struct {
	mu   sync.Mutex
	cmds [][]interface{}
}

func (h *recordingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("offline")
	}
}

func (h *recordingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		h.cmds = append(h.cmds, cmd.Args())
		h.mu.Unlock()
		return errors.New("offline")
	}
}

func (h *recordingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		return errors.New("offline")
	}
}

func (h *recordingHook) commands() [][]interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]interface{}(nil), h.cmds...)
}

func newOfflineRedis(t *testing.T) (*redis.Client, *recordingHook) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	hook := &recordingHook{}
	client.AddHook(hook)
	t.Cleanup(func() { _ = client.Close() })
	return client, hook
}

func TestRedisCacheDefaultPrefix(t *testing.T) {
	client, hook := newOfflineRedis(t)
	c := NewRedisCache(client, time.Minute)

	c.Delete("i18n://en-us@a.txt")
	cmds := hook.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, []interface{}{"del", "djedi:i18n://en-us@a.txt"}, cmds[0])
}

func TestRedisCachePurgeWithoutPrefixIsRefused(t *testing.T) {
	client, hook := newOfflineRedis(t)
	c := NewRedisCache(client, time.Minute, WithPrefix(""))

	c.Purge()
	assert.Empty(t, hook.commands(), "purging without a prefix must not touch redis")
}

func TestRedisCachePurgeEscapesPrefix(t *testing.T) {
	client, hook := newOfflineRedis(t)
	c := NewRedisCache(client, time.Minute, WithPrefix(`site[1]*?\:`))

	c.Purge()
	cmds := hook.commands()
	require.NotEmpty(t, cmds)
	assert.Equal(t, "scan", cmds[0][0])
	assert.Contains(t, cmds[0], `site\[1\]\*\?\\:*`)
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"djedi:", "djedi:"},
		{"a*b", `a\*b`},
		{"a?b", `a\?b`},
		{"[x]", `\[x\]`},
		{`a\b`, `a\\b`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeGlob(tt.in), tt.in)
	}
}
