package cache

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tg-chatstat-go/internal/config"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		kind string
		args []interface{}
		want string
	}{
		{"no args", "all-users", nil, "stats:all-users"},
		{"single arg", "chat", []interface{}{int64(-1001234)}, "stats:chat:-1001234"},
		{"full tuple", "top", []interface{}{int64(100), "week", 10}, "stats:top:100:week:10"},
		{"search scope", "search", []interface{}{"ivan", "global", 10}, "stats:search:ivan:global:10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.kind, tt.args...))
		})
	}
}

func TestKeyDistinctTuples(t *testing.T) {
	// every parameter difference must produce a different key
	base := Key("top", int64(100), "week", 10)
	assert.NotEqual(t, base, Key("top", int64(100), "week", 5))
	assert.NotEqual(t, base, Key("top", int64(100), "month", 10))
	assert.NotEqual(t, base, Key("top", int64(101), "week", 10))
	assert.NotEqual(t, base, Key("chat", int64(100), "week", 10))
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute, testLogger())
	ctx := context.Background()

	c.SetJSON(ctx, "stats:chat:1", map[string]int{"total": 42})

	var got map[string]int
	require.True(t, c.GetJSON(ctx, "stats:chat:1", &got))
	assert.Equal(t, 42, got["total"])
}

func TestMemoryCacheMissOnAbsentKey(t *testing.T) {
	c := NewMemoryCache(time.Minute, testLogger())

	var got map[string]int
	assert.False(t, c.GetJSON(context.Background(), "stats:chat:404", &got))
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(20*time.Millisecond, testLogger())
	ctx := context.Background()

	c.SetJSON(ctx, "stats:chat:1", 7)

	var got int
	require.True(t, c.GetJSON(ctx, "stats:chat:1", &got))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, c.GetJSON(ctx, "stats:chat:1", &got), "entry must expire after the TTL")
}

func TestMemoryCacheNoExpiryWhenTTLZero(t *testing.T) {
	c := NewMemoryCache(0, testLogger())
	ctx := context.Background()

	c.SetJSON(ctx, "stats:chat:1", 7)
	time.Sleep(30 * time.Millisecond)

	var got int
	assert.True(t, c.GetJSON(ctx, "stats:chat:1", &got))
}

func TestMemoryCacheCorruptEntryIsMiss(t *testing.T) {
	c := NewMemoryCache(time.Minute, testLogger())

	c.put("stats:chat:1", []byte("{not json"))

	var got map[string]int
	assert.False(t, c.GetJSON(context.Background(), "stats:chat:1", &got),
		"undecodable entry must fall back to a miss")
}

func TestMemoryCacheClear(t *testing.T) {
	c := NewMemoryCache(time.Minute, testLogger())
	ctx := context.Background()

	c.SetJSON(ctx, "stats:chat:1", 1)
	c.SetJSON(ctx, "stats:chat:2", 2)
	require.NoError(t, c.Clear(ctx))

	var got int
	assert.False(t, c.GetJSON(ctx, "stats:chat:1", &got))
	assert.False(t, c.GetJSON(ctx, "stats:chat:2", &got))
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	svc, err := NewService(&config.CacheConfig{Enabled: false}, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	svc.SetJSON(ctx, "stats:chat:1", 1)

	var got int
	assert.False(t, svc.GetJSON(ctx, "stats:chat:1", &got))
	assert.NoError(t, svc.Clear(ctx))
}

func TestNewServiceRejectsUnknownBackend(t *testing.T) {
	_, err := NewService(&config.CacheConfig{Enabled: true, Backend: "memcached"}, testLogger())
	assert.Error(t, err)
}

func TestNewServiceMemoryBackend(t *testing.T) {
	svc, err := NewService(&config.CacheConfig{Enabled: true, Backend: "memory", TTL: time.Minute}, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	svc.SetJSON(ctx, "stats:chat:1", "x")

	var got string
	assert.True(t, svc.GetJSON(ctx, "stats:chat:1", &got))
	assert.Equal(t, "x", got)
}
