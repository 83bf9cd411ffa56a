package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/config"
)

// Service is the cache-aside primitive memoizing aggregation queries.
// Reads are fail-open: any backend or decode error counts as a miss and the
// caller falls back to the store. Writes are best-effort: errors are logged
// and dropped so cache availability never affects the caller.
type Service interface {
	// GetJSON unmarshals the cached value into dest and reports a hit.
	GetJSON(ctx context.Context, key string, dest interface{}) bool
	// SetJSON stores the value under the service-wide TTL.
	SetJSON(ctx context.Context, key string, value interface{})
	// Clear drops every cached entry.
	Clear(ctx context.Context) error
}

const keyPrefix = "stats"

// Key derives a deterministic cache key from a resource kind and the full
// parameter tuple of the query, e.g. Key("top", 100, "week", 10) ->
// "stats:top:100:week:10". Distinct tuples map to distinct keys; callers
// lower-case free-text arguments before passing them in.
func Key(kind string, args ...interface{}) string {
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, keyPrefix, kind)
	for _, arg := range args {
		parts = append(parts, fmt.Sprintf("%v", arg))
	}
	return strings.Join(parts, ":")
}

// NewService builds the configured cache backend. A disabled cache degrades
// to a permanent miss so every query goes to the store.
func NewService(cfg *config.CacheConfig, logger *logrus.Logger) (Service, error) {
	if !cfg.Enabled {
		return &disabledCache{}, nil
	}

	switch cfg.Backend {
	case "redis":
		return NewRedisCache(cfg, logger)
	case "memory":
		return NewMemoryCache(cfg.TTL, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// RedisCache stores JSON-serialized entries in redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRedisCache(cfg *config.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl < 0 {
		ttl = 0 // redis treats 0 as no expiration
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache read failed, treating as miss")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cached value unreadable, treating as miss")
		return false
	}

	return true
}

func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to serialize cache value")
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func (c *RedisCache) Clear(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}

// MemoryCache is the in-process backend for single-instance deployments.
// Values are kept JSON-serialized so both backends behave identically.
type MemoryCache struct {
	cache  *gocache.Cache
	logger *logrus.Logger
}

func NewMemoryCache(ttl time.Duration, logger *logrus.Logger) *MemoryCache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryCache{
		cache:  gocache.New(ttl, 10*time.Minute),
		logger: logger,
	}
}

func (c *MemoryCache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	val, found := c.cache.Get(key)
	if !found {
		return false
	}

	data, ok := val.([]byte)
	if !ok {
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cached value unreadable, treating as miss")
		return false
	}

	return true
}

func (c *MemoryCache) SetJSON(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to serialize cache value")
		return
	}

	c.cache.SetDefault(key, data)
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.cache.Flush()
	return nil
}

// put exists for tests that need to plant a raw entry.
func (c *MemoryCache) put(key string, raw []byte) {
	c.cache.SetDefault(key, raw)
}

type disabledCache struct{}

func (disabledCache) GetJSON(ctx context.Context, key string, dest interface{}) bool { return false }
func (disabledCache) SetJSON(ctx context.Context, key string, value interface{})     {}
func (disabledCache) Clear(ctx context.Context) error                                { return nil }
