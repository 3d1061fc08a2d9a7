// Package cache stores short-lived derived data such as query embeddings.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// RedisClient implements Client on Redis.
type RedisClient struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects using a redis:// URL or a bare host:port address
// and fails if the server does not answer a ping.
func NewRedisClient(ctx context.Context, url, prefix string) (*RedisClient, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if prefix == "" {
		prefix = "finverse:"
	}
	return &RedisClient{client: client, prefix: prefix}, nil
}

func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	return c.client.Close()
}

// MemoryClient implements Client in process memory.
type MemoryClient struct {
	cache *gocache.Cache
}

func NewMemoryClient(defaultTTL time.Duration) *MemoryClient {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &MemoryClient{cache: gocache.New(defaultTTL, defaultTTL/2)}
}

func (c *MemoryClient) Get(ctx context.Context, key string) ([]byte, error) {
	if v, found := c.cache.Get(key); found {
		return v.([]byte), nil
	}
	return nil, ErrCacheMiss
}

func (c *MemoryClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, value, ttl)
	return nil
}

func (c *MemoryClient) Close() error {
	c.cache.Flush()
	return nil
}

// New returns a Redis client when redisURL is set and reachable, otherwise an
// in-memory client. The returned error explains why Redis was not used.
func New(ctx context.Context, redisURL, prefix string, defaultTTL time.Duration) (Client, error) {
	if redisURL == "" {
		return NewMemoryClient(defaultTTL), nil
	}
	rc, err := NewRedisClient(ctx, redisURL, prefix)
	if err != nil {
		return NewMemoryClient(defaultTTL), err
	}
	return rc, nil
}
