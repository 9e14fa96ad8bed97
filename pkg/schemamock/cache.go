package schemamock

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache guarda o JSON Schema bruto de cada interface.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (noopCache) Set(context.Context, string, []byte)        {}

// MemoryCache é um LRU com expiração por entrada.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCache cria o cache em memória. size <= 0 usa 256 entradas.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 256
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	return c.lru.Get(key)
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) {
	c.lru.Add(key, value)
}

// RedisCmdable é o subconjunto do go-redis usado pelo RedisCache.
type RedisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache compartilha os schemas entre instâncias. Falhas do Redis
// viram cache miss.
type RedisCache struct {
	client RedisCmdable
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client RedisCmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "hotmock:schema:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	_ = c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}
