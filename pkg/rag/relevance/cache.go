package relevance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// VerdictCache memoizes per-(chunk, query) verdicts so an unchanged pair
// is never judged twice. Implementations must be safe for concurrent use.
type VerdictCache interface {
	Get(ctx context.Context, key string) (relevant bool, found bool)
	Set(ctx context.Context, key string, relevant bool)
}

// CacheKey is stable across query casing and surrounding whitespace.
func CacheKey(chunkID, query string) string {
	sum := blake2b.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf("%s:%x", chunkID, sum[:8])
}

// MemoryCache is the in-process default, TTL-evicted so stale verdicts
// age out on long-running deployments.
type MemoryCache struct {
	items *cache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryCache{items: cache.New(ttl, 10*time.Minute)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (bool, bool) {
	x, found := c.items.Get(key)
	if !found {
		return false, false
	}
	return x.(bool), true
}

func (c *MemoryCache) Set(_ context.Context, key string, relevant bool) {
	c.items.Set(key, relevant, cache.DefaultExpiration)
}

// RedisCache shares verdicts across replicas. Redis errors degrade to a
// cache miss, never to a request failure.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "relevance:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) (bool, bool) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

func (c *RedisCache) Set(ctx context.Context, key string, relevant bool) {
	val := "0"
	if relevant {
		val = "1"
	}
	c.client.Set(ctx, c.prefix+key, val, c.ttl)
}
