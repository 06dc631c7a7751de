package router

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DecisionCache stores RoutingDecisions keyed by the task-shape cache key.
// Implementations must be safe for concurrent use; the Router's cache is
// eventually consistent.
type DecisionCache interface {
	Get(key string) (RoutingDecision, bool)
	Set(key string, decision RoutingDecision, ttl time.Duration)
	Clear()
}

type memoryEntry struct {
	decision RoutingDecision
	expires  time.Time
}

// MemoryCache is the default in-process DecisionCache: a map guarded by a
// mutex, with TTL expiry applied lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get returns the cached decision if present and not expired.
func (c *MemoryCache) Get(key string) (RoutingDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return RoutingDecision{}, false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, key)
		return RoutingDecision{}, false
	}
	return entry.decision, true
}

// Set stores a decision with the given TTL.
func (c *MemoryCache) Set(key string, decision RoutingDecision, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl <= 0 {
		ttl = 3600 * time.Second
	}
	c.entries[key] = memoryEntry{decision: decision, expires: time.Now().Add(ttl)}
}

// Clear empties the cache, used for catalog reloads and weight changes.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
}

// RedisCache backs the decision cache with Redis, for hosts running more
// than one router instance sharing a cache.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps an existing redis client. keyPrefix namespaces keys
// so multiple routers can share one Redis instance.
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "orchestrator:route:"
	}
	return &RedisCache{client: client, prefix: keyPrefix}
}

func (c *RedisCache) Get(key string) (RoutingDecision, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return RoutingDecision{}, false
	}
	var decision RoutingDecision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return RoutingDecision{}, false
	}
	return decision, true
}

func (c *RedisCache) Set(key string, decision RoutingDecision, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if ttl <= 0 {
		ttl = 3600 * time.Second
	}
	raw, err := json.Marshal(decision)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.prefix+key, raw, ttl)
}

// Clear removes every key under this cache's prefix. Uses SCAN rather than
// KEYS to avoid blocking a shared Redis instance.
func (c *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		c.client.Del(ctx, keys...)
	}
}
