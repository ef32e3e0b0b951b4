package services

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cooldown grants at most one acquisition per key per ttl.
type Cooldown interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryCooldown is process-local; use RedisCooldown when several replicas run the watcher.
type MemoryCooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{until: map[string]time.Time{}, now: time.Now}
}

func (c *MemoryCooldown) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if t, ok := c.until[key]; ok && now.Before(t) {
		return false, nil
	}
	c.until[key] = now.Add(ttl)
	for k, t := range c.until {
		if !now.Before(t) && k != key {
			delete(c.until, k)
		}
	}
	return true, nil
}

type RedisCooldown struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewRedisCooldown(rdb goredis.UniversalClient, prefix string) *RedisCooldown {
	if prefix == "" {
		prefix = "admissions:cooldown:"
	}
	return &RedisCooldown{rdb: rdb, prefix: prefix}
}

// Acquire uses SET NX with expiry so replicas share one window per key.
func (c *RedisCooldown) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, c.prefix+key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
}
