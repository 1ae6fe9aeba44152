package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Memory is a process-local string cache. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[key]
	return value, ok
}

func (m *Memory) Set(_ context.Context, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

// Redis caches entries in a shared Redis instance so resolutions survive
// restarts and are shared across replicas. Cache misses on Redis errors are
// reported as plain misses; the caller falls through to the real lookup.
type Redis struct {
	logger *slog.Logger
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(logger *slog.Logger, client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{logger: logger, client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.WarnContext(ctx, "Redis cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	return value, true
}

func (r *Redis) Set(ctx context.Context, key, value string) {
	if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "Redis cache write failed", "key", key, "error", err)
	}
}
