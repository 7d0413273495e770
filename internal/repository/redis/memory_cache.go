package redis

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"payshield-service/internal/models"
)

// MemoryCache is the in-process cache driver, selected with CACHE_DRIVER=memory.
// It is never degraded and is not shared between processes.
type MemoryCache struct {
	c *gocache.Cache
}

func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (map[string]string, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, models.ErrCacheMiss
	}
	fields, _ := v.(map[string]string)
	return cloneFields(fields), nil
}

func (m *MemoryCache) Set(_ context.Context, key string, fields map[string]string, ttl time.Duration) error {
	m.c.Set(key, cloneFields(fields), ttl)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}

func (m *MemoryCache) Ping(context.Context) error { return nil }

func cloneFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
