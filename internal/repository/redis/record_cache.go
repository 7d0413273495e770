package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"payshield-service/internal/client"
	"payshield-service/internal/models"
	"payshield-service/internal/util"
)

// RecordCache stores each record as a Redis hash with a TTL on the key.
type RecordCache struct {
	client *client.RedisClient
}

func NewRecordCache(client *client.RedisClient) *RecordCache {
	return &RecordCache{client: client}
}

// Get returns the hash fields for key, or models.ErrCacheMiss when the key is absent.
func (c *RecordCache) Get(ctx context.Context, key string) (map[string]string, error) {
	fields, err := c.client.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, models.ErrCacheMiss
	}
	return fields, nil
}

// Set replaces the hash at key and sets its TTL in one transaction, so a
// record never lingers without an expiry or keeps fields from an older version.
func (c *RecordCache) Set(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, values...)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Debug("Cache write failed", zap.String("key", key), zap.Duration("ttl", ttl), zap.Error(err))
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

func (c *RecordCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete cache entries: %w", err)
	}
	return nil
}

func (c *RecordCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
