package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payshield-service/internal/client"
	"payshield-service/internal/config"
	"payshield-service/internal/models"
)

// Runs against a real Redis only when PAYSHIELD_TEST_REDIS_URL is set.
func testRedisClient(t *testing.T) *client.RedisClient {
	t.Helper()
	url := os.Getenv("PAYSHIELD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PAYSHIELD_TEST_REDIS_URL not set")
	}
	cfg := config.FromEnv()
	cfg.Redis.URL = url
	rc, err := client.NewRedisClient(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func TestRecordCacheAgainstRedis(t *testing.T) {
	rc := testRedisClient(t)
	c := NewRecordCache(rc)
	ctx := context.Background()
	key := "verification:test-" + time.Now().Format("150405.000000000")
	t.Cleanup(func() { _ = c.Delete(context.Background(), key) })

	require.NoError(t, c.Ping(ctx))

	_, err := c.Get(ctx, key)
	require.ErrorIs(t, err, models.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, key, map[string]string{"id": "a1", "user_agent": "ua"}, time.Minute))
	require.NoError(t, c.Set(ctx, key, map[string]string{"id": "a1"}, time.Minute))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "a1"}, got, "rewrites drop stale fields")

	ttl, err := rc.Client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
