package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payshield-service/internal/models"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	ctx := context.Background()

	_, err := c.Get(ctx, "vendor:v@x.com")
	require.ErrorIs(t, err, models.ErrCacheMiss)

	in := map[string]string{"email": "v@x.com"}
	require.NoError(t, c.Set(ctx, "vendor:v@x.com", in, time.Hour))
	in["email"] = "mutated"

	got, err := c.Get(ctx, "vendor:v@x.com")
	require.NoError(t, err)
	assert.Equal(t, "v@x.com", got["email"])

	require.NoError(t, c.Delete(ctx, "vendor:v@x.com"))
	_, err = c.Get(ctx, "vendor:v@x.com")
	assert.ErrorIs(t, err, models.ErrCacheMiss)
}

func TestMemoryCacheHonorsTTL(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "oauth:a@b.com", map[string]string{"scope": "s"}, 10*time.Millisecond))
	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, "oauth:a@b.com")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}
