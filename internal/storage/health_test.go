package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"payshield-service/internal/testutil"
)

func TestHealthBothReachable(t *testing.T) {
	cache := testutil.NewMockCache()
	store := testutil.NewMockStore()
	h := NewHealthReporter(NewCacheState(cache, time.Second), store)

	status := h.Check(context.Background())
	assert.True(t, status.Redis)
	assert.True(t, status.Postgres)
	assert.False(t, status.CacheDegraded)
	assert.WithinDuration(t, time.Now(), status.Timestamp, time.Minute)
}

func TestHealthReportsEachDependencyIndependently(t *testing.T) {
	cache := testutil.NewMockCache()
	cache.SetErrors(nil, nil, errors.New("refused"))
	store := testutil.NewMockStore()
	state := NewCacheState(cache, time.Second)
	h := NewHealthReporter(state, store)

	status := h.Check(context.Background())
	assert.False(t, status.Redis)
	assert.True(t, status.Postgres)
	assert.True(t, status.CacheDegraded)

	cache.SetErrors(nil, nil, nil)
	store.PingErr = errors.New("too many connections")
	status = h.Check(context.Background())
	assert.True(t, status.Redis)
	assert.False(t, status.Postgres)
	assert.False(t, status.CacheDegraded, "a successful probe recovers the cache")
}
