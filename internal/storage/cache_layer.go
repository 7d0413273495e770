package storage

import (
	"context"
	"errors"
	"time"

	"payshield-service/internal/metrics"
	"payshield-service/internal/models"
	"payshield-service/internal/util"
)

// cacheLayer is the cache half of one record kind: key prefix, TTL and codec.
type cacheLayer[T any] struct {
	state  *CacheState
	record string
	prefix string
	ttl    time.Duration
	encode func(*T) map[string]string
	decode func(map[string]string) (*T, error)
}

func (c *cacheLayer[T]) key(id string) string {
	return c.prefix + id
}

// get returns the cached record, or false on miss, fault or degraded cache.
func (c *cacheLayer[T]) get(ctx context.Context, id string) (*T, bool) {
	cache, ok := c.state.Acquire()
	if !ok {
		return nil, false
	}
	opCtx, cancel := c.state.opContext(ctx)
	defer cancel()

	key := c.key(id)
	fields, err := cache.Get(opCtx, key)
	switch {
	case errors.Is(err, models.ErrCacheMiss):
		metrics.CacheMisses.WithLabelValues(c.record).Inc()
		return nil, false
	case err != nil:
		c.state.fault(ctx, "get", err)
		return nil, false
	}

	rec, err := c.decode(fields)
	if err != nil {
		// Corrupt entry: drop it and let Postgres answer.
		metrics.CacheFaults.WithLabelValues("decode").Inc()
		util.Warn("discarding undecodable cache entry", util.String("key", key), util.ErrorField(err))
		_ = cache.Delete(opCtx, key)
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(c.record).Inc()
	return rec, true
}

// put writes rec synchronously and drops any fill of id still in flight.
// Failures degrade the cache and are otherwise ignored.
func (c *cacheLayer[T]) put(ctx context.Context, id string, rec *T) {
	key := c.key(id)
	c.state.invalidate(key)
	c.write(ctx, key, rec)
}

func (c *cacheLayer[T]) write(ctx context.Context, key string, rec *T) {
	cache, ok := c.state.Acquire()
	if !ok {
		return
	}
	opCtx, cancel := c.state.opContext(ctx)
	defer cancel()
	if err := cache.Set(opCtx, key, c.encode(rec), c.ttl); err != nil {
		c.state.fault(ctx, "set", err)
	}
}

// reserve starts a fill of id. Call it before the relational read and hand the
// result to repopulate or release.
func (c *cacheLayer[T]) reserve(id string) *fill {
	if _, ok := c.state.Acquire(); !ok {
		return nil
	}
	return c.state.beginFill(c.key(id))
}

// release abandons a fill whose relational read failed.
func (c *cacheLayer[T]) release(f *fill) {
	if f != nil {
		c.state.endFill(f)
	}
}

// repopulate writes rec in the background, detached from the caller's context.
// The write is dropped if the key was written or evicted after f was reserved.
func (c *cacheLayer[T]) repopulate(f *fill, rec *T) {
	if f == nil {
		return
	}
	c.state.Go(func() {
		c.state.commitFill(f, func() {
			c.write(context.Background(), f.key, rec)
		})
	})
}
