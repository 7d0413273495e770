package storage

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"payshield-service/internal/util"
)

const probeTimeout = 2 * time.Second

// HealthStatus is a point-in-time reachability snapshot.
type HealthStatus struct {
	Redis         bool      `json:"redis"`
	Postgres      bool      `json:"postgres"`
	CacheDegraded bool      `json:"cache_degraded"`
	Timestamp     time.Time `json:"timestamp"`
}

// HealthReporter probes both layers independently.
type HealthReporter struct {
	cache    *CacheState
	postgres Pinger
	now      func() time.Time
}

func NewHealthReporter(cache *CacheState, postgres Pinger) *HealthReporter {
	return &HealthReporter{cache: cache, postgres: postgres, now: time.Now}
}

// Check never fails: an unreachable dependency is reported as false.
// The cache probe also updates the shared degraded flag.
func (h *HealthReporter) Check(ctx context.Context) HealthStatus {
	var status HealthStatus
	var g errgroup.Group

	g.Go(func() error {
		if err := h.cache.Probe(ctx); err != nil {
			util.Warn("cache health probe failed", util.ErrorField(err))
			return nil
		}
		status.Redis = true
		return nil
	})
	g.Go(func() error {
		if h.postgres == nil {
			return nil
		}
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := h.postgres.Ping(pctx); err != nil {
			util.Warn("postgres health probe failed", util.ErrorField(err))
			return nil
		}
		status.Postgres = true
		return nil
	})
	_ = g.Wait()

	status.CacheDegraded = h.cache.Degraded()
	status.Timestamp = h.now().UTC()
	return status
}
