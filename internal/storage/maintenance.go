package storage

import (
	"context"
	"fmt"
	"time"

	"payshield-service/internal/metrics"
	"payshield-service/internal/util"
)

const DefaultSweepInterval = time.Hour

// ExpiredTokenPurger deletes expired OAuth tokens. OAuthTokenRepository implements it.
type ExpiredTokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// MaintenanceScheduler periodically deletes expired OAuth tokens from Postgres.
type MaintenanceScheduler struct {
	purger   ExpiredTokenPurger
	interval time.Duration
}

func NewMaintenanceScheduler(purger ExpiredTokenPurger, interval time.Duration) *MaintenanceScheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &MaintenanceScheduler{purger: purger, interval: interval}
}

// Run sweeps, then sleeps the fixed interval, until ctx is cancelled.
// A failed sweep is logged and the loop carries on.
func (m *MaintenanceScheduler) Run(ctx context.Context) {
	util.Info("maintenance scheduler started", util.Duration("interval", m.interval))
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			util.Info("maintenance scheduler stopped")
			return
		case <-timer.C:
		}
		if _, err := m.Sweep(ctx); err != nil {
			util.Error("maintenance sweep failed", util.ErrorField(err))
		}
		timer.Reset(m.interval)
	}
}

// Sweep runs one purge and reports how many tokens were deleted.
func (m *MaintenanceScheduler) Sweep(ctx context.Context) (purged int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("maintenance sweep panicked: %v", p)
		}
		if err != nil {
			metrics.MaintenanceSweeps.WithLabelValues("failure").Inc()
			return
		}
		metrics.MaintenanceSweeps.WithLabelValues("success").Inc()
		metrics.PurgedTokens.Add(float64(purged))
	}()

	purged, err = m.purger.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	util.Info("maintenance sweep completed", util.Int64("purged_oauth_tokens", purged))
	return purged, nil
}
