package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Storage metrics live in their own package so storage, handler and factory can share them.

var (
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payshield_cache_hits_total",
		Help: "Reads answered from the cache",
	}, []string{"record"})

	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payshield_cache_misses_total",
		Help: "Reads that fell through to the relational store",
	}, []string{"record"})

	CacheFaults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payshield_cache_faults_total",
		Help: "Cache operations that failed",
	}, []string{"op"})

	CacheDegraded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payshield_cache_degraded",
		Help: "1 while the cache is considered unavailable",
	})

	RelationalErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payshield_relational_errors_total",
		Help: "Relational store failures by record and operation",
	}, []string{"record", "op"})

	MaintenanceSweeps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payshield_maintenance_sweeps_total",
		Help: "Maintenance sweeps by outcome",
	}, []string{"outcome"})

	PurgedTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payshield_purged_oauth_tokens_total",
		Help: "Expired OAuth tokens deleted by maintenance",
	})

	AuditPublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payshield_audit_publish_failures_total",
		Help: "Verification attempts a sink failed to record",
	}, []string{"sink"})
)

// Register registers the storage metrics on reg (or the default registerer if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		CacheHits, CacheMisses, CacheFaults, CacheDegraded,
		RelationalErrors, MaintenanceSweeps, PurgedTokens, AuditPublishFailures,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
