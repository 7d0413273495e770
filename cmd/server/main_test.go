package main

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payshield-service/internal/storage"
)

func TestHealthReportIncludesFailedDependencies(t *testing.T) {
	status := storage.HealthStatus{
		Postgres:      true,
		CacheDegraded: true,
		Timestamp:     time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	}
	report := newHealthReport(status, map[string]error{
		"redis": errors.New("dial tcp 127.0.0.1:6379: connection refused"),
		"kafka": errors.New("no brokers"),
	})

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))

	assert.Equal(t, true, out["postgres"])
	assert.Equal(t, false, out["redis"])
	assert.Equal(t, true, out["cache_degraded"])
	assert.Equal(t, map[string]interface{}{
		"redis": "dial tcp 127.0.0.1:6379: connection refused",
		"kafka": "no brokers",
	}, out["failures"])
}

func TestHealthReportOmitsFailuresWhenAllHealthy(t *testing.T) {
	report := newHealthReport(storage.HealthStatus{Redis: true, Postgres: true}, map[string]error{})

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "failures")
	assert.Nil(t, report.Failures)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"serve", "sweep", "health", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}
