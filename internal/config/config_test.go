package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/payshield")

	cfg := FromEnv()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 20, cfg.Redis.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.Redis.ProbeInterval)
	assert.Equal(t, 5, cfg.Postgres.MinConns)
	assert.Equal(t, 20, cfg.Postgres.MaxConns)
	assert.Equal(t, 60*time.Second, cfg.Postgres.CommandTimeout)
	assert.Equal(t, time.Hour, cfg.Storage.OAuthTTL)
	assert.Equal(t, time.Hour, cfg.Storage.VendorTTL)
	assert.Equal(t, 24*time.Hour, cfg.Storage.VerificationTTL)
	assert.Equal(t, time.Hour, cfg.Storage.SweepInterval)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/payshield")
	t.Setenv("CACHE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MAINTENANCE_SWEEP_INTERVAL", "15m")
	t.Setenv("DATABASE_MAX_CONNS", "not-a-number")

	cfg := FromEnv()

	assert.Equal(t, "memory", cfg.Redis.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.Storage.SweepInterval)
	assert.Equal(t, 20, cfg.Postgres.MaxConns, "unparseable values fall back to the default")
}

func TestValidate(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		cfg := FromEnv()
		cfg.Postgres.URL = ""
		assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
	})

	t.Run("inverted pool bounds", func(t *testing.T) {
		cfg := FromEnv()
		cfg.Postgres.URL = "postgres://localhost/db"
		cfg.Postgres.MinConns = 30
		assert.ErrorContains(t, cfg.Validate(), "pool bounds")
	})

	t.Run("unknown cache driver", func(t *testing.T) {
		cfg := FromEnv()
		cfg.Postgres.URL = "postgres://localhost/db"
		cfg.Redis.Driver = "memcached"
		assert.ErrorContains(t, cfg.Validate(), "CACHE_DRIVER")
	})

	t.Run("kms without key", func(t *testing.T) {
		cfg := FromEnv()
		cfg.Postgres.URL = "postgres://localhost/db"
		cfg.KMS.Enabled = true
		cfg.KMS.KeyID = ""
		assert.ErrorContains(t, cfg.Validate(), "KMS_KEY_ID")
	})

	t.Run("production without api token", func(t *testing.T) {
		cfg := FromEnv()
		cfg.Postgres.URL = "postgres://localhost/db"
		cfg.Environment = "production"
		cfg.API.InternalToken = ""
		assert.ErrorContains(t, cfg.Validate(), "API_INTERNAL_TOKEN")
	})
}
