package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payshield-service/internal/config"
)

func TestClickHouseOptionsFromHostAndCredentials(t *testing.T) {
	opts, err := clickhouseOptions(config.ClickhouseConfig{
		URL:      "analytics.internal:9000",
		Username: "payshield",
		Password: "secret",
		Database: "payshield",
	}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"analytics.internal:9000"}, opts.Addr)
	assert.Equal(t, "payshield", opts.Auth.Username)
	assert.Equal(t, "secret", opts.Auth.Password)
	assert.Equal(t, "payshield", opts.Auth.Database)
	assert.Nil(t, opts.TLS)
	assert.Equal(t, 4, opts.MaxOpenConns)
}

func TestClickHouseOptionsFromDSN(t *testing.T) {
	opts, err := clickhouseOptions(config.ClickhouseConfig{
		URL:      "clickhouse://reporter:pw@ch-1:9440/audit?secure=true",
		Username: "ignored",
	}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"ch-1:9440"}, opts.Addr)
	assert.Equal(t, "reporter", opts.Auth.Username)
	assert.Equal(t, "audit", opts.Auth.Database)
	assert.NotNil(t, opts.TLS)
}

func TestClickHouseOptionsForceTLSInProduction(t *testing.T) {
	opts, err := clickhouseOptions(config.ClickhouseConfig{URL: "ch-1:9440"}, true)
	require.NoError(t, err)
	require.NotNil(t, opts.TLS)
	assert.NotZero(t, opts.TLS.MinVersion)
}

func TestClickHouseOptionsRejectBadDSN(t *testing.T) {
	_, err := clickhouseOptions(config.ClickhouseConfig{URL: "clickhouse://ch-1:9000/db?dial_timeout=soon"}, false)
	assert.Error(t, err)
}
