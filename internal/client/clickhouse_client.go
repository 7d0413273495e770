package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"payshield-service/internal/config"
)

// ClickHouseClient writes verification attempts into the analytics store.
// Writes are one small batch per attempt, so the pool stays small.
type ClickHouseClient struct {
	conn driver.Conn
}

func NewClickHouseClient(cfg *config.Config, logger *zap.Logger) (*ClickHouseClient, error) {
	opts, err := clickhouseOptions(cfg.Clickhouse, cfg.IsProduction())
	if err != nil {
		return nil, err
	}

	conn, err := ch.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Info("ClickHouse client initialized",
		zap.Strings("addr", opts.Addr),
		zap.String("database", opts.Auth.Database),
		zap.Bool("tls_enabled", opts.TLS != nil),
	)
	return &ClickHouseClient{conn: conn}, nil
}

// clickhouseOptions builds driver options from CLICKHOUSE_URL. A clickhouse://
// DSN carries its own credentials and settings; a bare host:port takes them
// from the remaining CLICKHOUSE_* variables. Production always dials TLS.
func clickhouseOptions(cfg config.ClickhouseConfig, production bool) (*ch.Options, error) {
	var opts *ch.Options
	if strings.HasPrefix(cfg.URL, "clickhouse://") {
		parsed, err := ch.ParseDSN(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing CLICKHOUSE_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &ch.Options{
			Addr: []string{cfg.URL},
			Auth: ch.Auth{
				Username: cfg.Username,
				Password: cfg.Password,
				Database: cfg.Database,
			},
		}
	}

	opts.DialTimeout = 5 * time.Second
	opts.MaxOpenConns = 4
	opts.MaxIdleConns = 2
	opts.ConnMaxLifetime = time.Hour
	if production && opts.TLS == nil {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// Exec runs a statement without results, such as the analytics table DDL.
func (c *ClickHouseClient) Exec(ctx context.Context, query string) error {
	return c.conn.Exec(ctx, query)
}

// Insert sends rows as a single batch for query.
func (c *ClickHouseClient) Insert(ctx context.Context, query string, rows ...[]interface{}) error {
	batch, err := c.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing clickhouse batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("appending clickhouse row: %w", err)
		}
	}
	return batch.Send()
}

func (c *ClickHouseClient) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseClient) Close() error {
	return c.conn.Close()
}
