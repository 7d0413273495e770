package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"payshield-service/internal/config"
	"payshield-service/internal/util"
)

type PostgresClient struct {
	Pool           *pgxpool.Pool
	commandTimeout time.Duration
}

// NewPostgresClient opens the bounded connection pool and verifies it with a ping.
// Callers beyond MaxConns queue for a connection instead of failing.
func NewPostgresClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*PostgresClient, error) {
	pgConfig := cfg.Postgres

	poolConfig, err := pgxpool.ParseConfig(pgConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	poolConfig.MinConns = int32(pgConfig.MinConns)
	poolConfig.MaxConns = int32(pgConfig.MaxConns)
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "payshield-storage"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	logger.Info("Postgres pool initialized",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("min_conns", poolConfig.MinConns),
		zap.Int32("max_conns", poolConfig.MaxConns))

	return &PostgresClient{Pool: pool, commandTimeout: pgConfig.CommandTimeout}, nil
}

// WithTimeout bounds a single relational command by the configured command timeout.
func (p *PostgresClient) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, p.commandTimeout)
}

func (p *PostgresClient) HealthCheck(ctx context.Context) error {
	var one int
	if err := p.Pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("postgres health query failed: %w", err)
	}
	return nil
}

func (p *PostgresClient) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		util.Info("Postgres pool closed")
	}
}
