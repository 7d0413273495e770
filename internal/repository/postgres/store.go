// Package postgres is the authoritative relational store for badges, attempts and OAuth tokens.
// Every query runs under the pool's fixed command timeout.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payshield-service/internal/client"
	"payshield-service/internal/models"
)

type Store struct {
	client *client.PostgresClient
	pool   *pgxpool.Pool
}

func NewStore(c *client.PostgresClient) *Store {
	return &Store{client: c, pool: c.Pool}
}

// Ping runs a trivial query.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.client.WithTimeout(ctx)
	defer cancel()
	return s.client.HealthCheck(ctx)
}

// notFound maps pgx.ErrNoRows to models.ErrRecordNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrRecordNotFound
	}
	return err
}
