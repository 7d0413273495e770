package postgres

import (
	"context"

	"payshield-service/internal/models"
)

func (s *Store) UpsertOAuthToken(ctx context.Context, t *models.OAuthToken) error {
	ctx, cancel := s.client.WithTimeout(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO oauth_tokens
			(user_email, access_token, refresh_token, expires_at, scope, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_email) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			created_at = EXCLUDED.created_at,
			updated_at = NOW()`,
		t.UserEmail, t.AccessToken, t.RefreshToken, t.ExpiresAt, t.Scope, t.CreatedAt)
	return err
}

// GetOAuthToken returns the token only while it is unexpired.
func (s *Store) GetOAuthToken(ctx context.Context, email string) (*models.OAuthToken, error) {
	ctx, cancel := s.client.WithTimeout(ctx)
	defer cancel()
	var t models.OAuthToken
	err := s.pool.QueryRow(ctx, `
		SELECT user_email, access_token, COALESCE(refresh_token, ''), COALESCE(scope, ''), expires_at, created_at
		FROM oauth_tokens
		WHERE user_email = $1 AND expires_at > NOW()`,
		email,
	).Scan(&t.UserEmail, &t.AccessToken, &t.RefreshToken, &t.Scope, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func (s *Store) DeleteExpiredOAuthTokens(ctx context.Context) (int64, error) {
	ctx, cancel := s.client.WithTimeout(ctx)
	defer cancel()
	tag, err := s.pool.Exec(ctx, "DELETE FROM oauth_tokens WHERE expires_at < NOW()")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
