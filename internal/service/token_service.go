package service

import (
	"context"
	"fmt"
	"time"

	"payshield-service/internal/models"
	"payshield-service/internal/util"
)

// TokenService keeps the mailbox OAuth credential per user.
type TokenService struct {
	tokens OAuthTokens
	now    func() time.Time
}

func NewTokenService(tokens OAuthTokens) *TokenService {
	return &TokenService{tokens: tokens, now: time.Now}
}

// Save replaces the user's token.
func (s *TokenService) Save(ctx context.Context, token *models.OAuthToken) error {
	token.UserEmail = util.NormalizeEmail(token.UserEmail)
	if !util.ValidEmail(token.UserEmail) {
		return fmt.Errorf("%w: user email", ErrInvalidInput)
	}
	if token.AccessToken == "" || token.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: access token and expiry are required", ErrInvalidInput)
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = s.now().UTC()
	}
	if err := s.tokens.Store(ctx, token); err != nil {
		return fmt.Errorf("%w: %w", ErrTokenNotPersisted, err)
	}
	return nil
}

// AccessToken returns a token that has not expired yet, or ErrNoValidToken.
func (s *TokenService) AccessToken(ctx context.Context, email string) (*models.OAuthToken, error) {
	token, err := s.tokens.Get(ctx, util.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoValidToken, err)
	}
	if token == nil || token.Expired(s.now()) {
		return nil, ErrNoValidToken
	}
	return token, nil
}
