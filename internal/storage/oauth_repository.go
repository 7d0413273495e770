package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"payshield-service/internal/codec"
	"payshield-service/internal/metrics"
	"payshield-service/internal/models"
	"payshield-service/internal/util"
)

// OAuthTokenRepository keeps one live OAuth token per user email.
type OAuthTokenRepository struct {
	store  OAuthTokenStore
	cache  *cacheLayer[models.OAuthToken]
	sealer TokenSealer
	flight singleflight.Group
}

// NewOAuthTokenRepository builds the repository. sealer may be nil, in which
// case tokens are stored as given.
func NewOAuthTokenRepository(store OAuthTokenStore, state *CacheState, ttl time.Duration, sealer TokenSealer) *OAuthTokenRepository {
	return &OAuthTokenRepository{
		store: store,
		cache: &cacheLayer[models.OAuthToken]{
			state:  state,
			record: "oauth",
			prefix: OAuthKeyPrefix,
			ttl:    ttl,
			encode: codec.EncodeOAuthToken,
			decode: codec.DecodeOAuthToken,
		},
		sealer: sealer,
	}
}

// Store upserts the token, replacing any previous token for the same user.
func (r *OAuthTokenRepository) Store(ctx context.Context, token *models.OAuthToken) error {
	if token == nil || token.UserEmail == "" {
		return fmt.Errorf("%w: oauth token without user email", ErrNotPersisted)
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	token.CreatedAt = storedTime(token.CreatedAt)
	token.ExpiresAt = storedTime(token.ExpiresAt)

	sealed, err := r.seal(ctx, token)
	if err != nil {
		util.Error("failed to seal oauth token", util.String("user_email", token.UserEmail), util.ErrorField(err))
		return fmt.Errorf("%w: sealing oauth token for %s: %w", ErrNotPersisted, token.UserEmail, err)
	}

	if err := r.store.UpsertOAuthToken(ctx, sealed); err != nil {
		metrics.RelationalErrors.WithLabelValues("oauth", "upsert").Inc()
		util.Error("failed to store oauth token", util.String("user_email", token.UserEmail), util.ErrorField(err))
		return fmt.Errorf("%w: oauth token for %s: %w", ErrNotPersisted, token.UserEmail, err)
	}

	r.cache.put(ctx, token.UserEmail, sealed)
	return nil
}

// Get returns the user's token, or nil when there is no unexpired token.
// Cached tokens are trusted for their TTL without re-checking expiry.
func (r *OAuthTokenRepository) Get(ctx context.Context, email string) (*models.OAuthToken, error) {
	if tok, ok := r.cache.get(ctx, email); ok {
		return r.open(ctx, tok)
	}

	v, err, _ := r.flight.Do(email, func() (interface{}, error) {
		f := r.cache.reserve(email)
		tok, err := r.store.GetOAuthToken(ctx, email)
		if err != nil {
			r.cache.release(f)
			return nil, err
		}
		r.cache.repopulate(f, tok)
		return tok, nil
	})
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		metrics.RelationalErrors.WithLabelValues("oauth", "get").Inc()
		util.Error("failed to load oauth token", util.String("user_email", email), util.ErrorField(err))
		return nil, fmt.Errorf("loading oauth token for %s: %w", email, err)
	}
	return r.open(ctx, v.(*models.OAuthToken))
}

// PurgeExpired deletes every relationally stored token whose expiry has passed.
func (r *OAuthTokenRepository) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteExpiredOAuthTokens(ctx)
	if err != nil {
		metrics.RelationalErrors.WithLabelValues("oauth", "purge").Inc()
		return 0, fmt.Errorf("purging expired oauth tokens: %w", err)
	}
	return n, nil
}

func (r *OAuthTokenRepository) seal(ctx context.Context, token *models.OAuthToken) (*models.OAuthToken, error) {
	out := *token
	if r.sealer == nil {
		return &out, nil
	}
	var err error
	if out.AccessToken, err = r.sealer.Seal(ctx, token.AccessToken); err != nil {
		return nil, err
	}
	if token.RefreshToken != "" {
		if out.RefreshToken, err = r.sealer.Seal(ctx, token.RefreshToken); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// open returns a decrypted copy; the stored value is never modified.
func (r *OAuthTokenRepository) open(ctx context.Context, token *models.OAuthToken) (*models.OAuthToken, error) {
	out := *token
	if r.sealer == nil {
		return &out, nil
	}
	var err error
	if out.AccessToken, err = r.sealer.Open(ctx, token.AccessToken); err != nil {
		return nil, fmt.Errorf("opening oauth token for %s: %w", token.UserEmail, err)
	}
	if token.RefreshToken != "" {
		if out.RefreshToken, err = r.sealer.Open(ctx, token.RefreshToken); err != nil {
			return nil, fmt.Errorf("opening oauth refresh token for %s: %w", token.UserEmail, err)
		}
	}
	return &out, nil
}
