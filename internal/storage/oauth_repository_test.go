package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payshield-service/internal/models"
	"payshield-service/internal/testutil"
)

func newOAuthRepo(t *testing.T, sealer TokenSealer) (*OAuthTokenRepository, *testutil.MockStore, *testutil.MockCache, *CacheState) {
	t.Helper()
	store := testutil.NewMockStore()
	cache := testutil.NewMockCache()
	state := NewCacheState(cache, time.Second)
	t.Cleanup(state.Wait)
	return NewOAuthTokenRepository(store, state, time.Hour, sealer), store, cache, state
}

func TestOAuthStoreThenGetHitsCacheOnly(t *testing.T) {
	repo, store, cache, _ := newOAuthRepo(t, nil)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, &models.OAuthToken{
		UserEmail:   "a@b.com",
		AccessToken: "tok1",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))
	assert.Equal(t, time.Hour, cache.TTL("oauth:a@b.com"))

	got, err := repo.Get(ctx, "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok1", got.AccessToken)
	assert.Zero(t, store.CallCount("GetOAuthToken"))
}

func TestOAuthGetFallsBackAndRepopulates(t *testing.T) {
	repo, store, cache, _ := newOAuthRepo(t, nil)
	store.Tokens["a@b.com"] = &models.OAuthToken{
		UserEmail:   "a@b.com",
		AccessToken: "tok1",
		ExpiresAt:   time.Now().Add(time.Hour),
		CreatedAt:   time.Now(),
	}

	got, err := repo.Get(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok1", got.AccessToken)
	assert.Equal(t, 1, store.CallCount("GetOAuthToken"))

	require.Eventually(t, func() bool {
		_, ok := cache.Entry("oauth:a@b.com")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestOAuthExpiredTokenDisappearsOnceCacheLapses(t *testing.T) {
	clock := testutil.NewClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	repo, store, cache, _ := newOAuthRepo(t, nil)
	store.Now = clock.Now
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, &models.OAuthToken{
		UserEmail:   "a@b.com",
		AccessToken: "tok1",
		ExpiresAt:   clock.Now().Add(time.Hour),
	}))
	got, err := repo.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "tok1", got.AccessToken)

	clock.Advance(time.Hour + time.Second)

	// Within its own TTL the cached copy is still served.
	got, err = repo.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.NotNil(t, got)

	// Once the cache entry is gone the relational freshness filter applies.
	require.NoError(t, cache.Delete(ctx, "oauth:a@b.com"))
	got, err = repo.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOAuthStoreFailureIsNotPersisted(t *testing.T) {
	repo, store, cache, _ := newOAuthRepo(t, nil)
	store.UpsertOAuthTokenErr = errors.New("connection refused")

	err := repo.Store(context.Background(), &models.OAuthToken{UserEmail: "a@b.com", AccessToken: "tok1"})
	require.ErrorIs(t, err, ErrNotPersisted)
	assert.Zero(t, cache.CallCount("Set"))
}

func TestOAuthRelationalReadFailureIsReported(t *testing.T) {
	repo, store, _, _ := newOAuthRepo(t, nil)
	store.GetOAuthTokenErr = errors.New("timeout")

	got, err := repo.Get(context.Background(), "a@b.com")
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestOAuthTokensAreSealedAtRest(t *testing.T) {
	repo, store, cache, _ := newOAuthRepo(t, testutil.PrefixSealer{Prefix: "sealed:"})
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, &models.OAuthToken{
		UserEmail:    "a@b.com",
		AccessToken:  "tok1",
		RefreshToken: "ref1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))

	assert.Equal(t, "sealed:tok1", store.Tokens["a@b.com"].AccessToken)
	assert.Equal(t, "sealed:ref1", store.Tokens["a@b.com"].RefreshToken)
	entry, ok := cache.Entry("oauth:a@b.com")
	require.True(t, ok)
	assert.Equal(t, "sealed:tok1", entry["access_token"])

	got, err := repo.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "tok1", got.AccessToken)
	assert.Equal(t, "ref1", got.RefreshToken)
}

func TestOAuthPurgeExpired(t *testing.T) {
	clock := testutil.NewClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	repo, store, _, _ := newOAuthRepo(t, nil)
	store.Now = clock.Now
	store.Tokens["old@b.com"] = &models.OAuthToken{UserEmail: "old@b.com", ExpiresAt: clock.Now().Add(-time.Second)}
	store.Tokens["new@b.com"] = &models.OAuthToken{UserEmail: "new@b.com", ExpiresAt: clock.Now().Add(time.Hour)}

	n, err := repo.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Contains(t, store.Tokens, "new@b.com")
	assert.NotContains(t, store.Tokens, "old@b.com")
}

func TestOAuthStoreAndGetWithCacheFailingEveryCall(t *testing.T) {
	repo, store, cache, state := newOAuthRepo(t, nil)
	cache.FailAll(errors.New("connection refused"))
	ctx := context.Background()

	got, err := repo.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Nil(t, got)
	require.True(t, state.Degraded())

	state.Recover()
	tok := &models.OAuthToken{
		UserEmail:   "a@b.com",
		AccessToken: "tok1",
		Scope:       "gmail.send",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Store(ctx, tok))
	assert.True(t, state.Degraded())
	assert.Equal(t, 1, store.CallCount("UpsertOAuthToken"))

	got, err = repo.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, tok, got)
	assert.Equal(t, 2, store.CallCount("GetOAuthToken"))
	assert.Equal(t, 1, cache.CallCount("Get"))
	assert.Equal(t, 1, cache.CallCount("Set"))
}

func TestOAuthRecordIsIdenticalFromEitherLayer(t *testing.T) {
	repo, _, _, state := newOAuthRepo(t, nil)
	ctx := context.Background()
	est := time.FixedZone("EST", -5*3600)

	tok := &models.OAuthToken{
		UserEmail:   "a@b.com",
		AccessToken: "tok1",
		ExpiresAt:   time.Now().Add(time.Hour).In(est),
		CreatedAt:   time.Date(2026, 6, 1, 12, 0, 0, 987654321, est),
	}
	require.NoError(t, repo.Store(ctx, tok))
	assert.Equal(t, 987654000, tok.CreatedAt.Nanosecond())

	cached, err := repo.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, tok, cached)

	state.Fail(errors.New("redis down"))
	relational, err := repo.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, tok, relational)
}
