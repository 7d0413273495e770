package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payshield-service/internal/models"
	"payshield-service/internal/testutil"
)

func newAttemptRepo(t *testing.T, observers ...AttemptObserver) (*VerificationAttemptRepository, *testutil.MockStore, *testutil.MockCache) {
	t.Helper()
	store := testutil.NewMockStore()
	cache := testutil.NewMockCache()
	state := NewCacheState(cache, time.Second)
	repo := NewVerificationAttemptRepository(store, state, 24*time.Hour, 0, observers...)
	t.Cleanup(func() {
		repo.Wait()
		state.Wait()
	})
	return repo, store, cache
}

func attempt(id, email string, success bool, ts time.Time) *models.VerificationAttempt {
	return &models.VerificationAttempt{
		ID:              id,
		VendorEmail:     email,
		ThreadID:        "thread-" + id,
		ChallengeWords:  "apple river stone",
		ConfidenceScore: 95,
		Success:         success,
		Timestamp:       ts,
	}
}

func TestAttemptStoreCachesWithDayTTL(t *testing.T) {
	repo, store, cache := newAttemptRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, attempt("a1", "v@x.com", false, time.Now().UTC())))
	assert.Equal(t, 24*time.Hour, cache.TTL("verification:a1"))

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "thread-a1", got.ThreadID)
	assert.Zero(t, store.CallCount("GetVerificationAttempt"))
}

func TestSuccessfulAttemptIncrementsAndEvictsVendor(t *testing.T) {
	repo, store, cache := newAttemptRepo(t)
	ctx := context.Background()
	store.Vendors["v@x.com"] = enrollment("v@x.com", time.Now().UTC())
	require.NoError(t, cache.Set(ctx, "vendor:v@x.com", map[string]string{"email": "v@x.com"}, time.Hour))

	require.NoError(t, repo.Store(ctx, attempt("a1", "v@x.com", true, time.Now().UTC())))

	assert.EqualValues(t, 1, store.Vendors["v@x.com"].VerificationCount)
	assert.NotNil(t, store.Vendors["v@x.com"].LastVerification)
	_, cached := cache.Entry("vendor:v@x.com")
	assert.False(t, cached)
}

func TestFailedAttemptLeavesVendorUntouched(t *testing.T) {
	repo, store, _ := newAttemptRepo(t)
	store.Vendors["v@x.com"] = enrollment("v@x.com", time.Now().UTC())

	require.NoError(t, repo.Store(context.Background(), attempt("a1", "v@x.com", false, time.Now().UTC())))

	assert.Zero(t, store.Vendors["v@x.com"].VerificationCount)
	assert.Nil(t, store.Vendors["v@x.com"].LastVerification)
}

func TestConcurrentSuccessfulAttemptsAllCount(t *testing.T) {
	repo, store, _ := newAttemptRepo(t)
	store.Vendors["v@x.com"] = enrollment("v@x.com", time.Now().UTC())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Store(context.Background(), attempt(fmt.Sprintf("a%d", i), "v@x.com", true, time.Now().UTC())))
		}(i)
	}
	wg.Wait()

	p, err := store.GetVendorProfile(context.Background(), "v@x.com")
	require.NoError(t, err)
	assert.EqualValues(t, 20, p.VerificationCount)
}

func TestListByVendorNewestFirstWithDefaultLimit(t *testing.T) {
	repo, store, _ := newAttemptRepo(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		a := attempt(fmt.Sprintf("a%02d", i), "v@x.com", false, base.Add(time.Duration(i)*time.Minute))
		store.Attempts[a.ID] = a
	}
	store.Attempts["other"] = attempt("other", "w@x.com", false, base)

	got, err := repo.ListByVendor(context.Background(), "v@x.com", 0)
	require.NoError(t, err)
	require.Len(t, got, DefaultHistoryLimit)
	assert.Equal(t, "a59", got[0].ID)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Timestamp.After(got[i].Timestamp))
	}

	got, err = repo.ListByVendor(context.Background(), "v@x.com", 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestAttemptStoreRequiresID(t *testing.T) {
	repo, store, _ := newAttemptRepo(t)

	err := repo.Store(context.Background(), attempt("", "v@x.com", true, time.Now()))
	require.ErrorIs(t, err, ErrNotPersisted)
	assert.Zero(t, store.CallCount("InsertVerificationAttempt"))
}

func TestAttemptStoreFailureSkipsCacheAndObservers(t *testing.T) {
	obs := &testutil.RecordingObserver{}
	repo, store, cache := newAttemptRepo(t, obs)
	store.InsertAttemptErr = errors.New("unique violation")

	err := repo.Store(context.Background(), attempt("a1", "v@x.com", true, time.Now()))
	require.ErrorIs(t, err, ErrNotPersisted)
	repo.Wait()
	assert.Zero(t, cache.CallCount("Set"))
	assert.Empty(t, obs.Attempts())
}

func TestObserversSeeStoredAttemptsAndCannotFailTheWrite(t *testing.T) {
	good := &testutil.RecordingObserver{ObserverName: "good"}
	bad := &testutil.RecordingObserver{ObserverName: "bad", Err: errors.New("broker down")}
	repo, _, _ := newAttemptRepo(t, good, bad)

	require.NoError(t, repo.Store(context.Background(), attempt("a1", "v@x.com", true, time.Now())))
	repo.Wait()

	require.Len(t, good.Attempts(), 1)
	assert.Equal(t, "a1", good.Attempts()[0].ID)
	assert.Len(t, bad.Attempts(), 1)
}

func TestAttemptStoreAndGetWithCacheFailingEveryCall(t *testing.T) {
	store := testutil.NewMockStore()
	cache := testutil.NewMockCache()
	cache.FailAll(errors.New("connection refused"))
	state := NewCacheState(cache, time.Second)
	repo := NewVerificationAttemptRepository(store, state, 24*time.Hour, 0)
	t.Cleanup(func() {
		repo.Wait()
		state.Wait()
	})
	ctx := context.Background()
	store.Vendors["v@x.com"] = enrollment("v@x.com", time.Now().UTC())

	got, err := repo.Get(ctx, "a0")
	require.NoError(t, err)
	assert.Nil(t, got)
	require.True(t, state.Degraded())

	state.Recover()
	a := attempt("a1", "v@x.com", true, time.Now())
	require.NoError(t, repo.Store(ctx, a))
	assert.True(t, state.Degraded())
	assert.Equal(t, 1, store.CallCount("InsertVerificationAttempt"))
	assert.EqualValues(t, 1, store.Vendors["v@x.com"].VerificationCount)

	got, err = repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, a, got)
	assert.Equal(t, 2, store.CallCount("GetVerificationAttempt"))
}

func TestAttemptEvictionFailureDoesNotFailStore(t *testing.T) {
	repo, store, cache := newAttemptRepo(t)
	cache.DeleteErr = errors.New("READONLY replica")
	store.Vendors["v@x.com"] = enrollment("v@x.com", time.Now().UTC())

	require.NoError(t, repo.Store(context.Background(), attempt("a1", "v@x.com", true, time.Now())))
	assert.EqualValues(t, 1, store.Vendors["v@x.com"].VerificationCount)
	assert.True(t, repo.state.Degraded())
	assert.Equal(t, 1, cache.CallCount("Delete"))
}

func TestAttemptCancelledCallerKeepsCacheHealthy(t *testing.T) {
	repo, store, _ := newAttemptRepo(t)
	store.Vendors["v@x.com"] = enrollment("v@x.com", time.Now().UTC())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, repo.Store(ctx, attempt("a1", "v@x.com", true, time.Now())))
	_, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, repo.state.Degraded())
}

func TestAttemptRecordIsIdenticalFromEitherLayer(t *testing.T) {
	repo, _, _ := newAttemptRepo(t)
	ctx := context.Background()

	a := attempt("a1", "v@x.com", false, time.Date(2026, 5, 4, 9, 30, 0, 555555555, time.FixedZone("PDT", -7*3600)))
	require.NoError(t, repo.Store(ctx, a))
	assert.Equal(t, 555555000, a.Timestamp.Nanosecond())

	cached, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, a, cached)

	repo.state.Fail(errors.New("redis down"))
	relational, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, a, relational)
	assert.Nil(t, relational.IPAddress)
	assert.Nil(t, relational.UserAgent)
}
