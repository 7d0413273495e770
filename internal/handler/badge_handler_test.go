package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payshield-service/internal/service"
	"payshield-service/internal/storage"
	"payshield-service/internal/testutil"
	"payshield-service/internal/util"
)

const testToken = "s3cret"

type staticHealth struct {
	status storage.HealthStatus
}

func (h staticHealth) Check(context.Context) storage.HealthStatus {
	return h.status
}

type fakeSweeper struct {
	purged int64
	err    error
}

func (s fakeSweeper) Sweep(context.Context) (int64, error) {
	return s.purged, s.err
}

type harness struct {
	store  *testutil.MockStore
	cache  *testutil.MockCache
	router http.Handler
}

func newHarness(t *testing.T, health storage.HealthStatus) *harness {
	t.Helper()
	util.Set(zap.NewNop())

	store := testutil.NewMockStore()
	cache := testutil.NewMockCache()
	state := storage.NewCacheState(cache, time.Second)
	vendors := storage.NewVendorProfileRepository(store, state, time.Hour)
	attempts := storage.NewVerificationAttemptRepository(store, state, time.Hour, storage.DefaultHistoryLimit)
	tokens := storage.NewOAuthTokenRepository(store, state, time.Hour, nil)
	t.Cleanup(func() {
		attempts.Wait()
		state.Wait()
	})

	badges := NewBadgeHandler(service.NewServiceFactory(vendors, attempts, tokens), zap.NewNop())
	router := NewRouter(badges, staticHealth{status: health}, RouterOptions{APIToken: testToken}, zap.NewNop())
	return &harness{store: store, cache: cache, router: router}
}

func (h *harness) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

const enrollBody = `{"email":"vendor@acme.com","company_name":"Acme","contact_name":"Dana","voiceprint":"sample"}`

func TestEnrollAndLookupVendor(t *testing.T) {
	h := newHarness(t, storage.HealthStatus{Postgres: true})

	rec, resp := h.do(t, http.MethodPost, "/api/v1/vendors", enrollBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)

	rec, resp = h.do(t, http.MethodGet, "/api/v1/vendors/vendor@acme.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "vendor@acme.com", data["email"])
	assert.Len(t, data["voiceprint_hash"], 64)
}

func TestEnrollErrorsAreDistinct(t *testing.T) {
	h := newHarness(t, storage.HealthStatus{Postgres: true})

	rec, _ := h.do(t, http.MethodPost, "/api/v1/vendors", enrollBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := h.do(t, http.MethodPost, "/api/v1/vendors", enrollBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.ErrVendorAlreadyExists.Error(), resp.Error)

	h.store.UpsertVendorProfileErr = errors.New("pg: connection refused")
	rec, resp = h.do(t, http.MethodPost, "/api/v1/vendors",
		`{"email":"other@acme.com","company_name":"Acme","contact_name":"Dana","voiceprint":"sample"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, service.ErrEnrollmentNotPersisted.Error(), resp.Error)
	assert.NotContains(t, resp.Error, "connection refused")
}

func TestEnrollRejectsBadBody(t *testing.T) {
	h := newHarness(t, storage.HealthStatus{Postgres: true})

	rec, resp := h.do(t, http.MethodPost, "/api/v1/vendors", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = h.do(t, http.MethodPost, "/api/v1/vendors", `{"email":"x@y.com","unexpected":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/v1/vendors", `{"email":"not-email","company_name":"A","contact_name":"B","voiceprint":"v"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownVendorWhenStorageFails(t *testing.T) {
	h := newHarness(t, storage.HealthStatus{Postgres: true})
	h.cache.SetErrors(errors.New("redis down"), nil, nil)
	h.store.GetVendorProfileErr = errors.New("pg down")

	rec, resp := h.do(t, http.MethodGet, "/api/v1/vendors/vendor@acme.com", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.ErrUnknownVendor.Error(), resp.Error)
}

func TestRecordAndListVerifications(t *testing.T) {
	h := newHarness(t, storage.HealthStatus{Postgres: true})
	rec, _ := h.do(t, http.MethodPost, "/api/v1/vendors", enrollBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := h.do(t, http.MethodPost, "/api/v1/verifications",
		`{"vendor_email":"vendor@acme.com","thread_id":"t-1","challenge_words":"amber falcon","confidence_score":97.2,"success":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := resp.Data.(map[string]interface{})["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "192.0.2.1", *h.store.Attempts[id].IPAddress)

	rec, resp = h.do(t, http.MethodGet, "/api/v1/verifications/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t-1", resp.Data.(map[string]interface{})["thread_id"])

	rec, resp = h.do(t, http.MethodGet, "/api/v1/vendors/vendor@acme.com/verifications?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 1)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/vendors/vendor@acme.com/verifications?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/verifications/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOAuthTokenRoutes(t *testing.T) {
	h := newHarness(t, storage.HealthStatus{Postgres: true})
	expires := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	rec, _ := h.do(t, http.MethodPut, "/api/v1/oauth/tokens",
		`{"user_email":"ops@acme.com","access_token":"ya29.a","expires_at":"`+expires+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := h.do(t, http.MethodGet, "/api/v1/oauth/tokens/ops@acme.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ya29.a", resp.Data.(map[string]interface{})["access_token"])

	rec, _ = h.do(t, http.MethodGet, "/api/v1/oauth/tokens/nobody@acme.com", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	h := newHarness(t, storage.HealthStatus{Postgres: true})

	for _, auth := range []string{"", "Bearer wrong", testToken} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vendors/vendor@acme.com", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "authorization %q", auth)
	}
}

func TestHealthEndpoint(t *testing.T) {
	cases := []struct {
		name   string
		status storage.HealthStatus
		code   int
	}{
		{"all up", storage.HealthStatus{Redis: true, Postgres: true}, http.StatusOK},
		{"cache degraded", storage.HealthStatus{Postgres: true, CacheDegraded: true}, http.StatusOK},
		{"postgres down", storage.HealthStatus{Redis: true}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.status)
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			h.router.ServeHTTP(rec, req)

			assert.Equal(t, tc.code, rec.Code)
			var got storage.HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tc.status.CacheDegraded, got.CacheDegraded)
		})
	}
}

func TestNotFoundRoute(t *testing.T) {
	h := newHarness(t, storage.HealthStatus{Postgres: true})
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequireHTTPS(t *testing.T) {
	util.Set(zap.NewNop())
	router := NewRouter(&BadgeHandler{logger: zap.NewNop()}, staticHealth{}, RouterOptions{RequireTLS: true}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUpgradeRequired, rec.Code)
}

func TestManualSweepRoute(t *testing.T) {
	util.Set(zap.NewNop())
	badges := &BadgeHandler{logger: zap.NewNop()}

	router := NewRouter(badges, staticHealth{}, RouterOptions{Sweeper: fakeSweeper{purged: 3}}, zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/maintenance/sweep", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"purged":3},"message":"Maintenance sweep completed"}`, rec.Body.String())

	router = NewRouter(badges, staticHealth{}, RouterOptions{Sweeper: fakeSweeper{err: errors.New("pg down")}}, zap.NewNop())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/maintenance/sweep", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
