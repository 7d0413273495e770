// Package testutil holds in-memory stand-ins for Postgres and Redis shared by tests across packages.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"payshield-service/internal/models"
)

// MockStore is a stateful in-memory relational store.
// Set the *Err fields to inject failures for one operation; zero means no error.
// Now drives expiry filtering and defaults to time.Now. Timestamps are kept the
// way a TIMESTAMPTZ column keeps them: UTC, microsecond precision.
type MockStore struct {
	UpsertOAuthTokenErr    error
	GetOAuthTokenErr       error
	DeleteExpiredErr       error
	UpsertVendorProfileErr error
	GetVendorProfileErr    error
	InsertAttemptErr       error
	GetAttemptErr          error
	ListAttemptsErr        error
	PingErr                error

	Tokens   map[string]*models.OAuthToken
	Vendors  map[string]*models.VendorProfile
	Attempts map[string]*models.VerificationAttempt

	Now func() time.Time

	// Calls counts invocations per method name.
	Calls map[string]int

	mu sync.Mutex
}

func NewMockStore() *MockStore {
	return &MockStore{
		Tokens:   make(map[string]*models.OAuthToken),
		Vendors:  make(map[string]*models.VendorProfile),
		Attempts: make(map[string]*models.VerificationAttempt),
		Calls:    make(map[string]int),
	}
}

// CallCount returns how many times method was invoked.
func (m *MockStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[method]
}

func (m *MockStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func timestamptz(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (m *MockStore) record(method string) {
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[method]++
}

func (m *MockStore) UpsertOAuthToken(_ context.Context, token *models.OAuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpsertOAuthToken")
	if m.UpsertOAuthTokenErr != nil {
		return m.UpsertOAuthTokenErr
	}
	t := *token
	t.ExpiresAt = timestamptz(t.ExpiresAt)
	t.CreatedAt = timestamptz(t.CreatedAt)
	m.Tokens[token.UserEmail] = &t
	return nil
}

func (m *MockStore) GetOAuthToken(_ context.Context, email string) (*models.OAuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetOAuthToken")
	if m.GetOAuthTokenErr != nil {
		return nil, m.GetOAuthTokenErr
	}
	t, ok := m.Tokens[email]
	if !ok || !t.ExpiresAt.After(m.now()) {
		return nil, models.ErrRecordNotFound
	}
	out := *t
	return &out, nil
}

func (m *MockStore) DeleteExpiredOAuthTokens(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteExpiredOAuthTokens")
	if m.DeleteExpiredErr != nil {
		return 0, m.DeleteExpiredErr
	}
	var n int64
	now := m.now()
	for email, t := range m.Tokens {
		if t.ExpiresAt.Before(now) {
			delete(m.Tokens, email)
			n++
		}
	}
	return n, nil
}

func (m *MockStore) UpsertVendorProfile(_ context.Context, profile *models.VendorProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpsertVendorProfile")
	if m.UpsertVendorProfileErr != nil {
		return m.UpsertVendorProfileErr
	}
	p := *profile
	p.EnrollmentDate = timestamptz(p.EnrollmentDate)
	p.ExpiresAt = timestamptz(p.ExpiresAt)
	if p.LastVerification != nil {
		lv := timestamptz(*p.LastVerification)
		p.LastVerification = &lv
	}
	m.Vendors[profile.Email] = &p
	return nil
}

func (m *MockStore) GetVendorProfile(_ context.Context, email string) (*models.VendorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetVendorProfile")
	if m.GetVendorProfileErr != nil {
		return nil, m.GetVendorProfileErr
	}
	p, ok := m.Vendors[email]
	if !ok || !p.ExpiresAt.After(m.now()) {
		return nil, models.ErrRecordNotFound
	}
	out := *p
	return &out, nil
}

// InsertVerificationAttempt mirrors the relational transaction: insert, then
// increment the vendor's counter when the attempt succeeded.
func (m *MockStore) InsertVerificationAttempt(_ context.Context, attempt *models.VerificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("InsertVerificationAttempt")
	if m.InsertAttemptErr != nil {
		return m.InsertAttemptErr
	}
	a := *attempt
	a.Timestamp = timestamptz(a.Timestamp)
	m.Attempts[attempt.ID] = &a
	if attempt.Success {
		if p, ok := m.Vendors[attempt.VendorEmail]; ok {
			now := timestamptz(m.now())
			p.VerificationCount++
			p.LastVerification = &now
		}
	}
	return nil
}

func (m *MockStore) GetVerificationAttempt(_ context.Context, id string) (*models.VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetVerificationAttempt")
	if m.GetAttemptErr != nil {
		return nil, m.GetAttemptErr
	}
	a, ok := m.Attempts[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	out := *a
	return &out, nil
}

func (m *MockStore) ListVerificationAttempts(_ context.Context, vendorEmail string, limit int) ([]*models.VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListVerificationAttempts")
	if m.ListAttemptsErr != nil {
		return nil, m.ListAttemptsErr
	}
	var out []*models.VerificationAttempt
	for _, a := range m.Attempts {
		if a.VendorEmail == vendorEmail {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Ping")
	return m.PingErr
}
