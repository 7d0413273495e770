// Package storage is the dual-layer record store: Redis in front, Postgres behind.
//
// Postgres is authoritative. Every write goes there first, then to the cache on
// a best-effort basis. Reads try the cache unless it is degraded and fall back
// to Postgres, repopulating the cache in the background.
package storage

import (
	"context"
	"errors"
	"time"

	"payshield-service/internal/models"
)

// ErrNotPersisted wraps every failed relational write. The record was not stored.
var ErrNotPersisted = errors.New("record not persisted")

// storedTime is t the way Postgres keeps it: UTC with microsecond precision.
// Records are normalized with it before either layer is written.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func storedTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := storedTime(*t)
	return &v
}

// Cache key prefixes.
const (
	OAuthKeyPrefix        = "oauth:"
	VendorKeyPrefix       = "vendor:"
	VerificationKeyPrefix = "verification:"
)

// RecordCache is the volatile layer. Records are flat string maps.
// Get returns models.ErrCacheMiss when the key holds nothing.
type RecordCache interface {
	Get(ctx context.Context, key string) (map[string]string, error)
	Set(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// OAuthTokenStore is the relational side of OAuth tokens.
// GetOAuthToken only returns tokens whose expiry is in the future and
// reports models.ErrRecordNotFound otherwise.
type OAuthTokenStore interface {
	UpsertOAuthToken(ctx context.Context, token *models.OAuthToken) error
	GetOAuthToken(ctx context.Context, email string) (*models.OAuthToken, error)
	DeleteExpiredOAuthTokens(ctx context.Context) (int64, error)
}

// VendorProfileStore is the relational side of vendor profiles.
// GetVendorProfile skips expired profiles.
type VendorProfileStore interface {
	UpsertVendorProfile(ctx context.Context, profile *models.VendorProfile) error
	GetVendorProfile(ctx context.Context, email string) (*models.VendorProfile, error)
}

// VerificationAttemptStore is the relational side of the attempt log.
// InsertVerificationAttempt also increments the vendor's verification count
// in the same transaction when the attempt succeeded.
type VerificationAttemptStore interface {
	InsertVerificationAttempt(ctx context.Context, attempt *models.VerificationAttempt) error
	GetVerificationAttempt(ctx context.Context, id string) (*models.VerificationAttempt, error)
	ListVerificationAttempts(ctx context.Context, vendorEmail string, limit int) ([]*models.VerificationAttempt, error)
}

// Pinger is anything the health reporter can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TokenSealer encrypts OAuth secrets before they are written to either layer.
type TokenSealer interface {
	Seal(ctx context.Context, plaintext string) (string, error)
	Open(ctx context.Context, sealed string) (string, error)
}

// AttemptObserver receives every durably stored verification attempt.
// Observers run in the background and their errors never reach the writer.
type AttemptObserver interface {
	Name() string
	ObserveAttempt(ctx context.Context, attempt *models.VerificationAttempt) error
}
