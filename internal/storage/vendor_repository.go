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

// VendorProfileRepository stores enrolled vendor profiles keyed by email.
type VendorProfileRepository struct {
	store  VendorProfileStore
	cache  *cacheLayer[models.VendorProfile]
	flight singleflight.Group
}

func NewVendorProfileRepository(store VendorProfileStore, state *CacheState, ttl time.Duration) *VendorProfileRepository {
	return &VendorProfileRepository{
		store: store,
		cache: &cacheLayer[models.VendorProfile]{
			state:  state,
			record: "vendor",
			prefix: VendorKeyPrefix,
			ttl:    ttl,
			encode: codec.EncodeVendorProfile,
			decode: codec.DecodeVendorProfile,
		},
	}
}

// Store upserts the profile as given, a nil last verification included. A raw
// voiceprint is replaced by its digest and timestamps are cut to microseconds
// on the passed profile before anything is written.
func (r *VendorProfileRepository) Store(ctx context.Context, profile *models.VendorProfile) error {
	if profile == nil || profile.Email == "" {
		return fmt.Errorf("%w: vendor profile without email", ErrNotPersisted)
	}
	profile.VoiceprintHash = codec.NormalizeVoiceprint(profile.VoiceprintHash)
	profile.EnrollmentDate = storedTime(profile.EnrollmentDate)
	profile.ExpiresAt = storedTime(profile.ExpiresAt)
	profile.LastVerification = storedTimePtr(profile.LastVerification)

	if err := r.store.UpsertVendorProfile(ctx, profile); err != nil {
		metrics.RelationalErrors.WithLabelValues("vendor", "upsert").Inc()
		util.Error("failed to store vendor profile", util.String("email", profile.Email), util.ErrorField(err))
		return fmt.Errorf("%w: vendor profile %s: %w", ErrNotPersisted, profile.Email, err)
	}

	r.cache.put(ctx, profile.Email, profile)
	return nil
}

// Get returns the vendor's profile, or nil when none is enrolled or it has expired.
func (r *VendorProfileRepository) Get(ctx context.Context, email string) (*models.VendorProfile, error) {
	if p, ok := r.cache.get(ctx, email); ok {
		return p, nil
	}

	v, err, _ := r.flight.Do(email, func() (interface{}, error) {
		f := r.cache.reserve(email)
		p, err := r.store.GetVendorProfile(ctx, email)
		if err != nil {
			r.cache.release(f)
			return nil, err
		}
		r.cache.repopulate(f, p)
		return p, nil
	})
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		metrics.RelationalErrors.WithLabelValues("vendor", "get").Inc()
		util.Error("failed to load vendor profile", util.String("email", email), util.ErrorField(err))
		return nil, fmt.Errorf("loading vendor profile %s: %w", email, err)
	}
	p := *v.(*models.VendorProfile)
	return &p, nil
}
