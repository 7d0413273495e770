package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"payshield-service/internal/codec"
	"payshield-service/internal/metrics"
	"payshield-service/internal/models"
	"payshield-service/internal/util"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500

	observerTimeout = 10 * time.Second
)

// VerificationAttemptRepository appends verification attempts to the audit log.
type VerificationAttemptRepository struct {
	store        VerificationAttemptStore
	state        *CacheState
	cache        *cacheLayer[models.VerificationAttempt]
	historyLimit int
	observers    []AttemptObserver
	flight       singleflight.Group
	notifying    sync.WaitGroup
}

// NewVerificationAttemptRepository builds the repository. historyLimit is the
// ListByVendor default when the caller passes no limit.
func NewVerificationAttemptRepository(store VerificationAttemptStore, state *CacheState, ttl time.Duration, historyLimit int, observers ...AttemptObserver) *VerificationAttemptRepository {
	if historyLimit <= 0 || historyLimit > MaxHistoryLimit {
		historyLimit = DefaultHistoryLimit
	}
	return &VerificationAttemptRepository{
		store: store,
		state: state,
		cache: &cacheLayer[models.VerificationAttempt]{
			state:  state,
			record: "verification",
			prefix: VerificationKeyPrefix,
			ttl:    ttl,
			encode: codec.EncodeVerificationAttempt,
			decode: codec.DecodeVerificationAttempt,
		},
		historyLimit: historyLimit,
		observers:    observers,
	}
}

// Store inserts the attempt. A successful attempt also bumps the vendor's
// verification count and last verification time, and evicts the cached profile.
func (r *VerificationAttemptRepository) Store(ctx context.Context, attempt *models.VerificationAttempt) error {
	if attempt == nil || attempt.ID == "" || attempt.VendorEmail == "" {
		return fmt.Errorf("%w: verification attempt needs an id and vendor email", ErrNotPersisted)
	}
	attempt.Timestamp = storedTime(attempt.Timestamp)

	if err := r.store.InsertVerificationAttempt(ctx, attempt); err != nil {
		metrics.RelationalErrors.WithLabelValues("verification", "insert").Inc()
		util.Error("failed to store verification attempt",
			util.String("attempt_id", attempt.ID),
			util.String("vendor_email", attempt.VendorEmail),
			util.ErrorField(err))
		return fmt.Errorf("%w: verification attempt %s: %w", ErrNotPersisted, attempt.ID, err)
	}

	r.cache.put(ctx, attempt.ID, attempt)
	if attempt.Success {
		r.state.evict(ctx, VendorKeyPrefix+attempt.VendorEmail)
	}
	r.notify(attempt)
	return nil
}

// Get returns the attempt by id, or nil when it does not exist.
func (r *VerificationAttemptRepository) Get(ctx context.Context, id string) (*models.VerificationAttempt, error) {
	if a, ok := r.cache.get(ctx, id); ok {
		return a, nil
	}

	v, err, _ := r.flight.Do(id, func() (interface{}, error) {
		f := r.cache.reserve(id)
		a, err := r.store.GetVerificationAttempt(ctx, id)
		if err != nil {
			r.cache.release(f)
			return nil, err
		}
		r.cache.repopulate(f, a)
		return a, nil
	})
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		metrics.RelationalErrors.WithLabelValues("verification", "get").Inc()
		util.Error("failed to load verification attempt", util.String("attempt_id", id), util.ErrorField(err))
		return nil, fmt.Errorf("loading verification attempt %s: %w", id, err)
	}
	a := *v.(*models.VerificationAttempt)
	return &a, nil
}

// ListByVendor returns the vendor's attempts newest first. limit <= 0 uses the
// configured default; larger values are capped at MaxHistoryLimit.
func (r *VerificationAttemptRepository) ListByVendor(ctx context.Context, email string, limit int) ([]*models.VerificationAttempt, error) {
	if limit <= 0 {
		limit = r.historyLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	attempts, err := r.store.ListVerificationAttempts(ctx, email, limit)
	if err != nil {
		metrics.RelationalErrors.WithLabelValues("verification", "list").Inc()
		util.Error("failed to list verification attempts", util.String("vendor_email", email), util.ErrorField(err))
		return nil, fmt.Errorf("listing verification attempts for %s: %w", email, err)
	}
	return attempts, nil
}

// Wait blocks until in-flight observer notifications finish.
func (r *VerificationAttemptRepository) Wait() {
	r.notifying.Wait()
}

func (r *VerificationAttemptRepository) notify(attempt *models.VerificationAttempt) {
	if len(r.observers) == 0 {
		return
	}
	snapshot := *attempt
	for _, o := range r.observers {
		r.notifying.Add(1)
		go func(o AttemptObserver) {
			defer r.notifying.Done()
			defer func() {
				if p := recover(); p != nil {
					util.Error("attempt observer panicked", util.String("observer", o.Name()), util.Any("panic", p))
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
			defer cancel()
			if err := o.ObserveAttempt(ctx, &snapshot); err != nil {
				metrics.AuditPublishFailures.WithLabelValues(o.Name()).Inc()
				util.Warn("attempt observer failed",
					util.String("observer", o.Name()),
					util.String("attempt_id", snapshot.ID),
					util.ErrorField(err))
			}
		}(o)
	}
}
