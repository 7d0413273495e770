// Package bucketing assigns stable murmur3 buckets to vendors and events for analytics partitioning.
package bucketing

import (
	"hash"
	"strings"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"payshield-service/internal/config"
)

type BucketingManager struct {
	vendorBuckets int
	eventBuckets  int
	hasherPool    sync.Pool
}

type BucketAssignment struct {
	VendorBucket int    `json:"vendor_bucket"`
	EventBucket  int    `json:"event_bucket"`
	DateBucket   string `json:"date_bucket"`
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	bm := &BucketingManager{
		vendorBuckets: positive(cfg.Bucketing.VendorBuckets, 256),
		eventBuckets:  positive(cfg.Bucketing.EventBuckets, 64),
	}

	// Create pool of hash functions to avoid allocation overhead
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}
	return bm
}

// VendorBucket returns the vendor's bucket in [0, vendorBuckets). Email case is ignored.
func (bm *BucketingManager) VendorBucket(email string) int {
	return bm.getBucket(strings.ToLower(email), bm.vendorBuckets)
}

// EventBucket returns the bucket for an event identifier such as a thread id.
func (bm *BucketingManager) EventBucket(identifier string) int {
	return bm.getBucket(identifier, bm.eventBuckets)
}

// DateBucket returns the UTC day of t.
func (bm *BucketingManager) DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Assign returns every bucket for one verification event.
func (bm *BucketingManager) Assign(vendorEmail, threadID string, at time.Time) BucketAssignment {
	return BucketAssignment{
		VendorBucket: bm.VendorBucket(vendorEmail),
		EventBucket:  bm.EventBucket(threadID),
		DateBucket:   bm.DateBucket(at),
	}
}

func (bm *BucketingManager) getBucket(key string, numBuckets int) int {
	return int(bm.getHash(key) % uint64(numBuckets))
}

func (bm *BucketingManager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}

func positive(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
