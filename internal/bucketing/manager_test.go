package bucketing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"payshield-service/internal/config"
)

func TestBucketsAreStableAndInRange(t *testing.T) {
	cfg := config.FromEnv()
	cfg.Bucketing.VendorBuckets = 16
	cfg.Bucketing.EventBuckets = 4
	bm := NewBucketingManager(cfg)

	b := bm.VendorBucket("v@x.com")
	assert.Equal(t, b, bm.VendorBucket("V@X.com"))
	assert.GreaterOrEqual(t, b, 0)
	assert.Less(t, b, 16)

	for _, id := range []string{"t1", "t2", "t3", "thread-42"} {
		e := bm.EventBucket(id)
		assert.GreaterOrEqual(t, e, 0)
		assert.Less(t, e, 4)
	}
}

func TestAssignUsesUTCDate(t *testing.T) {
	bm := NewBucketingManager(config.FromEnv())
	loc := time.FixedZone("UTC-8", -8*3600)

	a := bm.Assign("v@x.com", "t1", time.Date(2026, 3, 1, 20, 0, 0, 0, loc))
	assert.Equal(t, "2026-03-02", a.DateBucket)
}

func TestNonPositiveBucketCountsFallBack(t *testing.T) {
	cfg := config.FromEnv()
	cfg.Bucketing.VendorBuckets = 0
	cfg.Bucketing.EventBuckets = -1
	bm := NewBucketingManager(cfg)

	assert.NotPanics(t, func() {
		bm.VendorBucket("v@x.com")
		bm.EventBucket("t1")
	})
}
