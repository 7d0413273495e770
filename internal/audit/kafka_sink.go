package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"payshield-service/internal/bucketing"
	"payshield-service/internal/models"
)

// MessageProducer is satisfied by client.KafkaProducer.
type MessageProducer interface {
	ProduceMessage(ctx context.Context, key, value []byte, headers map[string]string) error
}

// KafkaSink publishes each attempt keyed by vendor email, so one vendor's
// attempts stay ordered within a partition.
type KafkaSink struct {
	producer MessageProducer
	buckets  *bucketing.BucketingManager
}

func NewKafkaSink(producer MessageProducer, buckets *bucketing.BucketingManager) *KafkaSink {
	return &KafkaSink{producer: producer, buckets: buckets}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) ObserveAttempt(ctx context.Context, a *models.VerificationAttempt) error {
	ev := NewAttemptEvent(a, s.buckets)
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding attempt event: %w", err)
	}
	headers := map[string]string{
		"event_type":    "verification_attempt",
		"success":       strconv.FormatBool(a.Success),
		"vendor_bucket": strconv.Itoa(ev.VendorBucket),
	}
	return s.producer.ProduceMessage(ctx, []byte(a.VendorEmail), value, headers)
}
