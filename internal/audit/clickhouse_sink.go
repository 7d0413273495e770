package audit

import (
	"context"
	"fmt"

	"payshield-service/internal/bucketing"
	"payshield-service/internal/models"
)

// ClickHouseWriter is satisfied by client.ClickHouseClient.
type ClickHouseWriter interface {
	Exec(ctx context.Context, query string) error
	Insert(ctx context.Context, query string, rows ...[]interface{}) error
}

const clickhouseTable = `
CREATE TABLE IF NOT EXISTS verification_attempts (
	id               String,
	vendor_email     String,
	thread_id        String,
	confidence_score Float64,
	success          UInt8,
	timestamp        DateTime64(3, 'UTC'),
	vendor_bucket    UInt32,
	event_bucket     UInt32,
	date_bucket      Date
) ENGINE = MergeTree
PARTITION BY date_bucket
ORDER BY (vendor_bucket, vendor_email, timestamp)`

const clickhouseInsert = `INSERT INTO verification_attempts
	(id, vendor_email, thread_id, confidence_score, success, timestamp, vendor_bucket, event_bucket, date_bucket)`

// ClickHouseSink appends attempts into the analytics table.
type ClickHouseSink struct {
	writer  ClickHouseWriter
	buckets *bucketing.BucketingManager
}

func NewClickHouseSink(writer ClickHouseWriter, buckets *bucketing.BucketingManager) *ClickHouseSink {
	return &ClickHouseSink{writer: writer, buckets: buckets}
}

// EnsureTable creates the analytics table when it is missing.
func (s *ClickHouseSink) EnsureTable(ctx context.Context) error {
	if err := s.writer.Exec(ctx, clickhouseTable); err != nil {
		return fmt.Errorf("creating clickhouse table: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) ObserveAttempt(ctx context.Context, a *models.VerificationAttempt) error {
	ev := NewAttemptEvent(a, s.buckets)
	var success uint8
	if ev.Success {
		success = 1
	}
	row := []interface{}{
		ev.ID, ev.VendorEmail, ev.ThreadID, ev.ConfidenceScore, success, ev.Timestamp,
		uint32(ev.VendorBucket), uint32(ev.EventBucket), ev.Timestamp,
	}
	if err := s.writer.Insert(ctx, clickhouseInsert, row); err != nil {
		return fmt.Errorf("inserting attempt %s into clickhouse: %w", a.ID, err)
	}
	return nil
}
