// Package audit fans stored verification attempts out to Kafka, ClickHouse and Elasticsearch.
// Every sink is best effort; the relational attempt log stays the source of truth.
package audit

import (
	"time"

	"payshield-service/internal/bucketing"
	"payshield-service/internal/models"
)

// AttemptEvent is the published shape of one verification attempt.
type AttemptEvent struct {
	ID              string    `json:"id"`
	VendorEmail     string    `json:"vendor_email"`
	ThreadID        string    `json:"thread_id"`
	ChallengeWords  string    `json:"challenge_words"`
	ConfidenceScore float64   `json:"confidence_score"`
	Success         bool      `json:"success"`
	Timestamp       time.Time `json:"timestamp"`
	IPAddress       string    `json:"ip_address,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
	VendorBucket    int       `json:"vendor_bucket"`
	EventBucket     int       `json:"event_bucket"`
	DateBucket      string    `json:"date_bucket"`
}

func NewAttemptEvent(a *models.VerificationAttempt, bm *bucketing.BucketingManager) AttemptEvent {
	ev := AttemptEvent{
		ID:              a.ID,
		VendorEmail:     a.VendorEmail,
		ThreadID:        a.ThreadID,
		ChallengeWords:  a.ChallengeWords,
		ConfidenceScore: a.ConfidenceScore,
		Success:         a.Success,
		Timestamp:       a.Timestamp.UTC(),
	}
	if a.IPAddress != nil {
		ev.IPAddress = *a.IPAddress
	}
	if a.UserAgent != nil {
		ev.UserAgent = *a.UserAgent
	}
	if bm != nil {
		b := bm.Assign(a.VendorEmail, a.ThreadID, a.Timestamp)
		ev.VendorBucket, ev.EventBucket, ev.DateBucket = b.VendorBucket, b.EventBucket, b.DateBucket
	}
	return ev
}
