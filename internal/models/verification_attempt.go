package models

import "time"

// VerificationAttempt is one append-only audit entry. It is never updated after insert.
// IPAddress and UserAgent are nil when the requester did not supply them.
type VerificationAttempt struct {
	ID              string    `json:"id" db:"id"`
	VendorEmail     string    `json:"vendor_email" db:"vendor_email"`
	ThreadID        string    `json:"thread_id" db:"thread_id"`
	ChallengeWords  string    `json:"challenge_words" db:"challenge_words"`
	ConfidenceScore float64   `json:"confidence_score" db:"confidence_score"`
	Success         bool      `json:"success" db:"success"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	IPAddress       *string   `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent       *string   `json:"user_agent,omitempty" db:"user_agent"`
}
