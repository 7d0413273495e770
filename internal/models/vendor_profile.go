package models

import "time"

const (
	DefaultConfidenceThreshold = 92.0
	DefaultProfileLifetime     = 90 * 24 * time.Hour
)

// VendorProfile is an enrolled vendor's voiceprint record.
// VoiceprintHash always holds a lowercase SHA-256 hex digest once stored.
// LastVerification is nil until the first successful verification.
type VendorProfile struct {
	Email               string     `json:"email" db:"email"`
	CompanyName         string     `json:"company_name" db:"company_name"`
	ContactName         string     `json:"contact_name" db:"contact_name"`
	VoiceprintHash      string     `json:"voiceprint_hash" db:"voiceprint_hash"`
	EnrollmentDate      time.Time  `json:"enrollment_date" db:"enrollment_date"`
	LastVerification    *time.Time `json:"last_verification,omitempty" db:"last_verification"`
	VerificationCount   int64      `json:"verification_count" db:"verification_count"`
	ConfidenceThreshold float64    `json:"confidence_threshold" db:"confidence_threshold"`
	ExpiresAt           time.Time  `json:"expires_at" db:"expires_at"`
}

// VendorEnrollment carries enrollment input. Nil optional fields take defaults.
type VendorEnrollment struct {
	Email               string
	CompanyName         string
	ContactName         string
	Voiceprint          string
	EnrollmentDate      time.Time
	ConfidenceThreshold *float64
	ExpiresAt           *time.Time
}

// NewVendorProfile builds a profile from enrollment input, filling derived defaults:
// threshold 92.0 and expiry at enrollment + 90 days.
func NewVendorProfile(e VendorEnrollment) *VendorProfile {
	threshold := DefaultConfidenceThreshold
	if e.ConfidenceThreshold != nil {
		threshold = *e.ConfidenceThreshold
	}
	expiresAt := e.EnrollmentDate.Add(DefaultProfileLifetime)
	if e.ExpiresAt != nil {
		expiresAt = *e.ExpiresAt
	}
	return &VendorProfile{
		Email:               e.Email,
		CompanyName:         e.CompanyName,
		ContactName:         e.ContactName,
		VoiceprintHash:      e.Voiceprint,
		EnrollmentDate:      e.EnrollmentDate,
		ConfidenceThreshold: threshold,
		ExpiresAt:           expiresAt,
	}
}

// Expired reports whether the profile is excluded from reads at now.
func (p *VendorProfile) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}
