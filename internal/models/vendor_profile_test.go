package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewVendorProfileDefaults(t *testing.T) {
	enrolled := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := NewVendorProfile(VendorEnrollment{
		Email:          "v@x.com",
		CompanyName:    "X Corp",
		ContactName:    "Vera",
		Voiceprint:     "raw",
		EnrollmentDate: enrolled,
	})

	assert.Equal(t, 92.0, p.ConfidenceThreshold)
	assert.True(t, p.ExpiresAt.Equal(enrolled.Add(90*24*time.Hour)))
	assert.Nil(t, p.LastVerification)
	assert.Zero(t, p.VerificationCount)
}

func TestNewVendorProfileExplicitValues(t *testing.T) {
	enrolled := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := enrolled.Add(24 * time.Hour)
	threshold := 85.5

	p := NewVendorProfile(VendorEnrollment{
		Email:               "v@x.com",
		EnrollmentDate:      enrolled,
		ConfidenceThreshold: &threshold,
		ExpiresAt:           &expires,
	})

	assert.Equal(t, 85.5, p.ConfidenceThreshold)
	assert.True(t, p.ExpiresAt.Equal(expires))
	assert.False(t, p.Expired(enrolled))
	assert.True(t, p.Expired(expires))
}
