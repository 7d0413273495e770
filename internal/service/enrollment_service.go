package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"payshield-service/internal/models"
	"payshield-service/internal/util"
)

type EnrollRequest struct {
	Email               string     `json:"email"`
	CompanyName         string     `json:"company_name"`
	ContactName         string     `json:"contact_name"`
	Voiceprint          string     `json:"voiceprint"`
	ConfidenceThreshold *float64   `json:"confidence_threshold,omitempty"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	// Replace allows re-enrolling a vendor that already has an active profile.
	Replace bool `json:"replace,omitempty"`
}

// EnrollmentService creates vendor badges.
type EnrollmentService struct {
	vendors VendorProfiles
	now     func() time.Time
}

func NewEnrollmentService(vendors VendorProfiles) *EnrollmentService {
	return &EnrollmentService{vendors: vendors, now: time.Now}
}

// Enroll stores a new vendor profile. It fails with ErrVendorAlreadyExists when
// an active profile exists and Replace is unset, and with ErrEnrollmentNotPersisted
// when storage fails; only the latter is worth retrying.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.VendorProfile, error) {
	email := util.NormalizeEmail(req.Email)
	if err := validateEnrollment(email, req); err != nil {
		return nil, err
	}

	existing, err := s.vendors.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnrollmentNotPersisted, err)
	}
	if existing != nil && !req.Replace {
		return nil, ErrVendorAlreadyExists
	}

	profile := models.NewVendorProfile(models.VendorEnrollment{
		Email:               email,
		CompanyName:         strings.TrimSpace(req.CompanyName),
		ContactName:         strings.TrimSpace(req.ContactName),
		Voiceprint:          req.Voiceprint,
		EnrollmentDate:      s.now().UTC(),
		ConfidenceThreshold: req.ConfidenceThreshold,
		ExpiresAt:           req.ExpiresAt,
	})
	if err := s.vendors.Store(ctx, profile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnrollmentNotPersisted, err)
	}

	util.Info("vendor enrolled",
		util.String("email", email),
		util.Time("expires_at", profile.ExpiresAt),
		util.Bool("replaced", existing != nil))
	return profile, nil
}

func validateEnrollment(email string, req EnrollRequest) error {
	switch {
	case !util.ValidEmail(email):
		return fmt.Errorf("%w: email %q", ErrInvalidInput, req.Email)
	case strings.TrimSpace(req.CompanyName) == "":
		return fmt.Errorf("%w: company name is required", ErrInvalidInput)
	case strings.TrimSpace(req.ContactName) == "":
		return fmt.Errorf("%w: contact name is required", ErrInvalidInput)
	case util.ContainsSuspicious(req.CompanyName) || util.ContainsSuspicious(req.ContactName):
		return fmt.Errorf("%w: names must not contain markup", ErrInvalidInput)
	case req.Voiceprint == "":
		return fmt.Errorf("%w: voiceprint is required", ErrInvalidInput)
	case req.ConfidenceThreshold != nil && (*req.ConfidenceThreshold < 0 || *req.ConfidenceThreshold > 100):
		return fmt.Errorf("%w: confidence threshold must be within 0-100", ErrInvalidInput)
	}
	return nil
}
