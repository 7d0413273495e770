package service

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"payshield-service/internal/models"
	"payshield-service/internal/util"
)

type RecordAttemptRequest struct {
	ID              string     `json:"id,omitempty"`
	VendorEmail     string     `json:"vendor_email"`
	ThreadID        string     `json:"thread_id"`
	ChallengeWords  string     `json:"challenge_words"`
	ConfidenceScore float64    `json:"confidence_score"`
	Success         bool       `json:"success"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
	IPAddress       *string    `json:"ip_address,omitempty"`
	UserAgent       *string    `json:"user_agent,omitempty"`
}

// VerificationService is the verification workflow's view of storage.
type VerificationService struct {
	vendors  VendorProfiles
	attempts VerificationAttempts
	now      func() time.Time
}

func NewVerificationService(vendors VendorProfiles, attempts VerificationAttempts) *VerificationService {
	return &VerificationService{vendors: vendors, attempts: attempts, now: time.Now}
}

// VendorForVerification returns the vendor's active profile. A missing profile
// and an unreadable store both come back as ErrUnknownVendor.
func (s *VerificationService) VendorForVerification(ctx context.Context, email string) (*models.VendorProfile, error) {
	email = util.NormalizeEmail(email)
	profile, err := s.vendors.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownVendor, err)
	}
	if profile == nil {
		return nil, ErrUnknownVendor
	}
	return profile, nil
}

// RecordAttempt appends an attempt, filling the id and timestamp when omitted.
func (s *VerificationService) RecordAttempt(ctx context.Context, req RecordAttemptRequest) (*models.VerificationAttempt, error) {
	email := util.NormalizeEmail(req.VendorEmail)
	if !util.ValidEmail(email) {
		return nil, fmt.Errorf("%w: vendor email %q", ErrInvalidInput, req.VendorEmail)
	}
	if req.ThreadID == "" {
		return nil, fmt.Errorf("%w: thread id is required", ErrInvalidInput)
	}
	if req.ConfidenceScore < 0 || req.ConfidenceScore > 100 {
		return nil, fmt.Errorf("%w: confidence score must be within 0-100", ErrInvalidInput)
	}
	if req.IPAddress != nil && net.ParseIP(*req.IPAddress) == nil {
		return nil, fmt.Errorf("%w: ip address %q", ErrInvalidInput, *req.IPAddress)
	}

	attempt := &models.VerificationAttempt{
		ID:              req.ID,
		VendorEmail:     email,
		ThreadID:        req.ThreadID,
		ChallengeWords:  req.ChallengeWords,
		ConfidenceScore: req.ConfidenceScore,
		Success:         req.Success,
		IPAddress:       req.IPAddress,
		UserAgent:       req.UserAgent,
	}
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if req.Timestamp != nil {
		attempt.Timestamp = req.Timestamp.UTC()
	} else {
		attempt.Timestamp = s.now().UTC()
	}

	if err := s.attempts.Store(ctx, attempt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAttemptNotPersisted, err)
	}
	return attempt, nil
}

func (s *VerificationService) Attempt(ctx context.Context, id string) (*models.VerificationAttempt, error) {
	a, err := s.attempts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// History returns the vendor's most recent attempts, newest first.
func (s *VerificationService) History(ctx context.Context, email string, limit int) ([]*models.VerificationAttempt, error) {
	return s.attempts.ListByVendor(ctx, util.NormalizeEmail(email), limit)
}
