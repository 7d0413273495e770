package postgres

import (
	"context"

	"payshield-service/internal/models"
)

func (s *Store) UpsertVendorProfile(ctx context.Context, p *models.VendorProfile) error {
	ctx, cancel := s.client.WithTimeout(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vendor_profiles
			(email, company_name, contact_name, voiceprint_hash, enrollment_date, last_verification,
			 verification_count, confidence_threshold, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (email) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			contact_name = EXCLUDED.contact_name,
			voiceprint_hash = EXCLUDED.voiceprint_hash,
			enrollment_date = EXCLUDED.enrollment_date,
			last_verification = EXCLUDED.last_verification,
			verification_count = EXCLUDED.verification_count,
			confidence_threshold = EXCLUDED.confidence_threshold,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`,
		p.Email, p.CompanyName, p.ContactName, p.VoiceprintHash, p.EnrollmentDate, p.LastVerification,
		p.VerificationCount, p.ConfidenceThreshold, p.ExpiresAt)
	return err
}

// GetVendorProfile skips profiles whose expiry has passed.
func (s *Store) GetVendorProfile(ctx context.Context, email string) (*models.VendorProfile, error) {
	ctx, cancel := s.client.WithTimeout(ctx)
	defer cancel()
	var p models.VendorProfile
	err := s.pool.QueryRow(ctx, `
		SELECT email, company_name, contact_name, voiceprint_hash, enrollment_date, last_verification,
		       verification_count, confidence_threshold, expires_at
		FROM vendor_profiles
		WHERE email = $1 AND expires_at > NOW()`,
		email,
	).Scan(&p.Email, &p.CompanyName, &p.ContactName, &p.VoiceprintHash, &p.EnrollmentDate, &p.LastVerification,
		&p.VerificationCount, &p.ConfidenceThreshold, &p.ExpiresAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.EnrollmentDate = p.EnrollmentDate.UTC()
	p.ExpiresAt = p.ExpiresAt.UTC()
	if p.LastVerification != nil {
		lv := p.LastVerification.UTC()
		p.LastVerification = &lv
	}
	return &p, nil
}
