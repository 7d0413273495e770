package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"payshield-service/internal/models"
)

const attemptColumns = `id, vendor_email, thread_id, challenge_words, confidence_score, success, timestamp,
	host(ip_address), user_agent`

// InsertVerificationAttempt inserts the attempt and, for a successful one,
// increments the vendor's counter in place within the same transaction.
func (s *Store) InsertVerificationAttempt(ctx context.Context, a *models.VerificationAttempt) error {
	ctx, cancel := s.client.WithTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO verification_attempts
				(id, vendor_email, thread_id, challenge_words, confidence_score, success, timestamp, ip_address, user_agent)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text::inet, $9)`,
			a.ID, a.VendorEmail, a.ThreadID, a.ChallengeWords, a.ConfidenceScore, a.Success, a.Timestamp,
			a.IPAddress, a.UserAgent,
		); err != nil {
			return fmt.Errorf("inserting attempt: %w", err)
		}
		if !a.Success {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			UPDATE vendor_profiles
			SET verification_count = verification_count + 1,
			    last_verification = NOW(),
			    updated_at = NOW()
			WHERE email = $1`,
			a.VendorEmail,
		); err != nil {
			return fmt.Errorf("incrementing verification count: %w", err)
		}
		return nil
	})
}

func (s *Store) GetVerificationAttempt(ctx context.Context, id string) (*models.VerificationAttempt, error) {
	ctx, cancel := s.client.WithTimeout(ctx)
	defer cancel()
	row := s.pool.QueryRow(ctx, "SELECT "+attemptColumns+" FROM verification_attempts WHERE id = $1", id)
	a, err := scanAttempt(row)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// ListVerificationAttempts returns the vendor's attempts, newest first.
func (s *Store) ListVerificationAttempts(ctx context.Context, vendorEmail string, limit int) ([]*models.VerificationAttempt, error) {
	ctx, cancel := s.client.WithTimeout(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx,
		"SELECT "+attemptColumns+" FROM verification_attempts WHERE vendor_email = $1 ORDER BY timestamp DESC LIMIT $2",
		vendorEmail, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.VerificationAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func scanAttempt(row pgx.Row) (*models.VerificationAttempt, error) {
	var a models.VerificationAttempt
	if err := row.Scan(&a.ID, &a.VendorEmail, &a.ThreadID, &a.ChallengeWords, &a.ConfidenceScore,
		&a.Success, &a.Timestamp, &a.IPAddress, &a.UserAgent); err != nil {
		return nil, err
	}
	a.Timestamp = a.Timestamp.UTC()
	return &a, nil
}
