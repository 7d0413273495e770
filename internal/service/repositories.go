package service

import (
	"context"

	"payshield-service/internal/models"
)

// The storage repositories, as the services see them.

type VendorProfiles interface {
	Store(ctx context.Context, profile *models.VendorProfile) error
	Get(ctx context.Context, email string) (*models.VendorProfile, error)
}

type VerificationAttempts interface {
	Store(ctx context.Context, attempt *models.VerificationAttempt) error
	Get(ctx context.Context, id string) (*models.VerificationAttempt, error)
	ListByVendor(ctx context.Context, email string, limit int) ([]*models.VerificationAttempt, error)
}

type OAuthTokens interface {
	Store(ctx context.Context, token *models.OAuthToken) error
	Get(ctx context.Context, email string) (*models.OAuthToken, error)
}
