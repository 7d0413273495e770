package models

import "time"

// OAuthToken is the single live credential for a user. A refresh overwrites it.
type OAuthToken struct {
	UserEmail    string    `json:"user_email" db:"user_email"`
	AccessToken  string    `json:"access_token" db:"access_token"`
	RefreshToken string    `json:"refresh_token" db:"refresh_token"`
	Scope        string    `json:"scope" db:"scope"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the access token is unusable at now.
func (t *OAuthToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
