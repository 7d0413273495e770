// Package codec converts storage records to and from the flat string maps kept in the cache.
//
// Timestamps are RFC 3339 with nanoseconds in UTC. Optional fields are omitted
// from the map when nil, and a missing key decodes back to nil.
package codec

import (
	"fmt"
	"strconv"
	"time"

	"payshield-service/internal/models"
)

const timeLayout = time.RFC3339Nano

// Field names shared by every record shape.
const (
	FieldUserEmail           = "user_email"
	FieldAccessToken         = "access_token"
	FieldRefreshToken        = "refresh_token"
	FieldScope               = "scope"
	FieldExpiresAt           = "expires_at"
	FieldCreatedAt           = "created_at"
	FieldEmail               = "email"
	FieldCompanyName         = "company_name"
	FieldContactName         = "contact_name"
	FieldVoiceprintHash      = "voiceprint_hash"
	FieldEnrollmentDate      = "enrollment_date"
	FieldLastVerification    = "last_verification"
	FieldVerificationCount   = "verification_count"
	FieldConfidenceThreshold = "confidence_threshold"
	FieldID                  = "id"
	FieldVendorEmail         = "vendor_email"
	FieldThreadID            = "thread_id"
	FieldChallengeWords      = "challenge_words"
	FieldConfidenceScore     = "confidence_score"
	FieldSuccess             = "success"
	FieldTimestamp           = "timestamp"
	FieldIPAddress           = "ip_address"
	FieldUserAgent           = "user_agent"
)

func EncodeOAuthToken(t *models.OAuthToken) map[string]string {
	return map[string]string{
		FieldUserEmail:    t.UserEmail,
		FieldAccessToken:  t.AccessToken,
		FieldRefreshToken: t.RefreshToken,
		FieldScope:        t.Scope,
		FieldExpiresAt:    formatTime(t.ExpiresAt),
		FieldCreatedAt:    formatTime(t.CreatedAt),
	}
}

func DecodeOAuthToken(m map[string]string) (*models.OAuthToken, error) {
	d := decoder{m: m}
	t := &models.OAuthToken{
		UserEmail:    d.required(FieldUserEmail),
		AccessToken:  d.required(FieldAccessToken),
		RefreshToken: m[FieldRefreshToken],
		Scope:        m[FieldScope],
		ExpiresAt:    d.time(FieldExpiresAt),
		CreatedAt:    d.time(FieldCreatedAt),
	}
	if d.err != nil {
		return nil, fmt.Errorf("decoding oauth token: %w", d.err)
	}
	return t, nil
}

func EncodeVendorProfile(p *models.VendorProfile) map[string]string {
	m := map[string]string{
		FieldEmail:               p.Email,
		FieldCompanyName:         p.CompanyName,
		FieldContactName:         p.ContactName,
		FieldVoiceprintHash:      p.VoiceprintHash,
		FieldEnrollmentDate:      formatTime(p.EnrollmentDate),
		FieldVerificationCount:   strconv.FormatInt(p.VerificationCount, 10),
		FieldConfidenceThreshold: formatFloat(p.ConfidenceThreshold),
		FieldExpiresAt:           formatTime(p.ExpiresAt),
	}
	if p.LastVerification != nil {
		m[FieldLastVerification] = formatTime(*p.LastVerification)
	}
	return m
}

func DecodeVendorProfile(m map[string]string) (*models.VendorProfile, error) {
	d := decoder{m: m}
	p := &models.VendorProfile{
		Email:               d.required(FieldEmail),
		CompanyName:         m[FieldCompanyName],
		ContactName:         m[FieldContactName],
		VoiceprintHash:      d.required(FieldVoiceprintHash),
		EnrollmentDate:      d.time(FieldEnrollmentDate),
		LastVerification:    d.optionalTime(FieldLastVerification),
		VerificationCount:   d.int(FieldVerificationCount),
		ConfidenceThreshold: d.float(FieldConfidenceThreshold),
		ExpiresAt:           d.time(FieldExpiresAt),
	}
	if d.err != nil {
		return nil, fmt.Errorf("decoding vendor profile: %w", d.err)
	}
	return p, nil
}

func EncodeVerificationAttempt(a *models.VerificationAttempt) map[string]string {
	m := map[string]string{
		FieldID:              a.ID,
		FieldVendorEmail:     a.VendorEmail,
		FieldThreadID:        a.ThreadID,
		FieldChallengeWords:  a.ChallengeWords,
		FieldConfidenceScore: formatFloat(a.ConfidenceScore),
		FieldSuccess:         strconv.FormatBool(a.Success),
		FieldTimestamp:       formatTime(a.Timestamp),
	}
	if a.IPAddress != nil {
		m[FieldIPAddress] = *a.IPAddress
	}
	if a.UserAgent != nil {
		m[FieldUserAgent] = *a.UserAgent
	}
	return m
}

func DecodeVerificationAttempt(m map[string]string) (*models.VerificationAttempt, error) {
	d := decoder{m: m}
	a := &models.VerificationAttempt{
		ID:              d.required(FieldID),
		VendorEmail:     d.required(FieldVendorEmail),
		ThreadID:        m[FieldThreadID],
		ChallengeWords:  m[FieldChallengeWords],
		ConfidenceScore: d.float(FieldConfidenceScore),
		Success:         d.bool(FieldSuccess),
		Timestamp:       d.time(FieldTimestamp),
		IPAddress:       d.optionalString(FieldIPAddress),
		UserAgent:       d.optionalString(FieldUserAgent),
	}
	if d.err != nil {
		return nil, fmt.Errorf("decoding verification attempt: %w", d.err)
	}
	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// decoder keeps the first error so field reads can be chained without checks.
type decoder struct {
	m   map[string]string
	err error
}

func (d *decoder) fail(field string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("field %q: %w", field, err)
	}
}

func (d *decoder) required(field string) string {
	v, ok := d.m[field]
	if !ok || v == "" {
		d.fail(field, fmt.Errorf("missing"))
	}
	return v
}

func (d *decoder) time(field string) time.Time {
	v := d.required(field)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		d.fail(field, err)
	}
	return t.UTC()
}

func (d *decoder) optionalTime(field string) *time.Time {
	v, ok := d.m[field]
	if !ok || v == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		d.fail(field, err)
		return nil
	}
	t = t.UTC()
	return &t
}

func (d *decoder) optionalString(field string) *string {
	v, ok := d.m[field]
	if !ok {
		return nil
	}
	return &v
}

func (d *decoder) int(field string) int64 {
	v := d.required(field)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		d.fail(field, err)
	}
	return n
}

func (d *decoder) float(field string) float64 {
	v := d.required(field)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		d.fail(field, err)
	}
	return f
}

func (d *decoder) bool(field string) bool {
	v := d.required(field)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		d.fail(field, err)
	}
	return b
}
