package service

import "sync"

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	vendors  VendorProfiles
	attempts VerificationAttempts
	tokens   OAuthTokens

	mu           sync.Mutex
	enrollment   *EnrollmentService
	verification *VerificationService
	token        *TokenService
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(vendors VendorProfiles, attempts VerificationAttempts, tokens OAuthTokens) *ServiceFactory {
	return &ServiceFactory{
		vendors:  vendors,
		attempts: attempts,
		tokens:   tokens,
	}
}

// EnrollmentService returns the enrollment service instance (singleton)
func (f *ServiceFactory) EnrollmentService() *EnrollmentService {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enrollment == nil {
		f.enrollment = NewEnrollmentService(f.vendors)
	}
	return f.enrollment
}

// VerificationService returns the verification service instance (singleton)
func (f *ServiceFactory) VerificationService() *VerificationService {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verification == nil {
		f.verification = NewVerificationService(f.vendors, f.attempts)
	}
	return f.verification
}

// TokenService returns the token service instance (singleton)
func (f *ServiceFactory) TokenService() *TokenService {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == nil {
		f.token = NewTokenService(f.tokens)
	}
	return f.token
}
