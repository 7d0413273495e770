package service

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrUnknownVendor          = errors.New("unknown vendor, cannot verify")
	ErrVendorAlreadyExists    = errors.New("vendor already exists")
	ErrEnrollmentNotPersisted = errors.New("enrollment was not saved, retry")
	ErrAttemptNotPersisted    = errors.New("verification attempt was not saved")
	ErrTokenNotPersisted      = errors.New("oauth token was not saved")
	ErrNoValidToken           = errors.New("no valid oauth token")
	ErrAttemptNotFound        = errors.New("verification attempt not found")
)
