// Package common defines shared constants and sentinel errors used across
// Profolio layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// Login throttling.
	ErrTooManyAttempts = errors.New("too many attempts")

	// Two-factor errors.
	ErrSecondFactorRequired = errors.New("second factor required")
	ErrInvalidSecondFactor  = errors.New("invalid second factor")
	ErrTwoFactorNotPending  = errors.New("two-factor setup not started")
	ErrTwoFactorEnabled     = errors.New("two-factor already enabled")

	// Document access outside of the caller's prefix.
	ErrForbidden = errors.New("forbidden")
)
