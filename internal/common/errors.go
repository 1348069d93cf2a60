// Package common defines shared constants and sentinel errors used across
// client and server layers of fluma. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")
	ErrValidation = errors.New("validation error")

	// Signup errors.
	ErrDuplicateUser = errors.New("user already registered")

	// Login errors. Every credential failure collapses into this one value.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// Token errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Reissue errors.
	ErrLoggedOut     = errors.New("user is logged out")
	ErrTokenMismatch = errors.New("refresh token does not match")
)
