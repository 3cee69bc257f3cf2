// Package common defines sentinel errors and shared constants used across the
// Containeer server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrEmailTaken      = errors.New("email already registered")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Identity-provider token errors.
	ErrInvalidToken    = errors.New("invalid token")
	ErrUntrustedIssuer = errors.New("untrusted issuer")

	// Session credential errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidSignature    = errors.New("invalid token signature")
	ErrMalformedToken      = errors.New("malformed token")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Authorization errors.
	ErrForbidden       = errors.New("forbidden")
	ErrAccountInactive = errors.New("account inactive")

	// Object storage errors.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrStorageUnavailable   = errors.New("storage unavailable")
)
