// Package common defines shared constants and sentinel errors used across
// the server layers of CryptexDrive. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound        = errors.New("not found")
	ErrDuplicateIdentity = errors.New("username or email already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation error")

	// Credential and challenge errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("otp requested too soon")
	ErrChallengeMissing   = errors.New("no outstanding otp")
	ErrChallengeExpired   = errors.New("otp expired")
	ErrChallengeMismatch  = errors.New("otp mismatch")

	// Token lifecycle errors. All three are reported as ErrorUnauthorized
	// outside the server.
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRevoked   = errors.New("token revoked")

	// Custody errors.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrDecryptionFailed   = errors.New("decryption failed")
	ErrInvalidName        = errors.New("invalid name")
)
