// Package common contains shared constants and sentinel errors used across
// CryptexDrive components.
package common

import "time"

const (
	// AuthorizationHeaderName carries "Bearer <token>" on inbound calls.
	AuthorizationHeaderName = "authorization"

	// SessionTokenHeaderName is the session fallback carrier for the same
	// bearer token.
	SessionTokenHeaderName = "session-token"

	// AccessTokenLifetime is fixed; it is not configurable.
	AccessTokenLifetime = 30 * time.Minute

	// QuarantineSuffix is appended to the filename of a quarantined blob.
	QuarantineSuffix = ".quarantine"
)
