// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is the identity record. The OTP fields are nil when no challenge is
// outstanding.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	Email        string
	IsAdmin      bool
	OTP          *string
	OTPTime      *time.Time
	LastOTPSent  *time.Time
	CreatedAt    time.Time
}
