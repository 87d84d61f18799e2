package models

import "time"

// AuditEvent is an append-only record of a security-relevant transition.
type AuditEvent struct {
	Timestamp     time.Time
	Username      string
	Action        string
	Status        string
	SourceAddress string
}
