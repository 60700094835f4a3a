package models

import "time"

// Purpose scopes an OTP challenge. An account holds at most one pending
// challenge per purpose.
type Purpose string

const (
	PurposeLogin       Purpose = "login"
	PurposeEmailChange Purpose = "email_change"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeLogin || p == PurposeEmailChange
}

// Challenge is a pending one-time code. CodeHash is the SHA-256 of the code;
// Target carries the new email address for PurposeEmailChange.
type Challenge struct {
	AccountID string
	Purpose   Purpose
	CodeHash  []byte
	Target    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ElevationGrant marks an account as having passed a fresh OTP check.
type ElevationGrant struct {
	AccountID string
	ExpiresAt time.Time
}

// Active reports whether the grant is still valid at now.
func (g *ElevationGrant) Active(now time.Time) bool {
	return g != nil && now.Before(g.ExpiresAt)
}
