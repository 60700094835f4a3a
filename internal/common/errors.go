// Package common defines shared constants and sentinel errors used across
// the passm server layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound       = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
	ErrCipher     = errors.New("cipher error")

	// ErrValidation is matched by every user-correctable input error.
	ErrValidation = errors.New("validation error")

	ErrInvalidEmail = &validationError{msg: "invalid email format"}
	ErrInvalidPhone = &validationError{msg: "invalid phone number"}
	ErrWeakPassword = &validationError{msg: "password must be at least 8 characters"}
	ErrInvalidTitle = &validationError{msg: "title is required"}
	ErrInvalidCode  = &validationError{msg: "code must be 6 digits"}
	ErrPasswordLong = &validationError{msg: "password must be at most 72 bytes"}

	// Authentication errors.
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	ErrDuplicateAccount     = errors.New("account already exists")

	// Elevation (step-up OTP) errors.
	ErrElevationRequired  = errors.New("elevation required")
	ErrNoPendingChallenge = errors.New("no pending challenge")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrCodeMismatch       = errors.New("code mismatch")
	ErrRateLimited        = errors.New("too many codes requested")
	ErrDeliveryFailed     = errors.New("code delivery failed")
)

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

// RateLimitError is returned when an account has exhausted its code issuances
// for the current window. It matches ErrRateLimited.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
