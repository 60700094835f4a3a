// Package models defines server-side data models persisted in the store.
package models

import "time"

// Account is the identity anchor. Email is unique across accounts.
type Account struct {
	ID           string
	Email        string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the caller-visible part of an Account.
type Profile struct {
	Email string
	Phone string
}
