package models

import "time"

// Entry is a stored secret. Secret always holds a cryptox blob, never
// plaintext.
type Entry struct {
	ID        string
	AccountID string
	Title     string
	Username  string
	Secret    []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryMetadata is an Entry without any secret material.
type EntryMetadata struct {
	ID        string
	Title     string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Metadata strips the secret.
func (e *Entry) Metadata() EntryMetadata {
	return EntryMetadata{
		ID:        e.ID,
		Title:     e.Title,
		Username:  e.Username,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// EntryPatch lists the fields of an update; nil leaves a field untouched.
type EntryPatch struct {
	Title    *string
	Username *string
	Secret   []byte
}
