package grpc

import "time"

// Empty is used where a call has no payload.
type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	AccountID string `json:"account_id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

type CheckResponse struct {
	AccountID string `json:"account_id"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ProfileResponse struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type UpdatePhoneRequest struct {
	Phone string `json:"phone"`
}

type CodeRequest struct {
	Code string `json:"code"`
}

type ElevateResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

type RequestEmailChangeRequest struct {
	NewEmail string `json:"new_email"`
}

// EntryMetadata describes an entry without its secret.
type EntryMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateEntryRequest struct {
	Title    string `json:"title"`
	Username string `json:"username"`
	Secret   []byte `json:"secret"`
}

type CreateEntryResponse struct {
	ID string `json:"id"`
}

type ListEntriesResponse struct {
	Entries []EntryMetadata `json:"entries"`
}

type EntryRequest struct {
	ID string `json:"id"`
}

type ReadSecretResponse struct {
	Entry             EntryMetadata `json:"entry"`
	Secret            []byte        `json:"secret,omitempty"`
	ElevationRequired bool          `json:"elevation_required"`
}

// UpdateEntryRequest leaves absent fields untouched. A null or missing
// secret keeps the stored one; an empty string sets an empty secret.
type UpdateEntryRequest struct {
	ID       string  `json:"id"`
	Title    *string `json:"title,omitempty"`
	Username *string `json:"username,omitempty"`
	Secret   []byte  `json:"secret"`
}

type ExportEntriesResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
