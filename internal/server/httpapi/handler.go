package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dmitrijs2005/passm/internal/logging"
	"github.com/dmitrijs2005/passm/internal/server/models"
	"github.com/dmitrijs2005/passm/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type Accounts interface {
	Register(ctx context.Context, email, phone, rawPassword string) (string, error)
	Login(ctx context.Context, email, rawPassword string) (string, error)
	Verify(token string) (string, error)
	ChangePassword(ctx context.Context, accountID, currentRawPassword, newRawPassword string) error
	Profile(ctx context.Context, accountID string) (*models.Profile, error)
	UpdatePhone(ctx context.Context, accountID, phone string) error
}

type Gate interface {
	RequestElevation(ctx context.Context, accountID string) error
	Elevate(ctx context.Context, accountID, code string) (*models.ElevationGrant, error)
	RequestEmailChange(ctx context.Context, accountID, newEmail string) error
	ConfirmEmailChange(ctx context.Context, accountID, code string) error
}

type Vault interface {
	Create(ctx context.Context, accountID, title, username string, secret []byte) (string, error)
	ListMetadata(ctx context.Context, accountID string) ([]models.EntryMetadata, error)
	ReadSecret(ctx context.Context, accountID, entryID string) (*services.SecretResult, error)
	Update(ctx context.Context, accountID, entryID string, patch models.EntryPatch) error
	Delete(ctx context.Context, accountID, entryID string) error
}

type Exporter interface {
	Export(ctx context.Context, accountID string) (*services.ExportResult, error)
}

// Handler serves the REST API on top of the domain services.
type Handler struct {
	accounts   Accounts
	gate       Gate
	vault      Vault
	exporter   Exporter
	sessionTTL time.Duration
	logger     logging.Logger
}

func NewHandler(accounts Accounts, gate Gate, vault Vault, exporter Exporter, sessionTTL time.Duration, logger logging.Logger) *Handler {
	return &Handler{
		accounts:   accounts,
		gate:       gate,
		vault:      vault,
		exporter:   exporter,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

type message struct {
	Message string `json:"message"`
}

type credentials struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type checkResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId"`
}

type otpRequest struct {
	OTP string `json:"otp"`
}

type elevationResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type emailChangeRequest struct {
	NewEmail string `json:"newEmail"`
}

type profileBody struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type profileUpdateResponse struct {
	Message     string `json:"message"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	OTPRequired bool   `json:"otpRequired,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type passwordRequest struct {
	Title    string `json:"title"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordPatch struct {
	Title    *string `json:"title"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type passwordMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type passwordResponse struct {
	passwordMetadata
	Password      *string `json:"password,omitempty"`
	TwofaRequired bool    `json:"twofaRequired"`
}

type exportResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func toMetadata(m models.EntryMetadata) passwordMetadata {
	return passwordMetadata{
		ID:        m.ID,
		Title:     m.Title,
		Username:  m.Username,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (h *Handler) setTokenCookie(w http.ResponseWriter, r *http.Request, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.accounts.Register(r.Context(), req.Email, req.Phone, req.Password); err != nil {
		h.fail(r.Context(), w, "signup", err)
		return
	}
	writeJSON(w, http.StatusCreated, message{Message: "User registered successfully"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}
	token, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(r.Context(), w, "login", err)
		return
	}
	h.setTokenCookie(w, r, token, int(h.sessionTTL.Seconds()))
	writeJSON(w, http.StatusOK, loginResponse{Message: "Login successful", Token: token})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setTokenCookie(w, r, "", -1)
	writeJSON(w, http.StatusOK, message{Message: "Logged out"})
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	token := tokenFrom(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, checkResponse{})
		return
	}
	id, err := h.accounts.Verify(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, checkResponse{})
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Authenticated: true, UserID: id})
}

func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.RequestElevation(r.Context(), accountIDFrom(r.Context())); err != nil {
		h.fail(r.Context(), w, "send otp", err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "OTP sent"})
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decode(w, r, &req) {
		return
	}
	grant, err := h.gate.Elevate(r.Context(), accountIDFrom(r.Context()), req.OTP)
	if err != nil {
		h.fail(r.Context(), w, "verify otp", err)
		return
	}
	writeJSON(w, http.StatusOK, elevationResponse{Message: "OTP verified", ExpiresAt: grant.ExpiresAt})
}

func (h *Handler) SendEmailChangeOTP(w http.ResponseWriter, r *http.Request) {
	var req emailChangeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.gate.RequestEmailChange(r.Context(), accountIDFrom(r.Context()), req.NewEmail); err != nil {
		h.fail(r.Context(), w, "send email change otp", err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "OTP sent to new email"})
}

func (h *Handler) VerifyEmailChangeOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	id := accountIDFrom(ctx)
	if err := h.gate.ConfirmEmailChange(ctx, id, req.OTP); err != nil {
		h.fail(ctx, w, "verify email change otp", err)
		return
	}
	p, err := h.accounts.Profile(ctx, id)
	if err != nil {
		h.fail(ctx, w, "verify email change otp", err)
		return
	}
	writeJSON(w, http.StatusOK, profileUpdateResponse{Message: "Email updated successfully", Email: p.Email})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.accounts.Profile(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		h.fail(r.Context(), w, "profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profileBody{Email: p.Email, Phone: p.Phone})
}

// UpdateProfile stores the phone when the email is unchanged. A different
// email writes nothing: a code is sent to it instead and 202 is returned.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileBody
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	id := accountIDFrom(ctx)

	current, err := h.accounts.Profile(ctx, id)
	if err != nil {
		h.fail(ctx, w, "update profile", err)
		return
	}

	if req.Email != "" && services.NormalizeEmail(req.Email) != current.Email {
		if err := h.gate.RequestEmailChange(ctx, id, req.Email); err != nil {
			h.fail(ctx, w, "update profile", err)
			return
		}
		writeJSON(w, http.StatusAccepted, profileUpdateResponse{Message: "OTP required for email change", OTPRequired: true})
		return
	}

	if err := h.accounts.UpdatePhone(ctx, id, req.Phone); err != nil {
		h.fail(ctx, w, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profileUpdateResponse{Message: "Profile updated", Email: current.Email, Phone: req.Phone})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), accountIDFrom(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(r.Context(), w, "change password", err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Password changed successfully"})
}

func (h *Handler) ListPasswords(w http.ResponseWriter, r *http.Request) {
	list, err := h.vault.ListMetadata(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		h.fail(r.Context(), w, "list passwords", err)
		return
	}
	out := make([]passwordMetadata, 0, len(list))
	for _, m := range list {
		out = append(out, toMetadata(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreatePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.vault.Create(r.Context(), accountIDFrom(r.Context()), req.Title, req.Username, []byte(req.Password))
	if err != nil {
		h.fail(r.Context(), w, "create password", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// GetPassword answers 200 either way; without elevation the secret is
// withheld and twofaRequired is set.
func (h *Handler) GetPassword(w http.ResponseWriter, r *http.Request) {
	res, err := h.vault.ReadSecret(r.Context(), accountIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(r.Context(), w, "get password", err)
		return
	}
	resp := passwordResponse{passwordMetadata: toMetadata(res.Entry), TwofaRequired: res.ElevationRequired}
	if !res.ElevationRequired {
		secret := string(res.Secret)
		resp.Password = &secret
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordPatch
	if !decode(w, r, &req) {
		return
	}
	patch := models.EntryPatch{Title: req.Title, Username: req.Username}
	if req.Password != nil {
		patch.Secret = []byte(*req.Password)
	}
	if err := h.vault.Update(r.Context(), accountIDFrom(r.Context()), chi.URLParam(r, "id"), patch); err != nil {
		h.fail(r.Context(), w, "update password", err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Password updated"})
}

func (h *Handler) DeletePassword(w http.ResponseWriter, r *http.Request) {
	if err := h.vault.Delete(r.Context(), accountIDFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(r.Context(), w, "delete password", err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Password deleted"})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	res, err := h.exporter.Export(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		h.fail(r.Context(), w, "export", err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{Key: res.Key, URL: res.URL})
}

