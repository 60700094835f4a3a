package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/cryptox"
	"github.com/dmitrijs2005/passm/internal/logging"
	"github.com/dmitrijs2005/passm/internal/server/config"
	"github.com/dmitrijs2005/passm/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passm/internal/server/services"
	"github.com/dmitrijs2005/passm/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type codeSink struct {
	mu    sync.Mutex
	dest  []string
	codes []string
}

func (s *codeSink) SendCode(_ context.Context, destination, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dest = append(s.dest, destination)
	s.codes = append(s.codes, code)
	return nil
}

func (s *codeSink) last(t *testing.T) (string, string) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.codes)
	return s.dest[len(s.dest)-1], s.codes[len(s.codes)-1]
}

type stubExporter struct {
	res *services.ExportResult
	err error
}

func (e *stubExporter) Export(context.Context, string) (*services.ExportResult, error) {
	return e.res, e.err
}

type testAPI struct {
	t        *testing.T
	handler  http.Handler
	clock    *timex.ManualClock
	sink     *codeSink
	exporter *stubExporter
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost

	cipher, err := cryptox.NewCipher(cryptox.DeriveKey([]byte("k"), []byte("salt-salt")), nil)
	require.NoError(t, err)

	api := &testAPI{
		t:        t,
		clock:    timex.NewManualClock(t0),
		sink:     &codeSink{},
		exporter: &stubExporter{},
	}
	store := repomanager.NewMemoryStore()
	log := logging.Nop()
	accounts := services.NewAccountService(store, cfg, api.clock, log)
	gate := services.NewOTPGate(store, api.sink, cfg, api.clock, nil, log)
	vault := services.NewVaultService(store, cipher, gate, api.clock, log)

	api.handler = NewRouter(NewHandler(accounts, gate, vault, api.exporter, cfg.SessionTTL, log), log)
	return api
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login(email string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": email, "password": "password1"})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "password1"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	var lr loginResponse
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &lr))
	return lr.Token
}

func (a *testAPI) elevate(token string) {
	a.t.Helper()
	require.Equal(a.t, http.StatusOK, a.do(http.MethodPost, "/api/auth/send-otp", token, nil).Code)
	_, code := a.sink.last(a.t)
	rec := a.do(http.MethodPost, "/api/auth/verify-otp", token, otpRequest{OTP: code})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSignup_Validation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body any
		code int
		msg  string
	}{
		{"bad json", "nope", http.StatusBadRequest, "invalid request"},
		{"bad email", map[string]string{"email": "x", "password": "password1"}, http.StatusBadRequest, common.ErrInvalidEmail.Error()},
		{"short password", map[string]string{"email": "a@x.io", "password": "short"}, http.StatusBadRequest, common.ErrWeakPassword.Error()},
		{"bad phone", map[string]string{"email": "a@x.io", "password": "password1", "phone": "12"}, http.StatusBadRequest, common.ErrInvalidPhone.Error()},
		{"ok", map[string]string{"email": "a@x.io", "password": "password1"}, http.StatusCreated, "registered"},
		{"duplicate", map[string]string{"email": "A@x.io", "password": "password1"}, http.StatusConflict, common.ErrDuplicateAccount.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/auth/signup", "", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.msg)
		})
	}
}

func TestLogin_SetsCookieAndLogoutClearsIt(t *testing.T) {
	api := newTestAPI(t)
	api.login("a@x.io")

	rec := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.io", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, TokenCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 86400, cookies[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	req.AddCookie(cookies[0])
	check := httptest.NewRecorder()
	api.handler.ServeHTTP(check, req)
	assert.Equal(t, http.StatusOK, check.Code)
	assert.True(t, decodeBody[checkResponse](t, check).Authenticated)

	rec = api.do(http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)
	assert.Negative(t, cleared[0].MaxAge)

	rec = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.io", "password": "password2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), common.ErrInvalidCredentials.Error())
}

func TestCheck_Unauthenticated(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/auth/check", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, decodeBody[checkResponse](t, rec).Authenticated)

	rec = api.do(http.MethodGet, "/api/auth/check", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	api := newTestAPI(t)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/passwords"},
		{http.MethodPost, "/api/passwords"},
		{http.MethodGet, "/api/auth/profile"},
		{http.MethodPost, "/api/auth/send-otp"},
		{http.MethodDelete, "/api/passwords/abc"},
	} {
		rec := api.do(r.method, r.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.path)
	}
}

func TestPasswords_ElevationFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("a@x.io")

	rec := api.do(http.MethodPost, "/api/passwords", token, passwordRequest{Title: "mail", Username: "me", Password: "hunter2"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[map[string]string](t, rec)["id"]
	require.NotEmpty(t, id)

	rec = api.do(http.MethodGet, "/api/passwords", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]passwordMetadata](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "mail", list[0].Title)
	assert.NotContains(t, rec.Body.String(), "hunter2")

	rec = api.do(http.MethodGet, "/api/passwords/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[passwordResponse](t, rec)
	assert.True(t, got.TwofaRequired)
	assert.Nil(t, got.Password)
	assert.Equal(t, "me", got.Username)

	title := "work"
	rec = api.do(http.MethodPut, "/api/passwords/"+id, token, passwordPatch{Title: &title})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, decodeBody[errorBody](t, rec).TwofaRequired)

	rec = api.do(http.MethodDelete, "/api/passwords/"+id, token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	api.elevate(token)

	rec = api.do(http.MethodGet, "/api/passwords/"+id, token, nil)
	got = decodeBody[passwordResponse](t, rec)
	assert.False(t, got.TwofaRequired)
	require.NotNil(t, got.Password)
	assert.Equal(t, "hunter2", *got.Password)

	secret := ""
	rec = api.do(http.MethodPut, "/api/passwords/"+id, token, passwordPatch{Title: &title, Password: &secret})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got = decodeBody[passwordResponse](t, api.do(http.MethodGet, "/api/passwords/"+id, token, nil))
	assert.Equal(t, "work", got.Title)
	require.NotNil(t, got.Password)
	assert.Empty(t, *got.Password)

	api.clock.Advance(5 * time.Minute)
	rec = api.do(http.MethodDelete, "/api/passwords/"+id, token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	api.elevate(token)
	assert.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/api/passwords/"+id, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/passwords/"+id, token, nil).Code)
}

func TestPasswords_OtherAccountSeesNotFound(t *testing.T) {
	api := newTestAPI(t)
	alice := api.login("alice@x.io")
	bob := api.login("bob@x.io")

	rec := api.do(http.MethodPost, "/api/passwords", alice, passwordRequest{Title: "mail", Password: "x"})
	id := decodeBody[map[string]string](t, rec)["id"]

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/passwords/"+id, bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/passwords/not-a-uuid", bob, nil).Code)
}

func TestVerifyOTP_Errors(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("a@x.io")

	rec := api.do(http.MethodPost, "/api/auth/verify-otp", token, otpRequest{OTP: "123456"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), common.ErrNoPendingChallenge.Error())

	rec = api.do(http.MethodPost, "/api/auth/verify-otp", token, otpRequest{OTP: "12"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendOTP_RateLimited(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("a@x.io")

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/auth/send-otp", token, nil).Code)
	}
	rec := api.do(http.MethodPost, "/api/auth/send-otp", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
}

func TestProfile_UpdateAndEmailChange(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("a@x.io")

	rec := api.do(http.MethodPut, "/api/auth/profile", token, profileBody{Email: "a@x.io", Phone: "+15551234567"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/auth/profile", token, nil)
	assert.Equal(t, profileBody{Email: "a@x.io", Phone: "+15551234567"}, decodeBody[profileBody](t, rec))

	rec = api.do(http.MethodPut, "/api/auth/profile", token, profileBody{Email: "b@x.io", Phone: "+15551234567"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[profileUpdateResponse](t, rec).OTPRequired)

	dest, code := api.sink.last(t)
	assert.Equal(t, "b@x.io", dest)

	rec = api.do(http.MethodPost, "/api/auth/verify-email-change-otp", token, otpRequest{OTP: code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "b@x.io", decodeBody[profileUpdateResponse](t, rec).Email)

	rec = api.do(http.MethodPost, "/api/auth/send-email-change-otp", token, emailChangeRequest{NewEmail: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfile_EmailChangeLeavesPhoneAlone(t *testing.T) {
	tests := []struct {
		name     string
		sendOTPs int
		email    string
		want     int
	}{
		{"invalid email", 0, "not-an-email", http.StatusBadRequest},
		{"rate limited", 5, "b@x.io", http.StatusTooManyRequests},
		{"code sent", 0, "b@x.io", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			token := api.login("a@x.io")
			for i := 0; i < tt.sendOTPs; i++ {
				require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/auth/send-otp", token, nil).Code)
			}

			rec := api.do(http.MethodPut, "/api/auth/profile", token, profileBody{Email: tt.email, Phone: "+15551234567"})
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())

			rec = api.do(http.MethodGet, "/api/auth/profile", token, nil)
			assert.Equal(t, profileBody{Email: "a@x.io"}, decodeBody[profileBody](t, rec))
		})
	}
}

func TestChangePassword(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("a@x.io")

	rec := api.do(http.MethodPut, "/api/auth/change-password", token, changePasswordRequest{CurrentPassword: "wrong-one", NewPassword: "password2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), common.ErrWrongCurrentPassword.Error())

	rec = api.do(http.MethodPut, "/api/auth/change-password", token, changePasswordRequest{CurrentPassword: "password1", NewPassword: "password2"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.io", "password": "password2"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExport(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("a@x.io")

	api.exporter.err = common.ErrElevationRequired
	rec := api.do(http.MethodPost, "/api/passwords/export", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	api.exporter.err = nil
	api.exporter.res = &services.ExportResult{Key: "k", URL: "https://s3/k"}
	rec = api.do(http.MethodPost, "/api/passwords/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, exportResponse{Key: "k", URL: "https://s3/k"}, decodeBody[exportResponse](t, rec))
}

func TestFail_UnknownErrorIsHidden(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(logging.BackendSlog, &buf)
	require.NoError(t, err)
	h := &Handler{logger: log}

	rec := httptest.NewRecorder()
	h.fail(context.Background(), rec, "op", assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal error")
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	assert.True(t, strings.Contains(buf.String(), assert.AnError.Error()))
}

func TestTokenFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, tokenFrom(req))

	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", tokenFrom(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", tokenFrom(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "from-cookie", tokenFrom(req))
}
