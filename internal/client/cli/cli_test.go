package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/passm/internal/client/client"
	"github.com/dmitrijs2005/passm/internal/client/config"
	gs "github.com/dmitrijs2005/passm/internal/server/grpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	loggedIn  bool
	calls     []string
	email     string
	password  string
	code      string
	entries   []gs.EntryMetadata
	read      *gs.ReadSecretResponse
	update    *gs.UpdateEntryRequest
	created   []byte
	export    *gs.ExportEntriesResponse
	deleteErr error
}

func (f *fakeAPI) record(c string) { f.calls = append(f.calls, c) }

func (f *fakeAPI) Ping(context.Context) error { f.record("ping"); return nil }
func (f *fakeAPI) Register(_ context.Context, email, _, password string) error {
	f.record("register")
	f.email, f.password = email, password
	return nil
}
func (f *fakeAPI) Login(_ context.Context, email, password string) error {
	f.record("login")
	if password != "password1" {
		return errors.New("invalid credentials")
	}
	f.loggedIn = true
	f.email = email
	return nil
}
func (f *fakeAPI) Logout()        { f.record("logout"); f.loggedIn = false }
func (f *fakeAPI) LoggedIn() bool { return f.loggedIn }
func (f *fakeAPI) Profile(context.Context) (*gs.ProfileResponse, error) {
	return &gs.ProfileResponse{Email: f.email, Phone: "+15551234567"}, nil
}
func (f *fakeAPI) ChangePassword(_ context.Context, current, next string) error {
	f.record("passwd " + current + " " + next)
	return nil
}
func (f *fakeAPI) RequestElevation(context.Context) error { f.record("request"); return nil }
func (f *fakeAPI) Elevate(_ context.Context, code string) (time.Time, error) {
	f.code = code
	return time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC), nil
}
func (f *fakeAPI) List(context.Context) ([]gs.EntryMetadata, error) { return f.entries, nil }
func (f *fakeAPI) Create(_ context.Context, title, username string, secret []byte) (string, error) {
	f.record("create " + title + " " + username)
	f.created = append([]byte(nil), secret...)
	return "id-1", nil
}
func (f *fakeAPI) Read(context.Context, string) (*gs.ReadSecretResponse, error) { return f.read, nil }
func (f *fakeAPI) Update(_ context.Context, req *gs.UpdateEntryRequest) error {
	cp := *req
	cp.Secret = append([]byte(nil), req.Secret...)
	f.update = &cp
	return nil
}
func (f *fakeAPI) Delete(_ context.Context, id string) error {
	f.record("delete " + id)
	return f.deleteErr
}
func (f *fakeAPI) Export(context.Context) (*gs.ExportEntriesResponse, error) { return f.export, nil }

func stubPasswords(t *testing.T, values ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) {
		if len(values) == 0 {
			return nil, errors.New("no input")
		}
		v := values[0]
		values = values[1:]
		return []byte(v), nil
	}
}

func newTestApp(api *fakeAPI, input string) (*App, *bytes.Buffer) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	out := &bytes.Buffer{}
	return newApp(cfg, api, strings.NewReader(input), out), out
}

func TestRun_LoginListLogout(t *testing.T) {
	stubPasswords(t, "password1")
	api := &fakeAPI{entries: []gs.EntryMetadata{{ID: "e1", Title: "mail", Username: "me"}}}
	app, out := newTestApp(api, "list\nhelp\nlogin\na@x.io\nhelp\nl\nlogout\nexit\n")

	app.Run(context.Background())

	assert.Equal(t, []string{"ping", "login", "logout"}, api.calls)
	s := out.String()
	assert.Contains(t, s, "Please log in first")
	assert.Contains(t, s, helpGuest)
	assert.Contains(t, s, helpMember)
	assert.Contains(t, s, "passm (a@x.io)> ")
	assert.Contains(t, s, "mail")
	assert.Contains(t, s, "Bye!")
}

func TestRun_CommandErrorKeepsLoopAlive(t *testing.T) {
	stubPasswords(t, "wrong")
	api := &fakeAPI{}
	app, out := newTestApp(api, "login\na@x.io\nbogus\n")

	app.Run(context.Background())

	assert.Contains(t, out.String(), "error: invalid credentials")
	assert.Contains(t, out.String(), "Please log in first")
}

func TestRegister(t *testing.T) {
	stubPasswords(t, "password1")
	api := &fakeAPI{}
	app, out := newTestApp(api, "a@x.io\n\n")

	require.NoError(t, app.Register(context.Background()))
	assert.Equal(t, "a@x.io", api.email)
	assert.Equal(t, "password1", api.password)
	assert.Contains(t, out.String(), "Registered")
}

func TestAddAndShow(t *testing.T) {
	stubPasswords(t, "hunter2")
	api := &fakeAPI{loggedIn: true}
	app, out := newTestApp(api, "mail\nme\n")
	ctx := context.Background()

	require.NoError(t, app.Add(ctx))
	assert.Equal(t, []byte("hunter2"), api.created)
	assert.Contains(t, out.String(), "Created id-1")

	api.read = &gs.ReadSecretResponse{Entry: gs.EntryMetadata{Title: "mail"}, ElevationRequired: true}
	require.NoError(t, app.Show(ctx, "id-1"))
	assert.Contains(t, out.String(), "run 'otp'")

	api.read = &gs.ReadSecretResponse{Entry: gs.EntryMetadata{Title: "mail"}, Secret: []byte("hunter2")}
	require.NoError(t, app.Show(ctx, "id-1"))
	assert.Contains(t, out.String(), "Secret:   hunter2")
}

func TestEdit_EmptyAnswersKeepFields(t *testing.T) {
	stubPasswords(t, "")
	api := &fakeAPI{loggedIn: true}
	app, _ := newTestApp(api, "new title\n\n")

	require.NoError(t, app.Edit(context.Background(), "id-1"))
	require.NotNil(t, api.update)
	assert.Equal(t, "id-1", api.update.ID)
	require.NotNil(t, api.update.Title)
	assert.Equal(t, "new title", *api.update.Title)
	assert.Nil(t, api.update.Username)
	assert.Empty(t, api.update.Secret)
}

func TestOTP(t *testing.T) {
	api := &fakeAPI{loggedIn: true}
	app, out := newTestApp(api, "123456\n")

	require.NoError(t, app.OTP(context.Background()))
	assert.Equal(t, "123456", api.code)
	assert.Contains(t, out.String(), "Verified until")
}

func TestChangePassword(t *testing.T) {
	stubPasswords(t, "old-password", "new-password")
	api := &fakeAPI{loggedIn: true}
	app, _ := newTestApp(api, "")

	require.NoError(t, app.ChangePassword(context.Background()))
	assert.Equal(t, []string{"passwd old-password new-password"}, api.calls)
}

func TestDelete_Error(t *testing.T) {
	api := &fakeAPI{loggedIn: true, deleteErr: client.ErrElevationRequired}
	app, _ := newTestApp(api, "")
	assert.ErrorIs(t, app.Delete(context.Background(), "id-1"), client.ErrElevationRequired)
}

func TestExport(t *testing.T) {
	api := &fakeAPI{loggedIn: true, export: &gs.ExportEntriesResponse{Key: "users/u/exports/2025/03/01/abc.json", URL: "http://s3/abc"}}
	app, out := newTestApp(api, "")

	var gotURL, gotDir, gotName string
	app.download = func(_ context.Context, url string) ([]byte, error) {
		gotURL = url
		return []byte("{}"), nil
	}
	app.save = func(dir, name string, data []byte) (string, error) {
		gotDir, gotName = dir, name
		return "/tmp/" + name, nil
	}

	require.NoError(t, app.Export(context.Background()))
	assert.Equal(t, "http://s3/abc", gotURL)
	assert.Equal(t, "exports", gotDir)
	assert.Equal(t, "abc.json", gotName)
	assert.Contains(t, out.String(), "Export saved to /tmp/abc.json")

	app.download = func(context.Context, string) ([]byte, error) { return nil, errors.New("403") }
	assert.ErrorContains(t, app.Export(context.Background()), "download: 403")
}

func TestDispatch_UsageWithoutID(t *testing.T) {
	api := &fakeAPI{loggedIn: true}
	app, _ := newTestApp(api, "")
	var out bytes.Buffer

	require.NoError(t, dispatch(context.Background(), app, "show", nil, &out))
	assert.Contains(t, out.String(), "Usage: show <id>")

	out.Reset()
	require.NoError(t, dispatch(context.Background(), app, "delete", []string{"e9"}, &out))
	assert.Equal(t, []string{"delete e9"}, api.calls)
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(bufio.NewReader(strings.NewReader("hello world\n")), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)

	got, err = GetSimpleText(bufio.NewReader(strings.NewReader("lastline")), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(bufio.NewReader(strings.NewReader("")), "Name?", &out)
	assert.Error(t, err)
}

func TestGetPassword_Error(t *testing.T) {
	stubPasswords(t)
	var out bytes.Buffer
	_, err := GetPassword("Password", &out)
	assert.Error(t, err)
}
