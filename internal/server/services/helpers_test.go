package services

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/passm/internal/cryptox"
	"github.com/dmitrijs2005/passm/internal/logging"
	"github.com/dmitrijs2005/passm/internal/server/config"
	"github.com/dmitrijs2005/passm/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passm/internal/timex"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type sentCode struct {
	Destination string
	Code        string
}

// recordingSender remembers every code it is asked to deliver.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (s *recordingSender) SendCode(_ context.Context, destination, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentCode{Destination: destination, Code: code})
	return nil
}

func (s *recordingSender) last(t *testing.T) sentCode {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent, "no code was sent")
	return s.sent[len(s.sent)-1]
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fixture struct {
	cfg      *config.Config
	store    *repomanager.MemoryStore
	clock    *timex.ManualClock
	sender   *recordingSender
	logBuf   *bytes.Buffer
	accounts *AccountService
	gate     *OTPGate
	vault    *VaultService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost

	buf := &bytes.Buffer{}
	log, err := logging.New(logging.BackendSlog, buf)
	require.NoError(t, err)

	cipher, err := cryptox.NewCipher(cryptox.DeriveKey([]byte("k"), []byte("salt-salt")), nil)
	require.NoError(t, err)

	f := &fixture{
		cfg:    cfg,
		store:  repomanager.NewMemoryStore(),
		clock:  timex.NewManualClock(t0),
		sender: &recordingSender{},
		logBuf: buf,
	}
	f.accounts = NewAccountService(f.store, cfg, f.clock, log)
	f.gate = NewOTPGate(f.store, f.sender, cfg, f.clock, nil, log)
	f.vault = NewVaultService(f.store, cipher, f.gate, f.clock, log)
	return f
}

func (f *fixture) register(t *testing.T, email string) string {
	t.Helper()
	id, err := f.accounts.Register(context.Background(), email, "", "password1")
	require.NoError(t, err)
	return id
}

func (f *fixture) elevate(t *testing.T, accountID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.gate.RequestElevation(ctx, accountID))
	_, err := f.gate.Elevate(ctx, accountID, f.sender.last(t).Code)
	require.NoError(t, err)
}
