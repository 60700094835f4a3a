package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/cryptox"
	"github.com/dmitrijs2005/passm/internal/logging"
	"github.com/dmitrijs2005/passm/internal/server/auth"
	"github.com/dmitrijs2005/passm/internal/server/config"
	"github.com/dmitrijs2005/passm/internal/server/models"
	"github.com/dmitrijs2005/passm/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passm/internal/timex"
	"github.com/google/uuid"
)

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if !emailRe.MatchString(email) {
		return common.ErrInvalidEmail
	}
	return nil
}

func validatePhone(phone string) error {
	if phone != "" && !phoneRe.MatchString(phone) {
		return common.ErrInvalidPhone
	}
	return nil
}

func validatePassword(raw string) error {
	if len(raw) < common.MinPasswordLength {
		return common.ErrWeakPassword
	}
	return nil
}

// AccountService registers accounts, signs sessions in and manages the
// profile. Session tokens are stateless JWTs.
type AccountService struct {
	store      repomanager.Store
	clock      timex.Clock
	log        logging.Logger
	jwtSecret  []byte
	sessionTTL time.Duration
	bcryptCost int
	dummyHash  func() string
}

// NewAccountService constructs an AccountService from server config.
func NewAccountService(store repomanager.Store, cfg *config.Config, clock timex.Clock, log logging.Logger) *AccountService {
	cost := cfg.BcryptCost
	return &AccountService{
		store:      store,
		clock:      clock,
		log:        log.With("module", "accounts"),
		jwtSecret:  []byte(cfg.SecretKey),
		sessionTTL: cfg.SessionTTL,
		bcryptCost: cost,
		dummyHash: sync.OnceValue(func() string {
			pw, _ := common.MakeRandHexString(16)
			h, _ := cryptox.HashPassword(pw, cost)
			return h
		}),
	}
}

// Register creates an account and returns its id.
func (s *AccountService) Register(ctx context.Context, email, phone, rawPassword string) (string, error) {
	email = NormalizeEmail(email)
	phone = strings.TrimSpace(phone)

	if err := validateEmail(email); err != nil {
		return "", err
	}
	if err := validatePassword(rawPassword); err != nil {
		return "", err
	}
	if err := validatePhone(phone); err != nil {
		return "", err
	}

	hash, err := cryptox.HashPassword(rawPassword, s.bcryptCost)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return "", err
		}
		s.log.Error(ctx, "password hashing failed", "error", err)
		return "", common.ErrorInternal
	}

	now := s.clock.Now()
	a := &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Repos().Accounts.Create(ctx, a); err != nil {
		return "", storeFailure(ctx, s.log, "register", err)
	}

	s.log.Info(ctx, "account registered", "account_id", a.ID)
	return a.ID, nil
}

// Login checks credentials and issues a session token. Unknown email and
// wrong password yield the same error.
func (s *AccountService) Login(ctx context.Context, email, rawPassword string) (string, error) {
	a, err := s.store.Repos().Accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.CheckPassword(s.dummyHash(), rawPassword)
			return "", common.ErrInvalidCredentials
		}
		return "", storeFailure(ctx, s.log, "login", err)
	}

	if !cryptox.CheckPassword(a.PasswordHash, rawPassword) {
		return "", common.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(a.ID, s.jwtSecret, s.clock.Now(), s.sessionTTL)
	if err != nil {
		s.log.Error(ctx, "token signing failed", "error", err)
		return "", common.ErrorInternal
	}
	return token, nil
}

// Verify validates a session token and returns the account id it names.
// It does no I/O.
func (s *AccountService) Verify(token string) (string, error) {
	return auth.GetAccountIDFromToken(token, s.jwtSecret, s.clock.Now)
}

// ChangePassword replaces the password after checking the current one.
func (s *AccountService) ChangePassword(ctx context.Context, accountID, currentRawPassword, newRawPassword string) error {
	if err := validatePassword(newRawPassword); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(newRawPassword, s.bcryptCost)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return err
		}
		s.log.Error(ctx, "password hashing failed", "error", err)
		return common.ErrorInternal
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if err := r.Accounts.Lock(ctx, accountID); err != nil {
			return err
		}
		a, err := r.Accounts.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		if !cryptox.CheckPassword(a.PasswordHash, currentRawPassword) {
			return common.ErrWrongCurrentPassword
		}
		a.PasswordHash = hash
		a.UpdatedAt = s.clock.Now()
		return r.Accounts.Update(ctx, a)
	})
	if err != nil {
		return storeFailure(ctx, s.log, "change password", err)
	}

	s.log.Info(ctx, "password changed", "account_id", accountID)
	return nil
}

// Profile returns the account's email and phone.
func (s *AccountService) Profile(ctx context.Context, accountID string) (*models.Profile, error) {
	a, err := s.store.Repos().Accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, storeFailure(ctx, s.log, "profile", err)
	}
	return &models.Profile{Email: a.Email, Phone: a.Phone}, nil
}

// UpdatePhone stores a new phone number. An empty phone clears it.
func (s *AccountService) UpdatePhone(ctx context.Context, accountID, phone string) error {
	phone = strings.TrimSpace(phone)
	if err := validatePhone(phone); err != nil {
		return err
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if err := r.Accounts.Lock(ctx, accountID); err != nil {
			return err
		}
		a, err := r.Accounts.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		a.Phone = phone
		a.UpdatedAt = s.clock.Now()
		return r.Accounts.Update(ctx, a)
	})
	return storeFailure(ctx, s.log, "update phone", err)
}
