package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/logging"
	"github.com/dmitrijs2005/passm/internal/server/config"
	"github.com/dmitrijs2005/passm/internal/server/delivery"
	"github.com/dmitrijs2005/passm/internal/server/models"
	"github.com/dmitrijs2005/passm/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passm/internal/timex"
)

const codeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// OTPGate issues and verifies one-time codes and keeps the elevation grants
// they unlock. Per-account work is serialised through the account row lock;
// the issuance counter and the pending challenges live in the store.
type OTPGate struct {
	store        repomanager.Store
	sender       delivery.Sender
	clock        timex.Clock
	random       io.Reader
	log          logging.Logger
	codeTTL      time.Duration
	elevationTTL time.Duration
	rateLimit    int
	rateWindow   time.Duration
}

// NewOTPGate constructs a gate. A nil random falls back to crypto/rand.
func NewOTPGate(store repomanager.Store, sender delivery.Sender, cfg *config.Config, clock timex.Clock, random io.Reader, log logging.Logger) *OTPGate {
	if random == nil {
		random = rand.Reader
	}
	return &OTPGate{
		store:        store,
		sender:       sender,
		clock:        clock,
		random:       random,
		log:          log.With("module", "otp"),
		codeTTL:      cfg.OTPTTL,
		elevationTTL: cfg.ElevationTTL,
		rateLimit:    cfg.OTPRateLimit,
		rateWindow:   cfg.OTPRateWindow,
	}
}

func hashCode(code string) []byte {
	sum := sha256.Sum256([]byte(code))
	return sum[:]
}

func (g *OTPGate) newCode() (string, error) {
	n, err := rand.Int(g.random, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func validCode(code string) bool {
	if len(code) != codeDigits {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Issue sends a fresh login code to the account's email, replacing any
// pending one.
func (g *OTPGate) Issue(ctx context.Context, accountID string, purpose models.Purpose) error {
	if purpose != models.PurposeLogin {
		return fmt.Errorf("%w: purpose %q needs a target", common.ErrValidation, purpose)
	}
	return g.issue(ctx, accountID, purpose, "")
}

// RequestElevation issues a login-purpose code.
func (g *OTPGate) RequestElevation(ctx context.Context, accountID string) error {
	return g.Issue(ctx, accountID, models.PurposeLogin)
}

// RequestEmailChange issues an email-change code to newEmail, which becomes
// the account email once the code is confirmed.
func (g *OTPGate) RequestEmailChange(ctx context.Context, accountID, newEmail string) error {
	newEmail = NormalizeEmail(newEmail)
	if err := validateEmail(newEmail); err != nil {
		return err
	}
	return g.issue(ctx, accountID, models.PurposeEmailChange, newEmail)
}

func (g *OTPGate) issue(ctx context.Context, accountID string, purpose models.Purpose, target string) error {
	code, err := g.newCode()
	if err != nil {
		g.log.Error(ctx, "code generation failed", "error", err)
		return common.ErrorInternal
	}
	codeHash := hashCode(code)
	now := g.clock.Now()

	var destination string
	err = g.store.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if err := r.Accounts.Lock(ctx, accountID); err != nil {
			return err
		}
		a, err := r.Accounts.GetByID(ctx, accountID)
		if err != nil {
			return err
		}

		count, oldest, err := r.Issuances.Window(ctx, accountID, now.Add(-g.rateWindow))
		if err != nil {
			return err
		}
		if count >= g.rateLimit {
			return &common.RateLimitError{RetryAfter: g.retryAfter(oldest, now)}
		}

		destination = a.Email
		if purpose == models.PurposeEmailChange {
			if _, err := r.Accounts.GetByEmail(ctx, target); err == nil {
				return common.ErrDuplicateAccount
			} else if !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			destination = target
		}

		if err := r.Issuances.Record(ctx, accountID, now); err != nil {
			return err
		}
		return r.Challenges.Upsert(ctx, &models.Challenge{
			AccountID: accountID,
			Purpose:   purpose,
			CodeHash:  codeHash,
			Target:    target,
			ExpiresAt: now.Add(g.codeTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		return storeFailure(ctx, g.log, "issue code", err)
	}

	if err := g.sender.SendCode(ctx, destination, code); err != nil {
		g.log.Error(ctx, "code delivery failed", "account_id", accountID, "purpose", string(purpose), "error", err)
		if _, derr := g.store.Repos().Challenges.DeleteIfCode(ctx, accountID, purpose, codeHash); derr != nil {
			g.log.Error(ctx, "undelivered code not withdrawn", "account_id", accountID, "error", derr)
		}
		return common.ErrDeliveryFailed
	}

	g.log.Info(ctx, "code issued", "account_id", accountID, "purpose", string(purpose))
	return nil
}

func (g *OTPGate) retryAfter(oldest, now time.Time) time.Duration {
	if oldest.IsZero() {
		return g.rateWindow
	}
	if d := oldest.Add(g.rateWindow).Sub(now); d > 0 {
		return d
	}
	return 0
}

// isVerdict reports whether err is an outcome of checking a code rather than
// a failure. Verdicts must not roll the unit of work back.
func isVerdict(err error) bool {
	return errors.Is(err, common.ErrNoPendingChallenge) ||
		errors.Is(err, common.ErrChallengeExpired) ||
		errors.Is(err, common.ErrCodeMismatch) ||
		errors.Is(err, common.ErrDuplicateAccount)
}

// consume runs the one-shot check inside a unit of work. Expired challenges
// are removed, mismatches leave the challenge in place, a match removes it.
func (g *OTPGate) consume(ctx context.Context, r repomanager.Repositories, accountID string, purpose models.Purpose, code string, now time.Time) (*models.Challenge, error) {
	if err := r.Accounts.Lock(ctx, accountID); err != nil {
		return nil, err
	}

	c, err := r.Challenges.Get(ctx, accountID, purpose)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrNoPendingChallenge
		}
		return nil, err
	}

	if !now.Before(c.ExpiresAt) {
		if err := r.Challenges.Delete(ctx, accountID, purpose); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, common.ErrChallengeExpired
	}

	if subtle.ConstantTimeCompare(c.CodeHash, hashCode(code)) != 1 {
		return nil, common.ErrCodeMismatch
	}

	if err := r.Challenges.Delete(ctx, accountID, purpose); err != nil {
		return nil, err
	}
	return c, nil
}

// Verify checks code against the pending challenge for purpose. A correct
// code succeeds exactly once. For PurposeEmailChange the pending address is
// committed to the account in the same unit of work; if another account took
// the address meanwhile the code is still spent and ErrDuplicateAccount is
// returned.
func (g *OTPGate) Verify(ctx context.Context, accountID string, purpose models.Purpose, code string) error {
	if !purpose.Valid() {
		return fmt.Errorf("%w: unknown purpose %q", common.ErrValidation, purpose)
	}
	if !validCode(code) {
		return common.ErrInvalidCode
	}
	now := g.clock.Now()

	var verdict error
	err := g.store.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		c, err := g.consume(ctx, r, accountID, purpose, code, now)
		if err == nil && purpose == models.PurposeEmailChange {
			err = g.commitEmail(ctx, r, accountID, c.Target, now)
		}
		if isVerdict(err) {
			verdict = err
			return nil
		}
		return err
	})
	if err != nil {
		return storeFailure(ctx, g.log, "verify code", err)
	}
	if verdict != nil {
		g.log.Info(ctx, "code rejected", "account_id", accountID, "purpose", string(purpose), "reason", verdict.Error())
		return verdict
	}
	g.log.Info(ctx, "code verified", "account_id", accountID, "purpose", string(purpose))
	return nil
}

// commitEmail checks the address before writing. A signup that takes the
// address after the check still surfaces as ErrDuplicateAccount: the
// PostgreSQL update runs under a savepoint, so the spent code commits.
func (g *OTPGate) commitEmail(ctx context.Context, r repomanager.Repositories, accountID, email string, now time.Time) error {
	other, err := r.Accounts.GetByEmail(ctx, email)
	switch {
	case err == nil && other.ID != accountID:
		return common.ErrDuplicateAccount
	case err != nil && !errors.Is(err, common.ErrorNotFound):
		return err
	}

	a, err := r.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	a.Email = email
	a.UpdatedAt = now
	return r.Accounts.Update(ctx, a)
}

// ConfirmEmailChange verifies an email-change code.
func (g *OTPGate) ConfirmEmailChange(ctx context.Context, accountID, code string) error {
	return g.Verify(ctx, accountID, models.PurposeEmailChange, code)
}

// Elevate verifies a login code and grants elevated access to the account
// for the elevation TTL.
func (g *OTPGate) Elevate(ctx context.Context, accountID, code string) (*models.ElevationGrant, error) {
	if !validCode(code) {
		return nil, common.ErrInvalidCode
	}
	now := g.clock.Now()
	grant := &models.ElevationGrant{AccountID: accountID, ExpiresAt: now.Add(g.elevationTTL)}

	var verdict error
	err := g.store.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if _, err := g.consume(ctx, r, accountID, models.PurposeLogin, code, now); err != nil {
			if isVerdict(err) {
				verdict = err
				return nil
			}
			return err
		}
		return r.Grants.Upsert(ctx, grant)
	})
	if err != nil {
		return nil, storeFailure(ctx, g.log, "elevate", err)
	}
	if verdict != nil {
		g.log.Info(ctx, "elevation rejected", "account_id", accountID, "reason", verdict.Error())
		return nil, verdict
	}

	g.log.Info(ctx, "session elevated", "account_id", accountID, "expires_at", grant.ExpiresAt)
	return grant, nil
}

// HasElevation reports whether the account holds an unexpired grant.
func (g *OTPGate) HasElevation(ctx context.Context, accountID string) (bool, error) {
	grant, err := g.store.Repos().Grants.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, storeFailure(ctx, g.log, "elevation lookup", err)
	}
	return grant.Active(g.clock.Now()), nil
}
