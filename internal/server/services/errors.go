// Package services contains the server-side business logic: accounts and
// sessions, the one-time-code elevation gate, the vault and its export.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/logging"
)

// kinds are the errors callers are allowed to see. Anything else is an
// infrastructure failure.
var kinds = []error{
	common.ErrValidation,
	common.ErrorNotFound,
	common.ErrInvalidCredentials,
	common.ErrInvalidToken,
	common.ErrTokenExpired,
	common.ErrWrongCurrentPassword,
	common.ErrDuplicateAccount,
	common.ErrElevationRequired,
	common.ErrNoPendingChallenge,
	common.ErrChallengeExpired,
	common.ErrCodeMismatch,
	common.ErrRateLimited,
	common.ErrDeliveryFailed,
	common.ErrStoreUnavailable,
	common.ErrCipher,
}

func isKnown(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// storeFailure passes known kinds through and turns anything else into
// ErrStoreUnavailable after logging the cause.
func storeFailure(ctx context.Context, log logging.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	if isKnown(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Error(ctx, "store failure", "op", op, "error", err)
	return common.ErrStoreUnavailable
}
