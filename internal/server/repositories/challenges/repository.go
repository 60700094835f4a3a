package challenges

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passm/internal/server/models"
)

// Repository stores pending OTP challenges, at most one per (account, purpose).
type Repository interface {
	// Upsert replaces any pending challenge for the same account and purpose.
	Upsert(ctx context.Context, c *models.Challenge) error
	Get(ctx context.Context, accountID string, purpose models.Purpose) (*models.Challenge, error)
	Delete(ctx context.Context, accountID string, purpose models.Purpose) error
	// DeleteIfCode removes the challenge only while it still carries codeHash.
	DeleteIfCode(ctx context.Context, accountID string, purpose models.Purpose, codeHash []byte) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
