package issuances

import (
	"context"
	"time"
)

// Repository records OTP issuances for the per-account rate limit.
type Repository interface {
	Record(ctx context.Context, accountID string, at time.Time) error
	// Window returns how many issuances happened strictly after since and the
	// time of the oldest of them (zero when count is 0).
	Window(ctx context.Context, accountID string, since time.Time) (int, time.Time, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
