package grants

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passm/internal/server/models"
)

// Repository stores the elevation grant of each account.
type Repository interface {
	Upsert(ctx context.Context, g *models.ElevationGrant) error
	Get(ctx context.Context, accountID string) (*models.ElevationGrant, error)
	Delete(ctx context.Context, accountID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
