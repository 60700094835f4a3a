package entries

import (
	"context"

	"github.com/dmitrijs2005/passm/internal/server/models"
)

// Repository persists vault entries. Every lookup and mutation is scoped by
// account id; an entry owned by someone else is reported as
// common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, entry *models.Entry) error
	Get(ctx context.Context, accountID, entryID string) (*models.Entry, error)
	List(ctx context.Context, accountID string) ([]*models.Entry, error)
	Update(ctx context.Context, entry *models.Entry) error
	Delete(ctx context.Context, accountID, entryID string) error
}
