// Package accounts stores Account rows.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/passm/internal/server/models"
)

// Repository persists accounts. Lookups return common.ErrorNotFound when no
// row matches; writes that would duplicate an email return
// common.ErrDuplicateAccount.
type Repository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error

	// Lock takes a row lock on the account for the rest of the surrounding
	// transaction, serialising per-account OTP work.
	Lock(ctx context.Context, id string) error
}
