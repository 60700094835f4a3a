package accounts

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/server/models"
)

// MemoryRepository keeps accounts in process memory. Returned values are
// copies; mutating them does not touch the stored row.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]models.Account
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]models.Account),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[a.Email]; ok {
		return common.ErrDuplicateAccount
	}
	if _, ok := r.byID[a.ID]; ok {
		return common.ErrDuplicateAccount
	}
	r.byID[a.ID] = *a
	r.byEmail[a.Email] = a.ID
	return nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	a := r.byID[id]
	return &a, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) Update(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[a.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if old.Email != a.Email {
		if _, taken := r.byEmail[a.Email]; taken {
			return common.ErrDuplicateAccount
		}
		delete(r.byEmail, old.Email)
		r.byEmail[a.Email] = a.ID
	}
	r.byID[a.ID] = *a
	return nil
}

// Lock only checks existence; the memory store serialises transactions itself.
func (r *MemoryRepository) Lock(_ context.Context, id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.byID[id]; !ok {
		return common.ErrorNotFound
	}
	return nil
}
