package grants

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/server/models"
)

type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]time.Time)}
}

func (r *MemoryRepository) Upsert(_ context.Context, g *models.ElevationGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[g.AccountID] = g.ExpiresAt
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, accountID string) (*models.ElevationGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exp, ok := r.rows[accountID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.ElevationGrant{AccountID: accountID, ExpiresAt: exp}, nil
}

func (r *MemoryRepository) Delete(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, accountID)
	return nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, exp := range r.rows {
		if !now.Before(exp) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}
