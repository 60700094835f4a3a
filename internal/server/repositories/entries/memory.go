package entries

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/server/models"
)

// MemoryRepository keeps entries in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]models.Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]models.Entry)}
}

func clone(e models.Entry) *models.Entry {
	e.Secret = bytes.Clone(e.Secret)
	return &e
}

func (r *MemoryRepository) Create(_ context.Context, e *models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[e.ID]; ok {
		return common.ErrorInternal
	}
	r.rows[e.ID] = *clone(*e)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, accountID, entryID string) (*models.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rows[entryID]
	if !ok || e.AccountID != accountID {
		return nil, common.ErrorNotFound
	}
	return clone(e), nil
}

func (r *MemoryRepository) List(_ context.Context, accountID string) ([]*models.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Entry
	for _, e := range r.rows {
		if e.AccountID == accountID {
			result = append(result, clone(e))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) Update(_ context.Context, e *models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.rows[e.ID]
	if !ok || old.AccountID != e.AccountID {
		return common.ErrorNotFound
	}
	updated := *clone(*e)
	updated.CreatedAt = old.CreatedAt
	r.rows[e.ID] = updated
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, accountID, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rows[entryID]
	if !ok || e.AccountID != accountID {
		return common.ErrorNotFound
	}
	delete(r.rows, entryID)
	return nil
}
