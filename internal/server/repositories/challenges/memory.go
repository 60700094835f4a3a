package challenges

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/server/models"
)

type key struct {
	accountID string
	purpose   models.Purpose
}

type MemoryRepository struct {
	mu   sync.Mutex
	rows map[key]models.Challenge
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[key]models.Challenge)}
}

func (r *MemoryRepository) Upsert(_ context.Context, c *models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *c
	stored.CodeHash = bytes.Clone(c.CodeHash)
	r.rows[key{c.AccountID, c.Purpose}] = stored
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, accountID string, purpose models.Purpose) (*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.rows[key{accountID, purpose}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c.CodeHash = bytes.Clone(c.CodeHash)
	return &c, nil
}

func (r *MemoryRepository) Delete(_ context.Context, accountID string, purpose models.Purpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{accountID, purpose}
	if _, ok := r.rows[k]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, k)
	return nil
}

func (r *MemoryRepository) DeleteIfCode(_ context.Context, accountID string, purpose models.Purpose, codeHash []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{accountID, purpose}
	c, ok := r.rows[k]
	if !ok || !bytes.Equal(c.CodeHash, codeHash) {
		return false, nil
	}
	delete(r.rows, k)
	return true, nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, c := range r.rows {
		if !now.Before(c.ExpiresAt) {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}
