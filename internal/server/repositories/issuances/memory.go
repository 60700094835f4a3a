package issuances

import (
	"context"
	"sync"
	"time"
)

type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string][]time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string][]time.Time)}
}

func (r *MemoryRepository) Record(_ context.Context, accountID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows[accountID] = append(r.rows[accountID], at)
	return nil
}

func (r *MemoryRepository) Window(_ context.Context, accountID string, since time.Time) (int, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		count  int
		oldest time.Time
	)
	for _, at := range r.rows[accountID] {
		if !at.After(since) {
			continue
		}
		if count == 0 || at.Before(oldest) {
			oldest = at
		}
		count++
	}
	return count, oldest, nil
}

func (r *MemoryRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, list := range r.rows {
		kept := list[:0]
		for _, at := range list {
			if at.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, at)
		}
		if len(kept) == 0 {
			delete(r.rows, id)
		} else {
			r.rows[id] = kept
		}
	}
	return n, nil
}
