package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/passm/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/passm/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/passm/internal/server/repositories/entries"
	"github.com/dmitrijs2005/passm/internal/server/repositories/grants"
	"github.com/dmitrijs2005/passm/internal/server/repositories/issuances"
)

// MemoryStore keeps everything in process memory. Units of work run one at a
// time and are not rolled back on error.
type MemoryStore struct {
	txMu  sync.Mutex
	repos Repositories
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{repos: Repositories{
		Accounts:   accounts.NewMemoryRepository(),
		Entries:    entries.NewMemoryRepository(),
		Challenges: challenges.NewMemoryRepository(),
		Issuances:  issuances.NewMemoryRepository(),
		Grants:     grants.NewMemoryRepository(),
	}}
}

func (s *MemoryStore) Repos() Repositories {
	return s.repos
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, s.repos)
}

func (s *MemoryStore) RunMigrations(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
