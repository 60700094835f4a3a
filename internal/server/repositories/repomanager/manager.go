// Package repomanager bundles the server repositories behind a Store that
// can run a unit of work atomically. PostgreSQL and in-memory stores are
// provided.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/passm/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/passm/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/passm/internal/server/repositories/entries"
	"github.com/dmitrijs2005/passm/internal/server/repositories/grants"
	"github.com/dmitrijs2005/passm/internal/server/repositories/issuances"
)

// Repositories is a set of repositories bound to one handle (a pool or a
// transaction).
type Repositories struct {
	Accounts   accounts.Repository
	Entries    entries.Repository
	Challenges challenges.Repository
	Issuances  issuances.Repository
	Grants     grants.Repository
}

// Store vends repositories and transactional units of work.
type Store interface {
	// Repos returns repositories outside of any transaction.
	Repos() Repositories
	// WithTx runs fn atomically. Work on the same account is serialised when
	// fn calls Accounts.Lock first.
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
	RunMigrations(ctx context.Context) error
	Close() error
}

const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open returns the store for driver. SQL drivers connect with dsn.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverPgx, DriverPostgres:
		return NewPostgresStore(driver, dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
