package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/passm/internal/dbx"
	"github.com/dmitrijs2005/passm/internal/server/migrations"
	"github.com/dmitrijs2005/passm/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/passm/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/passm/internal/server/repositories/entries"
	"github.com/dmitrijs2005/passm/internal/server/repositories/grants"
	"github.com/dmitrijs2005/passm/internal/server/repositories/issuances"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// PostgresStore is a Store over database/sql with either the pgx or the
// lib/pq driver.
type PostgresStore struct {
	db     *sql.DB
	driver string
}

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// NewPostgresStore opens a connection pool. The database is not contacted
// until first use.
func NewPostgresStore(driver, dsn string) (*PostgresStore, error) {
	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, err
	}
	return NewPostgresStoreFromDB(db, driver), nil
}

// NewPostgresStoreFromDB wraps an existing pool.
func NewPostgresStoreFromDB(db *sql.DB, driver string) *PostgresStore {
	return &PostgresStore{db: db, driver: driver}
}

func bind(db dbx.DBTX) Repositories {
	return Repositories{
		Accounts:   accounts.NewPostgresRepository(db),
		Entries:    entries.NewPostgresRepository(db),
		Challenges: challenges.NewPostgresRepository(db),
		Issuances:  issuances.NewPostgresRepository(db),
		Grants:     grants.NewPostgresRepository(db),
	}
}

func (s *PostgresStore) Repos() Repositories {
	return bind(s.db)
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, bind(tx))
	})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(s.driver); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db, ".")
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
