package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sampleAccount() *models.Account {
	return &models.Account{
		ID:           "3f1c7e4e-0000-4000-8000-000000000001",
		Email:        "alice@example.com",
		Phone:        "+15551234567",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
}

const insertQ = `(?s)^\s*INSERT\s+INTO\s+accounts\s*\(id,\s*email,\s*phone,\s*password_hash,\s*created_at,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*$`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := sampleAccount()
	mock.ExpectExec(insertQ).
		WithArgs(a.ID, a.Email, a.Phone, a.PasswordHash, t0, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateEmail(t *testing.T) {
	for name, dup := range map[string]error{
		"pgx":    &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"},
		"lib/pq": &pq.Error{Code: "23505"},
	} {
		t.Run(name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectExec(insertQ).WillReturnError(dup)

			err := repo.Create(context.Background(), sampleAccount())
			assert.ErrorIs(t, err, common.ErrDuplicateAccount)
		})
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), sampleAccount())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

var accountCols = []string{"id", "email", "phone", "password_hash", "created_at", "updated_at"}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := sampleAccount()
	mock.ExpectQuery(`(?s)SELECT\s+id,\s*email,\s*phone,\s*password_hash,\s*created_at,\s*updated_at\s+FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1`).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(a.ID, a.Email, a.Phone, a.PasswordHash, t0, t0))

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+accounts\s+WHERE\s+id`).WillReturnError(errors.New("conn reset"))

	_, err := repo.GetByID(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
	assert.Contains(t, err.Error(), "db error")
}

const updateQ = `(?s)UPDATE\s+accounts\s+SET\s+email\s*=\s*\$2,\s*phone\s*=\s*\$3,\s*password_hash\s*=\s*\$4,\s*updated_at\s*=\s*\$5\s+WHERE\s+id\s*=\s*\$1`

func TestUpdate(t *testing.T) {
	a := sampleAccount()

	t.Run("ok", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(updateQ).
			WithArgs(a.ID, a.Email, a.Phone, a.PasswordHash, t0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, repo.Update(context.Background(), a))
	})

	t.Run("missing row", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(updateQ).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.Update(context.Background(), a), common.ErrorNotFound)
	})

	t.Run("email taken", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(updateQ).WillReturnError(&pgconn.PgError{Code: "23505"})
		assert.ErrorIs(t, repo.Update(context.Background(), a), common.ErrDuplicateAccount)
	})

	t.Run("email taken inside a transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`^SAVEPOINT account_update$`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(updateQ).WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectExec(`^ROLLBACK TO SAVEPOINT account_update$`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		assert.ErrorIs(t, NewPostgresRepository(tx).Update(context.Background(), a), common.ErrDuplicateAccount)
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rows affected error", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(updateQ).WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))
		err := repo.Update(context.Background(), a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rows affected error")
	})
}

func TestLock(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)

	require.NoError(t, repo.Lock(context.Background(), "a1"))
	assert.ErrorIs(t, repo.Lock(context.Background(), "gone"), common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
