package challenges

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgres_Upsert(t *testing.T) {
	repo, mock := newMock(t)
	c := &models.Challenge{
		AccountID: "u1", Purpose: models.PurposeEmailChange, CodeHash: []byte{9},
		Target: "new@example.com", ExpiresAt: t0.Add(10 * time.Minute), CreatedAt: t0,
	}

	mock.ExpectExec(`INSERT INTO otp_challenges .* ON CONFLICT \(account_id, purpose\) DO UPDATE`).
		WithArgs("u1", "email_change", []byte{9}, "new@example.com", c.ExpiresAt, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO otp_challenges`).WillReturnError(errors.New("down"))

	require.NoError(t, repo.Upsert(context.Background(), c))
	assert.ErrorContains(t, repo.Upsert(context.Background(), c), "db error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get(t *testing.T) {
	repo, mock := newMock(t)
	cols := []string{"account_id", "purpose", "code_hash", "target", "expires_at", "created_at"}

	mock.ExpectQuery(`FROM otp_challenges\s+WHERE account_id = \$1 AND purpose = \$2`).
		WithArgs("u1", "login").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", "login", []byte{1}, "", t0, t0))
	mock.ExpectQuery(`FROM otp_challenges`).WithArgs("u2", "login").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM otp_challenges`).WithArgs("u3", "login").WillReturnError(errors.New("down"))

	c, err := repo.Get(context.Background(), "u1", models.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, models.PurposeLogin, c.Purpose)
	assert.Equal(t, []byte{1}, c.CodeHash)

	_, err = repo.Get(context.Background(), "u2", models.PurposeLogin)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.Get(context.Background(), "u3", models.PurposeLogin)
	assert.ErrorContains(t, err, "db error")
}

func TestPostgres_DeleteVariants(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM otp_challenges WHERE account_id = \$1 AND purpose = \$2$`).
		WithArgs("u1", "login").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM otp_challenges WHERE account_id = \$1 AND purpose = \$2$`).
		WithArgs("u1", "login").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`AND code_hash = \$3`).
		WithArgs("u1", "login", []byte{7}).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`AND code_hash = \$3`).
		WithArgs("u1", "login", []byte{8}).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM otp_challenges WHERE expires_at <= \$1`).
		WithArgs(t0).WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.Delete(ctx, "u1", models.PurposeLogin))
	assert.ErrorIs(t, repo.Delete(ctx, "u1", models.PurposeLogin), common.ErrorNotFound)

	ok, err := repo.DeleteIfCode(ctx, "u1", models.PurposeLogin, []byte{7})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.DeleteIfCode(ctx, "u1", models.PurposeLogin, []byte{8})
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := repo.DeleteExpired(ctx, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
