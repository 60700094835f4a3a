// Package challenges persists pending one-time-code challenges.
package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/dbx"
	"github.com/dmitrijs2005/passm/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, c *models.Challenge) error {
	query := `
		INSERT INTO otp_challenges (account_id, purpose, code_hash, target, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, purpose) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    target = EXCLUDED.target,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
	`
	_, err := r.db.ExecContext(ctx, query, c.AccountID, string(c.Purpose), c.CodeHash, c.Target, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, accountID string, purpose models.Purpose) (*models.Challenge, error) {
	query := `
		SELECT account_id, purpose, code_hash, target, expires_at, created_at
		FROM otp_challenges
		WHERE account_id = $1 AND purpose = $2
	`
	c := &models.Challenge{}
	var p string
	err := r.db.QueryRowContext(ctx, query, accountID, string(purpose)).
		Scan(&c.AccountID, &p, &c.CodeHash, &c.Target, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.Purpose = models.Purpose(p)
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, accountID string, purpose models.Purpose) error {
	query := `DELETE FROM otp_challenges WHERE account_id = $1 AND purpose = $2`
	res, err := r.db.ExecContext(ctx, query, accountID, string(purpose))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteIfCode(ctx context.Context, accountID string, purpose models.Purpose, codeHash []byte) (bool, error) {
	query := `DELETE FROM otp_challenges WHERE account_id = $1 AND purpose = $2 AND code_hash = $3`
	res, err := r.db.ExecContext(ctx, query, accountID, string(purpose), codeHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
