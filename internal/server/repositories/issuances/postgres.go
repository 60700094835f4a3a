// Package issuances persists the OTP issuance log used for rate limiting.
package issuances

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/passm/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Record(ctx context.Context, accountID string, at time.Time) error {
	query := `INSERT INTO otp_issuances (account_id, issued_at) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, accountID, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Window(ctx context.Context, accountID string, since time.Time) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), MIN(issued_at)
		FROM otp_issuances
		WHERE account_id = $1 AND issued_at > $2
	`
	var (
		count  int
		oldest sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, query, accountID, since).Scan(&count, &oldest); err != nil {
		return 0, time.Time{}, fmt.Errorf("db error: %w", err)
	}
	if !oldest.Valid {
		return count, time.Time{}, nil
	}
	return count, oldest.Time, nil
}

func (r *PostgresRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_issuances WHERE issued_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
