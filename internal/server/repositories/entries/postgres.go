// Package entries provides storage for vault entries.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/dbx"
	"github.com/dmitrijs2005/passm/internal/server/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new entry.
func (r *PostgresRepository) Create(ctx context.Context, e *models.Entry) error {
	query := `
		INSERT INTO entries (id, account_id, title, username, secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.AccountID, e.Title, e.Username, e.Secret, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns one entry owned by accountID.
func (r *PostgresRepository) Get(ctx context.Context, accountID, entryID string) (*models.Entry, error) {
	query := `
		SELECT id, account_id, title, username, secret, created_at, updated_at
		FROM entries
		WHERE id = $1 AND account_id = $2
	`
	e := &models.Entry{}
	err := r.db.QueryRowContext(ctx, query, entryID, accountID).
		Scan(&e.ID, &e.AccountID, &e.Title, &e.Username, &e.Secret, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// List returns every entry of accountID, oldest first.
func (r *PostgresRepository) List(ctx context.Context, accountID string) ([]*models.Entry, error) {
	query := `
		SELECT id, account_id, title, username, secret, created_at, updated_at
		FROM entries
		WHERE account_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		var e models.Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Title, &e.Username, &e.Secret, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update overwrites title, username, secret and updated_at of an entry owned
// by e.AccountID.
func (r *PostgresRepository) Update(ctx context.Context, e *models.Entry) error {
	query := `
		UPDATE entries
		SET title = $3, username = $4, secret = $5, updated_at = $6
		WHERE id = $1 AND account_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, e.ID, e.AccountID, e.Title, e.Username, e.Secret, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

// Delete removes an entry owned by accountID.
func (r *PostgresRepository) Delete(ctx context.Context, accountID, entryID string) error {
	query := `DELETE FROM entries WHERE id = $1 AND account_id = $2`

	res, err := r.db.ExecContext(ctx, query, entryID, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
