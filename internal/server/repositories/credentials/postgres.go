// Package credentials is the PostgreSQL-backed credential vault repository.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/profolio/profolio/internal/common"
	"github.com/profolio/profolio/internal/dbx"
	"github.com/profolio/profolio/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert stores c, replacing any existing credential for the same provider.
func (r *PostgresRepository) Upsert(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	query :=
		`INSERT INTO credentials (user_id, provider, label, ciphertext, hint)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, provider) DO UPDATE
		 SET label = EXCLUDED.label, ciphertext = EXCLUDED.ciphertext, hint = EXCLUDED.hint, updated_at = now()
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		c.UserID, c.Provider, c.Label, c.Ciphertext, c.Hint).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, provider string) (*models.Credential, error) {
	query :=
		`SELECT id, user_id, provider, label, ciphertext, hint, created_at, updated_at FROM credentials
		 WHERE user_id = $1 AND provider = $2
		 `

	c := &models.Credential{}
	err := r.db.QueryRowContext(ctx, query, userID, provider).
		Scan(&c.ID, &c.UserID, &c.Provider, &c.Label, &c.Ciphertext, &c.Hint, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]models.Credential, error) {
	query :=
		`SELECT id, user_id, provider, label, ciphertext, hint, created_at, updated_at FROM credentials
		 WHERE user_id = $1
		 ORDER BY provider
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Credential, 0)
	for rows.Next() {
		var c models.Credential
		if err := rows.Scan(&c.ID, &c.UserID, &c.Provider, &c.Label, &c.Ciphertext, &c.Hint, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, provider string) error {
	query :=
		`DELETE FROM credentials
		 WHERE user_id = $1 AND provider = $2
		 `

	res, err := r.db.ExecContext(ctx, query, userID, provider)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
