// Package twofactor is the PostgreSQL-backed store for TOTP enrolments and
// recovery codes.
package twofactor

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

// Upsert starts (or restarts) an enrolment with a new secret, disabled until confirmed.
func (r *PostgresRepository) Upsert(ctx context.Context, userID, secretEncrypted string) error {
	query :=
		`INSERT INTO two_factor (user_id, secret_encrypted, enabled)
		 VALUES ($1, $2, FALSE)
		 ON CONFLICT (user_id) DO UPDATE
		 SET secret_encrypted = EXCLUDED.secret_encrypted, enabled = FALSE, confirmed_at = NULL,
		     last_used_step = 0, created_at = now()
		 `

	if _, err := r.db.ExecContext(ctx, query, userID, secretEncrypted); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.TwoFactor, error) {
	query :=
		`SELECT user_id, secret_encrypted, enabled, last_used_step, created_at, confirmed_at FROM two_factor
		 WHERE user_id = $1
		 `

	tf := &models.TwoFactor{}
	var confirmed sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&tf.UserID, &tf.SecretEncrypted, &tf.Enabled, &tf.LastUsedStep, &tf.CreatedAt, &confirmed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if confirmed.Valid {
		tf.ConfirmedAt = &confirmed.Time
	}

	return tf, nil
}

func (r *PostgresRepository) Enable(ctx context.Context, userID string) error {
	query :=
		`UPDATE two_factor SET enabled = TRUE, confirmed_at = now()
		 WHERE user_id = $1
		 `

	return r.execOne(ctx, query, userID)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	query :=
		`DELETE FROM two_factor
		 WHERE user_id = $1
		 `

	return r.execOne(ctx, query, userID)
}

// AdvanceStep records step as the last accepted TOTP time step. It reports
// false, leaving the row alone, when step is not newer than the recorded one.
func (r *PostgresRepository) AdvanceStep(ctx context.Context, userID string, step int64) (bool, error) {
	query :=
		`UPDATE two_factor SET last_used_step = $2
		 WHERE user_id = $1 AND last_used_step < $2
		 `

	res, err := r.db.ExecContext(ctx, query, userID, step)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

// ReplaceRecoveryCodes drops all of the user's recovery codes and stores the
// given hashes. Run it inside a transaction.
func (r *PostgresRepository) ReplaceRecoveryCodes(ctx context.Context, userID string, hashes []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM recovery_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, h := range hashes {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO recovery_codes (user_id, code_hash) VALUES ($1, $2)`, userID, h); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}

	return nil
}

func (r *PostgresRepository) ListUnusedRecoveryCodes(ctx context.Context, userID string) ([]models.RecoveryCode, error) {
	query :=
		`SELECT id, user_id, code_hash, created_at FROM recovery_codes
		 WHERE user_id = $1 AND used_at IS NULL
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.RecoveryCode, 0)
	for rows.Next() {
		var c models.RecoveryCode
		if err := rows.Scan(&c.ID, &c.UserID, &c.CodeHash, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// MarkRecoveryCodeUsed consumes the code; it reports false if the code was
// already used by a concurrent request.
func (r *PostgresRepository) MarkRecoveryCodeUsed(ctx context.Context, id string) (bool, error) {
	query :=
		`UPDATE recovery_codes SET used_at = now()
		 WHERE id = $1 AND used_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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
