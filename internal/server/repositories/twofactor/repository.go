package twofactor

import (
	"context"

	"github.com/profolio/profolio/internal/server/models"
)

// Repository persists TOTP enrolments and their recovery codes.
type Repository interface {
	Upsert(ctx context.Context, userID, secretEncrypted string) error
	Get(ctx context.Context, userID string) (*models.TwoFactor, error)
	Enable(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
	AdvanceStep(ctx context.Context, userID string, step int64) (bool, error)

	ReplaceRecoveryCodes(ctx context.Context, userID string, hashes []string) error
	ListUnusedRecoveryCodes(ctx context.Context, userID string) ([]models.RecoveryCode, error)
	MarkRecoveryCodeUsed(ctx context.Context, id string) (bool, error)
}
