package credentials

import (
	"context"

	"github.com/profolio/profolio/internal/server/models"
)

// Repository persists encrypted third-party credentials, one per user and provider.
type Repository interface {
	Upsert(ctx context.Context, c *models.Credential) (*models.Credential, error)
	Get(ctx context.Context, userID, provider string) (*models.Credential, error)
	List(ctx context.Context, userID string) ([]models.Credential, error)
	Delete(ctx context.Context, userID, provider string) error
}
