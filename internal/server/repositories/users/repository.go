package users

import (
	"context"

	"github.com/profolio/profolio/internal/server/models"
)

// Repository persists user accounts.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error
}
