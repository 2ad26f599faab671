package users

import (
	"context"

	"github.com/skorolev/duetchat/internal/server/models"
)

// Repository is the persistence contract for identities.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListOthers(ctx context.Context, excludeID string) ([]*models.User, error)
	UpdateProfile(ctx context.Context, id, fullName, bio, avatarURL string) (*models.User, error)
}
