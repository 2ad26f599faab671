package refreshtokens

import (
	"context"
	"time"

	"github.com/skorolev/duetchat/internal/server/models"
)

// Repository is the persistence contract for server-stored refresh tokens.
type Repository interface {
	Create(ctx context.Context, userID string, token string, validity time.Duration) error
	Find(ctx context.Context, token string) (*models.RefreshToken, error)
	Delete(ctx context.Context, token string) error
}
