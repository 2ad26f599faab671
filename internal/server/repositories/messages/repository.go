package messages

import (
	"context"

	"github.com/skorolev/duetchat/internal/server/models"
)

// Repository is the persistence contract for messages. The seen flag only
// moves from false to true; no operation can reverse it.
type Repository interface {
	Create(ctx context.Context, m *models.Message) (*models.Message, error)
	Thread(ctx context.Context, userA, userB string) ([]*models.Message, error)
	MarkThreadSeen(ctx context.Context, senderID, receiverID string) (int64, error)
	MarkSeen(ctx context.Context, id string) error
	CountUnseenByPeer(ctx context.Context, receiverID string) (map[string]int, error)
}
