package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/skorolev/duetchat/internal/common"
	"github.com/skorolev/duetchat/internal/dbx"
	"github.com/skorolev/duetchat/internal/logging"
	"github.com/skorolev/duetchat/internal/server/media"
	"github.com/skorolev/duetchat/internal/server/models"
	"github.com/skorolev/duetchat/internal/server/repositories/repomanager"
)

// Pusher is the live-channel surface MessageService needs from the gateway.
type Pusher interface {
	Send(userID string, event string, payload any) bool
}

// MessageService orchestrates message creation, live delivery attempts, and
// read-state transitions.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mediaStore  media.Store
	pusher      Pusher
	logger      logging.Logger
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, mediaStore media.Store, pusher Pusher, logger logging.Logger) *MessageService {
	return &MessageService{
		db:          db,
		repomanager: m,
		mediaStore:  mediaStore,
		pusher:      pusher,
		logger:      logger.With("module", "message_service"),
	}
}

// Send validates, persists (seen=false), and then attempts live delivery.
// Persistence is authoritative: a failed push only means the recipient is
// offline and will pick the message up from the store. A persistence failure
// aborts the whole operation before any push is attempted.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, text, imageDataURL string) (*models.Message, error) {
	if receiverID == "" {
		return nil, common.NewValidationError("receiverId", "receiver id is required")
	}
	if text == "" && imageDataURL == "" {
		return nil, common.NewValidationError("", "either text or image is required")
	}

	if _, err := s.repomanager.Users(s.db).GetByID(ctx, receiverID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("looking up receiver: %w", err)
	}

	imageURL := ""
	if imageDataURL != "" {
		url, err := s.mediaStore.Upload(ctx, imageDataURL)
		if err != nil {
			return nil, fmt.Errorf("uploading image: %w", err)
		}
		imageURL = url
	}

	msg := &models.Message{SenderID: senderID, ReceiverID: receiverID, Text: text, ImageURL: imageURL}
	msg, err := s.repomanager.Messages(s.db).Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("persisting message: %w", err)
	}

	if !s.pusher.Send(receiverID, common.EventNewMessage, msg) {
		s.logger.Debug(ctx, "recipient offline, live push skipped",
			"message_id", msg.ID, "receiver_id", receiverID)
	}
	return msg, nil
}

// Thread returns every message between viewer and peer, oldest first, and
// marks the peer's messages to the viewer as seen. Read and bulk update run
// in one transaction so concurrent calls cannot double-count unseen totals.
func (s *MessageService) Thread(ctx context.Context, viewerID, peerID string) ([]*models.Message, error) {
	var thread []*models.Message

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Messages(tx)

		var err error
		thread, err = repo.Thread(ctx, viewerID, peerID)
		if err != nil {
			return err
		}

		if _, err := repo.MarkThreadSeen(ctx, peerID, viewerID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// reflect the bulk update in the returned copies
	for _, m := range thread {
		if m.SenderID == peerID && m.ReceiverID == viewerID {
			m.Seen = true
		}
	}
	return thread, nil
}

// MarkSeen marks a single message as seen. Repeats and unknown ids are
// no-ops; seen never transitions back to false.
func (s *MessageService) MarkSeen(ctx context.Context, messageID string) error {
	return s.repomanager.Messages(s.db).MarkSeen(ctx, messageID)
}

// RosterWithUnseen returns every other user together with the viewer's
// per-peer unseen counts. The counts are a read-time aggregate, recomputed on
// every call.
func (s *MessageService) RosterWithUnseen(ctx context.Context, viewerID string) ([]*models.User, map[string]int, error) {
	users, err := s.repomanager.Users(s.db).ListOthers(ctx, viewerID)
	if err != nil {
		return nil, nil, err
	}

	unseen, err := s.repomanager.Messages(s.db).CountUnseenByPeer(ctx, viewerID)
	if err != nil {
		return nil, nil, err
	}
	return users, unseen, nil
}
