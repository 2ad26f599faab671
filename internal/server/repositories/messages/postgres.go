// Package messages provides a PostgreSQL-backed repository for chat messages
// and their read state.
package messages

import (
	"context"
	"fmt"

	"github.com/skorolev/duetchat/internal/dbx"
	"github.com/skorolev/duetchat/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages (sender_id, receiver_id, text, image_url, seen)
		VALUES ($1, $2, $3, $4, false)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		m.SenderID, m.ReceiverID, m.Text, m.ImageURL).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	m.Seen = false
	return m, nil
}

// Thread returns every message exchanged between the two users, oldest first.
func (r *PostgresRepository) Thread(ctx context.Context, userA, userB string) ([]*models.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, text, image_url, seen, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.ImageURL, &m.Seen, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// MarkThreadSeen flips seen on every unseen message sender -> receiver and
// returns how many rows changed. Calling it again is a no-op.
func (r *PostgresRepository) MarkThreadSeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	query := `
		UPDATE messages SET seen = true
		WHERE sender_id = $1 AND receiver_id = $2 AND seen = false
	`
	res, err := r.db.ExecContext(ctx, query, senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// MarkSeen flips seen on a single message. Unknown ids and already-seen
// messages are both no-ops, not errors.
func (r *PostgresRepository) MarkSeen(ctx context.Context, id string) error {
	query := `
		UPDATE messages SET seen = true
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// CountUnseenByPeer aggregates unseen messages addressed to receiverID,
// grouped by sender. Peers with zero unseen messages are absent from the map.
func (r *PostgresRepository) CountUnseenByPeer(ctx context.Context, receiverID string) (map[string]int, error) {
	query := `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND seen = false
		GROUP BY sender_id
	`
	rows, err := r.db.QueryContext(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := map[string]int{}
	for rows.Next() {
		var senderID string
		var count int
		if err := rows.Scan(&senderID, &count); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result[senderID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
