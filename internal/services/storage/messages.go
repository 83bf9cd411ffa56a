package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/models"
)

// MessageRepo persists message events referencing users and chats.
type MessageRepo struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Insert records one message event. Redelivered updates are dropped by the
// (chat, message_id) uniqueness constraint.
func (r *MessageRepo) Insert(ctx context.Context, msg *models.StoredMessage) error {
	query := `
		INSERT INTO messages (chat_telegram_id, user_telegram_id, message_id, text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, msg.ChatID, msg.UserID, msg.MessageID, msg.Text); err != nil {
		return fmt.Errorf("failed to insert message %d/%d: %w", msg.ChatID, msg.MessageID, err)
	}
	return nil
}

// LastUserTexts returns the user's most recent message texts, newest first.
func (r *MessageRepo) LastUserTexts(ctx context.Context, userID int64, limit int) ([]string, error) {
	query := `
		SELECT m.text
		FROM messages m
		WHERE m.user_telegram_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages of user %d: %w", userID, err)
	}
	defer rows.Close()

	texts := make([]string, 0, limit)
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			r.logger.WithError(err).Warn("Failed to scan message row")
			continue
		}
		texts = append(texts, text)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return texts, nil
}
