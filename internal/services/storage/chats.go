package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/models"
)

// ChatRepo persists conversation records keyed by telegram id.
type ChatRepo struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Upsert creates a chat record or refreshes its title.
func (r *ChatRepo) Upsert(ctx context.Context, chat *models.Chat) error {
	query := `
		INSERT INTO chats (telegram_id, title, type)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id)
		DO UPDATE SET
			title = EXCLUDED.title,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.db.ExecContext(ctx, query, chat.ID, nullable(chat.Title), chat.Type); err != nil {
		return fmt.Errorf("failed to upsert chat %d: %w", chat.ID, err)
	}
	return nil
}

// Exists reports whether the chat has a record.
func (r *ChatRepo) Exists(ctx context.Context, telegramID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM chats WHERE telegram_id = $1)`,
		telegramID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check chat %d: %w", telegramID, err)
	}
	return exists, nil
}
