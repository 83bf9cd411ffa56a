package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/models"
)

// UserRepo persists user profile records keyed by telegram id.
type UserRepo struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Upsert creates or refreshes a profile record from an incoming message.
func (r *UserRepo) Upsert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, language_code)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id)
		DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			language_code = EXCLUDED.language_code,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.db.ExecContext(ctx, query,
		user.ID, nullable(user.Username), user.FirstName,
		nullable(user.LastName), nullable(user.LanguageCode),
	); err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}
	return nil
}

// Get returns the profile record or ErrNotFound.
func (r *UserRepo) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `
		SELECT telegram_id, COALESCE(username, ''), first_name,
		       COALESCE(last_name, ''), COALESCE(language_code, ''),
		       created_at, updated_at
		FROM users
		WHERE telegram_id = $1
	`

	var user models.User
	err := r.db.QueryRowContext(ctx, query, telegramID).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName,
		&user.LanguageCode, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", telegramID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %d: %w", telegramID, err)
	}

	return &user, nil
}

// IDByUsername resolves a telegram id from a username, ErrNotFound if no
// profile carries it.
func (r *UserRepo) IDByUsername(ctx context.Context, username string) (int64, error) {
	query := `
		SELECT telegram_id
		FROM users
		WHERE LOWER(username) = LOWER($1)
		LIMIT 1
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, username).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("username %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve username %q: %w", username, err)
	}

	return id, nil
}

// nullable maps empty strings to SQL NULL on write.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
