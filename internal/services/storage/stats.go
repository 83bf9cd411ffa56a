package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/models"
)

// StatsRepo is the aggregation engine's data source. It returns flat,
// unordered aggregate rows; ordering, truncation and ranking happen in the
// engine so they stay deterministic and testable.
type StatsRepo struct {
	db     *sql.DB
	logger *logrus.Logger
}

// UserMessageCounts groups message counts by user within the chat,
// restricted to the period window. Rows come back unordered.
func (r *StatsRepo) UserMessageCounts(ctx context.Context, chatID int64, period models.Period) ([]models.UserStats, error) {
	query := fmt.Sprintf(`
		SELECT
			u.telegram_id,
			COALESCE(u.username, ''),
			u.first_name,
			COALESCE(u.last_name, ''),
			COUNT(m.id) AS message_count
		FROM messages m
		JOIN users u ON m.user_telegram_id = u.telegram_id
		WHERE m.chat_telegram_id = $1
		%s
		GROUP BY u.telegram_id, u.username, u.first_name, u.last_name
	`, periodFilter(period, "m"))

	return r.queryUserCounts(ctx, query, chatID)
}

// CountMessages counts every message in the chat within the period window.
func (r *StatsRepo) CountMessages(ctx context.Context, chatID int64, period models.Period) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM messages
		WHERE chat_telegram_id = $1
		%s
	`, periodFilter(period, ""))

	var count int
	if err := r.db.QueryRowContext(ctx, query, chatID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages in chat %d: %w", chatID, err)
	}
	return count, nil
}

// CountDistinctUsers counts users with at least one message in the chat
// within the period window.
func (r *StatsRepo) CountDistinctUsers(ctx context.Context, chatID int64, period models.Period) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(DISTINCT user_telegram_id)
		FROM messages
		WHERE chat_telegram_id = $1
		%s
	`, periodFilter(period, ""))

	var count int
	if err := r.db.QueryRowContext(ctx, query, chatID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users in chat %d: %w", chatID, err)
	}
	return count, nil
}

// UserPeriodCounts buckets one user's messages in one chat into the
// standard windows and reports the last message time (nil if none).
func (r *StatsRepo) UserPeriodCounts(ctx context.Context, userID, chatID int64) (models.PeriodCounts, *time.Time, error) {
	query := `
		SELECT
			COUNT(CASE WHEN created_at::date = CURRENT_DATE THEN 1 END) AS today,
			COUNT(CASE WHEN created_at >= CURRENT_DATE - INTERVAL '7 days' THEN 1 END) AS week,
			COUNT(CASE WHEN created_at >= CURRENT_DATE - INTERVAL '30 days' THEN 1 END) AS month,
			COUNT(*) AS all_time,
			MAX(created_at) AS last_message_at
		FROM messages
		WHERE user_telegram_id = $1
		AND chat_telegram_id = $2
	`

	var counts models.PeriodCounts
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID, chatID).Scan(
		&counts.Today, &counts.Week, &counts.Month, &counts.All, &last,
	)
	if err != nil {
		return counts, nil, fmt.Errorf("failed to bucket messages of user %d in chat %d: %w", userID, chatID, err)
	}

	if !last.Valid {
		return counts, nil, nil
	}
	return counts, &last.Time, nil
}

// SearchUserCounts matches the term case-insensitively against username,
// first and last name. With a chat, matches are limited to users who have
// messaged there and counts are scoped to that chat; without one the search
// is global and counts are unscoped.
func (r *StatsRepo) SearchUserCounts(ctx context.Context, term string, chatID *int64) ([]models.UserStats, error) {
	pattern := "%" + term + "%"

	if chatID != nil {
		query := `
			SELECT
				u.telegram_id,
				COALESCE(u.username, ''),
				u.first_name,
				COALESCE(u.last_name, ''),
				COUNT(m.id) AS message_count
			FROM users u
			LEFT JOIN messages m ON u.telegram_id = m.user_telegram_id
				AND m.chat_telegram_id = $2
			WHERE (
				LOWER(u.username) LIKE LOWER($1) OR
				LOWER(u.first_name) LIKE LOWER($1) OR
				LOWER(u.last_name) LIKE LOWER($1)
			)
			AND EXISTS (
				SELECT 1
				FROM messages
				WHERE user_telegram_id = u.telegram_id
				AND chat_telegram_id = $2
			)
			GROUP BY u.telegram_id, u.username, u.first_name, u.last_name
		`
		return r.queryUserCounts(ctx, query, pattern, *chatID)
	}

	query := `
		SELECT
			u.telegram_id,
			COALESCE(u.username, ''),
			u.first_name,
			COALESCE(u.last_name, ''),
			COUNT(m.id) AS message_count
		FROM users u
		LEFT JOIN messages m ON u.telegram_id = m.user_telegram_id
		WHERE (
			LOWER(u.username) LIKE LOWER($1) OR
			LOWER(u.first_name) LIKE LOWER($1) OR
			LOWER(u.last_name) LIKE LOWER($1)
		)
		GROUP BY u.telegram_id, u.username, u.first_name, u.last_name
	`
	return r.queryUserCounts(ctx, query, pattern)
}

// User returns the profile record feeding the detail view, ErrNotFound
// when the user has never been seen.
func (r *StatsRepo) User(ctx context.Context, userID int64) (*models.User, error) {
	return (&UserRepo{db: r.db, logger: r.logger}).Get(ctx, userID)
}

func (r *StatsRepo) queryUserCounts(ctx context.Context, query string, args ...interface{}) ([]models.UserStats, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user counts: %w", err)
	}
	defer rows.Close()

	users := make([]models.UserStats, 0)
	for rows.Next() {
		var u models.UserStats
		if err := rows.Scan(&u.UserID, &u.Username, &u.FirstName, &u.LastName, &u.MessageCount); err != nil {
			r.logger.WithError(err).Warn("Failed to scan user count row")
			continue
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return users, nil
}
