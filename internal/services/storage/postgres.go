package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/config"
	"github.com/tg-chatstat-go/internal/models"
)

// ErrNotFound reports that a referenced record has no row in the store.
var ErrNotFound = errors.New("record not found")

// DB wraps the postgres connection and hands out repositories.
type DB struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open connects to postgres and bootstraps the schema when the three
// tables (users, chats, messages) are missing.
func Open(cfg *config.DatabaseConfig, logger *logrus.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	d := &DB{db: db, logger: logger}
	if err := d.bootstrap(ctx, cfg.MigrationsFile); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return d, nil
}

func (d *DB) bootstrap(ctx context.Context, migrationsFile string) error {
	var ready bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) = 3
		FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_name IN ('chats', 'messages', 'users')
	`).Scan(&ready)
	if err != nil {
		return err
	}
	if ready {
		return nil
	}

	schema, err := os.ReadFile(migrationsFile)
	if err != nil {
		return fmt.Errorf("failed to read migrations file: %w", err)
	}

	if _, err := d.db.ExecContext(ctx, string(schema)); err != nil {
		return err
	}

	d.logger.Info("Database schema initialized")
	return nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Users() *UserRepo       { return &UserRepo{db: d.db, logger: d.logger} }
func (d *DB) Chats() *ChatRepo       { return &ChatRepo{db: d.db, logger: d.logger} }
func (d *DB) Messages() *MessageRepo { return &MessageRepo{db: d.db, logger: d.logger} }
func (d *DB) Stats() *StatsRepo      { return &StatsRepo{db: d.db, logger: d.logger} }

// periodFilter renders the WHERE fragment for a period window. The alias
// qualifies created_at when the query joins multiple tables. Anything but
// the three bounded periods falls through to an unrestricted window.
func periodFilter(period models.Period, alias string) string {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}

	switch period {
	case models.PeriodToday:
		return fmt.Sprintf("AND %screated_at::date = CURRENT_DATE", prefix)
	case models.PeriodWeek:
		return fmt.Sprintf("AND %screated_at >= CURRENT_DATE - INTERVAL '7 days'", prefix)
	case models.PeriodMonth:
		return fmt.Sprintf("AND %screated_at >= CURRENT_DATE - INTERVAL '30 days'", prefix)
	default:
		return ""
	}
}
