package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/models"
	"github.com/tg-chatstat-go/internal/services/cache"
)

// Repository is the engine's view of the relational store. Implementations
// return flat aggregate rows; ordering, truncation and ranking are done
// here. A missing user surfaces as an error wrapping storage.ErrNotFound.
type Repository interface {
	UserMessageCounts(ctx context.Context, chatID int64, period models.Period) ([]models.UserStats, error)
	CountMessages(ctx context.Context, chatID int64, period models.Period) (int, error)
	CountDistinctUsers(ctx context.Context, chatID int64, period models.Period) (int, error)
	UserPeriodCounts(ctx context.Context, userID, chatID int64) (models.PeriodCounts, *time.Time, error)
	SearchUserCounts(ctx context.Context, term string, chatID *int64) ([]models.UserStats, error)
	User(ctx context.Context, userID int64) (*models.User, error)
}

// Recorder receives cache and query outcomes for monitoring. The metrics
// middleware satisfies it.
type Recorder interface {
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
	RecordStatsQuery(kind, status string, duration time.Duration)
}

// Engine computes chat statistics from the store, memoizing every query
// through the cache service. Cache population is not atomic with the
// query: concurrent missers recompute independently, which is harmless
// because recomputation is idempotent.
type Engine struct {
	repo    Repository
	cache   cache.Service
	metrics Recorder
	logger  *logrus.Logger
}

// NewEngine creates the aggregation engine.
func NewEngine(repo Repository, cacheService cache.Service, metrics Recorder, logger *logrus.Logger) *Engine {
	return &Engine{
		repo:    repo,
		cache:   cacheService,
		metrics: metrics,
		logger:  logger,
	}
}

// TopUsers returns the chat's most active users within the period,
// ordered by message count descending, user id ascending on ties.
func (e *Engine) TopUsers(ctx context.Context, chatID int64, period models.Period, limit int) ([]models.UserStats, error) {
	key := cache.Key("top", chatID, period, limit)

	var cached []models.UserStats
	if e.probe(ctx, "top", key, &cached) {
		return cached, nil
	}

	start := time.Now()
	counts, err := e.repo.UserMessageCounts(ctx, chatID, period)
	if err != nil {
		e.record("top", "error", start)
		return nil, fmt.Errorf("top users query failed: %w", err)
	}
	e.record("top", "success", start)

	users := truncate(sortByCount(counts), limit)
	e.cache.SetJSON(ctx, key, users)

	return users, nil
}

// ChatStats composes the top-user list with chat-wide totals. The three
// underlying queries are independent and issued concurrently; all results
// are joined before the snapshot is cached.
func (e *Engine) ChatStats(ctx context.Context, chatID int64, period models.Period, topLimit int) (*models.ChatStats, error) {
	key := cache.Key("chat", chatID, period, topLimit)

	var cached models.ChatStats
	if e.probe(ctx, "chat", key, &cached) {
		return &cached, nil
	}

	var (
		wg         sync.WaitGroup
		topUsers   []models.UserStats
		totalMsgs  int
		totalUsers int
		topErr     error
		msgsErr    error
		usersErr   error
	)

	start := time.Now()
	wg.Add(3)
	go func() {
		defer wg.Done()
		topUsers, topErr = e.TopUsers(ctx, chatID, period, topLimit)
	}()
	go func() {
		defer wg.Done()
		totalMsgs, msgsErr = e.repo.CountMessages(ctx, chatID, period)
	}()
	go func() {
		defer wg.Done()
		totalUsers, usersErr = e.repo.CountDistinctUsers(ctx, chatID, period)
	}()
	wg.Wait()

	for _, err := range []error{topErr, msgsErr, usersErr} {
		if err != nil {
			e.record("chat", "error", start)
			return nil, fmt.Errorf("chat stats query failed: %w", err)
		}
	}
	e.record("chat", "success", start)

	chatStats := &models.ChatStats{
		ChatID:        chatID,
		TotalMessages: totalMsgs,
		TotalUsers:    totalUsers,
		TopUsers:      topUsers,
		Period:        period,
		GeneratedAt:   time.Now(),
	}

	e.cache.SetJSON(ctx, key, chatStats)

	return chatStats, nil
}

// UserStats returns one user's period breakdown, rank and profile data for
// one chat. The rank is a competition rank over descending all-time counts:
// the most active user is rank 1, tied users share a rank, and the next
// distinct count skips by the tie size. A user with no messages gets rank 0.
func (e *Engine) UserStats(ctx context.Context, userID, chatID int64) (*models.UserChatStats, error) {
	key := cache.Key("user", userID, chatID)

	var cached models.UserChatStats
	if e.probe(ctx, "user", key, &cached) {
		return &cached, nil
	}

	start := time.Now()
	user, err := e.repo.User(ctx, userID)
	if err != nil {
		e.record("user", "error", start)
		return nil, err
	}

	counts, lastMessage, err := e.repo.UserPeriodCounts(ctx, userID, chatID)
	if err != nil {
		e.record("user", "error", start)
		return nil, fmt.Errorf("user period counts failed: %w", err)
	}

	allCounts, err := e.repo.UserMessageCounts(ctx, chatID, models.PeriodAll)
	if err != nil {
		e.record("user", "error", start)
		return nil, fmt.Errorf("rank query failed: %w", err)
	}
	e.record("user", "success", start)

	userStats := &models.UserChatStats{
		UserID:        user.ID,
		Username:      user.Username,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		TotalMessages: counts.All,
		ByPeriod:      counts,
		Rank:          rankOf(allCounts, userID),
		JoinDate:      user.CreatedAt,
		LastMessageAt: lastMessage,
	}

	e.cache.SetJSON(ctx, key, userStats)

	return userStats, nil
}

// SearchUsers matches the term case-insensitively against username, first
// and last name. An empty result is a valid answer, not an error, and a
// blank term returns no matches without touching the store. With a chat
// id the search and the counts are scoped to that chat.
func (e *Engine) SearchUsers(ctx context.Context, term string, chatID *int64, limit int) ([]models.UserStats, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []models.UserStats{}, nil
	}

	chatKey := "global"
	if chatID != nil {
		chatKey = fmt.Sprintf("%d", *chatID)
	}
	key := cache.Key("search", chatKey, strings.ToLower(term), limit)

	var cached []models.UserStats
	if e.probe(ctx, "search", key, &cached) {
		return cached, nil
	}

	start := time.Now()
	counts, err := e.repo.SearchUserCounts(ctx, term, chatID)
	if err != nil {
		e.record("search", "error", start)
		return nil, fmt.Errorf("user search failed: %w", err)
	}
	e.record("search", "success", start)

	users := truncate(sortByCount(counts), limit)
	e.cache.SetJSON(ctx, key, users)

	return users, nil
}

// ListChatUsers returns everyone who has ever messaged in the chat,
// ordered by message count descending.
func (e *Engine) ListChatUsers(ctx context.Context, chatID int64, limit int) ([]models.UserStats, error) {
	key := cache.Key("all-users", chatID, limit)

	var cached []models.UserStats
	if e.probe(ctx, "all-users", key, &cached) {
		return cached, nil
	}

	start := time.Now()
	counts, err := e.repo.UserMessageCounts(ctx, chatID, models.PeriodAll)
	if err != nil {
		e.record("all-users", "error", start)
		return nil, fmt.Errorf("chat users query failed: %w", err)
	}
	e.record("all-users", "success", start)

	users := truncate(sortByCount(counts), limit)
	e.cache.SetJSON(ctx, key, users)

	return users, nil
}

func (e *Engine) probe(ctx context.Context, kind, key string, dest interface{}) bool {
	if e.cache.GetJSON(ctx, key, dest) {
		e.logger.WithField("key", key).Debug("Cache hit")
		if e.metrics != nil {
			e.metrics.RecordCacheHit(kind)
		}
		return true
	}
	if e.metrics != nil {
		e.metrics.RecordCacheMiss(kind)
	}
	return false
}

func (e *Engine) record(kind, status string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordStatsQuery(kind, status, time.Since(start))
	}
}

// sortByCount orders by message count descending; ties break on user id
// ascending so output is deterministic.
func sortByCount(users []models.UserStats) []models.UserStats {
	sorted := make([]models.UserStats, len(users))
	copy(sorted, users)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].MessageCount != sorted[j].MessageCount {
			return sorted[i].MessageCount > sorted[j].MessageCount
		}
		return sorted[i].UserID < sorted[j].UserID
	})
	return sorted
}

func truncate(users []models.UserStats, limit int) []models.UserStats {
	if limit > 0 && len(users) > limit {
		return users[:limit]
	}
	return users
}

// rankOf computes the user's competition rank over descending counts.
func rankOf(counts []models.UserStats, userID int64) int {
	sorted := sortByCount(counts)

	rank := 0
	prevCount := -1
	for i, u := range sorted {
		if u.MessageCount != prevCount {
			rank = i + 1
			prevCount = u.MessageCount
		}
		if u.UserID == userID {
			return rank
		}
	}
	return 0
}
