package models

import (
	"fmt"
	"strings"
	"time"
)

// Period is a named time window used to filter aggregation queries.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// ParsePeriod validates a raw period value coming from a callback payload.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodAll:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period: %q", s)
	}
}

// User represents a profile record from the users table
type User struct {
	ID           int64     `json:"telegram_id"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name,omitempty"`
	LanguageCode string    `json:"language_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chat represents a conversation record from the chats table
type Chat struct {
	ID    int64  `json:"telegram_id"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type"` // private, group, supergroup, channel
}

// StoredMessage is one message event tied to a chat and a user
type StoredMessage struct {
	ChatID    int64  `json:"chat_telegram_id"`
	UserID    int64  `json:"user_telegram_id"`
	MessageID int    `json:"message_id"`
	Text      string `json:"text"`
}

// UserStats is a per-user message count within some scope.
/// Ordering key everywhere: MessageCount descending, UserID ascending on ties.
type UserStats struct {
	UserID       int64  `json:"telegram_id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	MessageCount int    `json:"message_count"`
}

// DisplayName renders the user the way the bot shows them: @username when
// set, otherwise first and last name.
func (u UserStats) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return "Unknown"
	}
	return name
}

// ChatStats is an immutable chat-wide snapshot for one period
type ChatStats struct {
	ChatID        int64       `json:"chat_telegram_id"`
	TotalMessages int         `json:"total_messages"`
	TotalUsers    int         `json:"total_users"`
	TopUsers      []UserStats `json:"top_users"`
	Period        Period      `json:"period"`
	GeneratedAt   time.Time   `json:"generated_at"`
}

// PeriodCounts buckets one user's messages into the standard windows
type PeriodCounts struct {
	Today int `json:"today"`
	Week  int `json:"week"`
	Month int `json:"month"`
	All   int `json:"all"`
}

// UserChatStats is the detail view for one user in one chat
type UserChatStats struct {
	UserID        int64        `json:"telegram_id"`
	Username      string       `json:"username,omitempty"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name,omitempty"`
	TotalMessages int          `json:"total_messages"`
	ByPeriod      PeriodCounts `json:"messages_by_period"`
	Rank          int          `json:"rank"` // 1-based, ties share a rank, 0 if no messages
	JoinDate      time.Time    `json:"join_date"`
	LastMessageAt *time.Time   `json:"last_message_date,omitempty"`
}

// DisplayName mirrors UserStats.DisplayName for the detail view.
func (u UserChatStats) DisplayName() string {
	return UserStats{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}.DisplayName()
}

// SessionAction enumerates the kinds of input a session can await
type SessionAction string

const (
	// AwaitingSearch means the next free-text reply in the conversation is
	// treated as a user search term.
	AwaitingSearch SessionAction = "awaiting_search"
)

// Session is the per-conversation "awaiting input" record. ChatID is the
// conversation the reply must arrive in; TargetChatID is the chat whose
// statistics are being searched (they differ when the stats message was
// opened outside the target group).
type Session struct {
	ChatID       int64
	TargetChatID int64
	Action       SessionAction
	CreatedAt    time.Time
}
