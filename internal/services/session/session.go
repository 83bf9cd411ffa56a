package session

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/models"
)

// Store holds at most one "awaiting input" session per conversation,
// keyed by the conversation id. Begin overwrites any prior session for the
// same conversation (last write wins). Sessions expire after the
// configured TTL; a zero TTL keeps abandoned sessions until they are
// consumed, cancelled or overwritten.
type Store struct {
	sessions *gocache.Cache
	logger   *logrus.Logger
}

// NewStore creates the session store.
func NewStore(ttl time.Duration, logger *logrus.Logger) *Store {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Store{
		sessions: gocache.New(ttl, 10*time.Minute),
		logger:   logger,
	}
}

// Begin installs an "awaiting search term" session for the conversation.
// targetChatID is the chat whose statistics the search will run against.
func (s *Store) Begin(chatID, targetChatID int64) {
	sess := &models.Session{
		ChatID:       chatID,
		TargetChatID: targetChatID,
		Action:       models.AwaitingSearch,
		CreatedAt:    time.Now(),
	}
	s.sessions.SetDefault(key(chatID), sess)

	s.logger.WithFields(logrus.Fields{
		"chat_id":   chatID,
		"target_id": targetChatID,
	}).Debug("Search session opened")
}

// Peek returns the conversation's open session without consuming it.
func (s *Store) Peek(chatID int64) (*models.Session, bool) {
	val, found := s.sessions.Get(key(chatID))
	if !found {
		return nil, false
	}
	return val.(*models.Session), true
}

// Clear removes the conversation's session if one is open.
func (s *Store) Clear(chatID int64) {
	s.sessions.Delete(key(chatID))
}

// Count reports the number of open sessions, for monitoring.
func (s *Store) Count() int {
	return s.sessions.ItemCount()
}

func key(chatID int64) string {
	return fmt.Sprintf("%d", chatID)
}
