package session

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tg-chatstat-go/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestBeginAndPeek(t *testing.T) {
	store := NewStore(time.Minute, testLogger())

	store.Begin(100, -1001234)

	sess, ok := store.Peek(100)
	require.True(t, ok)
	assert.Equal(t, int64(100), sess.ChatID)
	assert.Equal(t, int64(-1001234), sess.TargetChatID)
	assert.Equal(t, models.AwaitingSearch, sess.Action)
	assert.False(t, sess.CreatedAt.IsZero())
}

func TestPeekAbsent(t *testing.T) {
	store := NewStore(time.Minute, testLogger())

	_, ok := store.Peek(100)
	assert.False(t, ok)
}

func TestBeginOverwritesExisting(t *testing.T) {
	store := NewStore(time.Minute, testLogger())

	store.Begin(100, -1)
	store.Begin(100, -2)

	sess, ok := store.Peek(100)
	require.True(t, ok)
	assert.Equal(t, int64(-2), sess.TargetChatID, "later session replaces the earlier one")
	assert.Equal(t, 1, store.Count())
}

func TestSessionsAreConversationScoped(t *testing.T) {
	store := NewStore(time.Minute, testLogger())

	store.Begin(100, -1)

	_, ok := store.Peek(200)
	assert.False(t, ok, "a session in one conversation is invisible to another")

	sess, ok := store.Peek(100)
	require.True(t, ok)
	assert.Equal(t, int64(-1), sess.TargetChatID)
}

func TestClear(t *testing.T) {
	store := NewStore(time.Minute, testLogger())

	store.Begin(100, -1)
	store.Clear(100)

	_, ok := store.Peek(100)
	assert.False(t, ok)
	assert.Zero(t, store.Count())
}

func TestClearAbsentIsNoop(t *testing.T) {
	store := NewStore(time.Minute, testLogger())
	store.Clear(100)
	assert.Zero(t, store.Count())
}

func TestPeekDoesNotConsume(t *testing.T) {
	store := NewStore(time.Minute, testLogger())

	store.Begin(100, -1)
	_, ok := store.Peek(100)
	require.True(t, ok)

	_, ok = store.Peek(100)
	assert.True(t, ok)
}

func TestSessionExpiry(t *testing.T) {
	store := NewStore(20*time.Millisecond, testLogger())

	store.Begin(100, -1)
	time.Sleep(50 * time.Millisecond)

	_, ok := store.Peek(100)
	assert.False(t, ok, "an abandoned session must expire")
}

func TestZeroTTLKeepsSessions(t *testing.T) {
	store := NewStore(0, testLogger())

	store.Begin(100, -1)
	time.Sleep(30 * time.Millisecond)

	_, ok := store.Peek(100)
	assert.True(t, ok)
}
