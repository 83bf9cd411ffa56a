package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tg-chatstat-go/internal/models"
)

func TestClassifySearchReply(t *testing.T) {
	session := func(target int64) *models.Session {
		return &models.Session{ChatID: 100, TargetChatID: target, Action: models.AwaitingSearch}
	}

	tests := []struct {
		name      string
		sess      *models.Session
		chatID    int64
		isPrivate bool
		want      replyKind
	}{
		{"no session", nil, 100, true, replyOrdinary},
		{"matching target in private", session(100), 100, true, replySearch},
		{"matching target in group", session(-1001234), -1001234, false, replySearch},
		{"stale private session for another chat", session(-1001234), 100, true, replyRedirect},
		{"group session for another chat", session(-2), -1001234, false, replyOrdinary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifySearchReply(tt.sess, tt.chatID, tt.isPrivate))
		})
	}
}

func TestClassifySearchReplyIgnoresForeignAction(t *testing.T) {
	sess := &models.Session{ChatID: 100, TargetChatID: 100, Action: "something_else"}
	assert.Equal(t, replyOrdinary, classifySearchReply(sess, 100, true))
}
