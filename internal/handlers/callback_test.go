package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tg-chatstat-go/internal/models"
)

func TestParseStatsCallbackPeriods(t *testing.T) {
	tests := []struct {
		data   string
		period models.Period
		chatID int64
	}{
		{"stats:today:100", models.PeriodToday, 100},
		{"stats:week:-1001234", models.PeriodWeek, -1001234},
		{"stats:month:42", models.PeriodMonth, 42},
		{"stats:all:100", models.PeriodAll, 100},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := ParseStatsCallback(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.period, got.Period)
			assert.Equal(t, tt.chatID, got.ChatID)
		})
	}
}

func TestParseStatsCallbackNavigation(t *testing.T) {
	for _, action := range []string{ActionSearch, ActionList, ActionBack} {
		got, err := ParseStatsCallback("stats:" + action + ":100")
		require.NoError(t, err)
		assert.Equal(t, action, got.Action)
		assert.Equal(t, int64(100), got.ChatID)
	}
}

func TestParseStatsCallbackSelectUser(t *testing.T) {
	got, err := ParseStatsCallback("stats:select_user:-1001234:777")
	require.NoError(t, err)

	assert.Equal(t, ActionSelectUser, got.Action)
	assert.Equal(t, int64(-1001234), got.ChatID)
	assert.Equal(t, int64(777), got.UserID)
}

func TestParseStatsCallbackRejections(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"wrong prefix", "nav:today:100", ErrCallbackMalformed},
		{"too few segments", "stats:today", ErrCallbackMalformed},
		{"empty", "", ErrCallbackMalformed},
		{"non-numeric chat id", "stats:today:abc", ErrCallbackBadChatID},
		{"unknown action", "stats:yearly:100", ErrCallbackUnknownAction},
		{"select without user id", "stats:select_user:100", ErrCallbackMalformed},
		{"non-numeric user id", "stats:select_user:100:bob", ErrCallbackBadUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatsCallback(tt.data)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseStatsCallbackIgnoresExtraSegmentsForPeriods(t *testing.T) {
	// trailing garbage after a valid period payload still parses; the
	// extra segment carries no meaning for these actions
	got, err := ParseStatsCallback("stats:week:100:junk")
	require.NoError(t, err)
	assert.Equal(t, models.PeriodWeek, got.Period)
}
