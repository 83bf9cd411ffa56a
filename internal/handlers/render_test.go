package handlers

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tg-chatstat-go/internal/config"
	"github.com/tg-chatstat-go/internal/i18n"
	"github.com/tg-chatstat-go/internal/models"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	localizer, err := i18n.NewLocalizer(&config.I18nConfig{
		DefaultLanguage: "ru",
		Languages:       []string{"ru", "en"},
		Directory:       "../../configs/i18n",
	})
	require.NoError(t, err)
	return NewRenderer(localizer, "ru")
}

func TestChatStatsRendering(t *testing.T) {
	r := testRenderer(t)

	text := r.ChatStats(&models.ChatStats{
		ChatID:        -1001234,
		TotalMessages: 11,
		TotalUsers:    3,
		TopUsers: []models.UserStats{
			{UserID: 1, Username: "alice", MessageCount: 5},
			{UserID: 2, FirstName: "Боб", MessageCount: 3},
		},
		Period:      models.PeriodAll,
		GeneratedAt: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	})

	assert.Contains(t, text, "1. @alice - 5")
	assert.Contains(t, text, "2. Боб - 3")
	assert.Contains(t, text, "11")
	assert.Contains(t, text, "01.03.2024 12:30")
}

func TestChatStatsRenderingEmpty(t *testing.T) {
	r := testRenderer(t)

	text := r.ChatStats(&models.ChatStats{Period: models.PeriodToday, GeneratedAt: time.Now()})
	assert.NotEmpty(t, text)
	assert.NotContains(t, text, "1. ")
}

func TestStatsKeyboardPayloadsParse(t *testing.T) {
	r := testRenderer(t)

	kb := r.StatsKeyboard(-1001234, models.PeriodWeek)
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			require.NotNil(t, btn.CallbackData)
			parsed, err := ParseStatsCallback(*btn.CallbackData)
			require.NoError(t, err, "button %q carries payload %q", btn.Text, *btn.CallbackData)
			assert.Equal(t, int64(-1001234), parsed.ChatID)
		}
	}
}

func TestStatsKeyboardMarksActivePeriod(t *testing.T) {
	r := testRenderer(t)

	kb := r.StatsKeyboard(100, models.PeriodWeek)

	var marked []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if strings.HasPrefix(btn.Text, "✅") {
				require.NotNil(t, btn.CallbackData)
				marked = append(marked, *btn.CallbackData)
			}
		}
	}

	require.Len(t, marked, 1)
	assert.Equal(t, "stats:week:100", marked[0])
}

func TestUserSelectKeyboardLayout(t *testing.T) {
	r := testRenderer(t)

	users := []models.UserStats{
		{UserID: 1, Username: "a", MessageCount: 5},
		{UserID: 2, Username: "b", MessageCount: 4},
		{UserID: 3, Username: "c", MessageCount: 3},
	}
	kb := r.UserSelectKeyboard(100, users)

	// two users per row, an odd one on its own, plus the back row
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Len(t, kb.InlineKeyboard[0], 2)
	assert.Len(t, kb.InlineKeyboard[1], 1)

	first := kb.InlineKeyboard[0][0]
	require.NotNil(t, first.CallbackData)
	assert.Equal(t, "stats:select_user:100:1", *first.CallbackData)

	back := kb.InlineKeyboard[2][0]
	require.NotNil(t, back.CallbackData)
	assert.Equal(t, "stats:back:100", *back.CallbackData)
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "short", truncateName("short", 15))
	assert.Equal(t, "exactly-15-char", truncateName("exactly-15-char", 15))

	long := truncateName("a very long display name", 15)
	assert.Equal(t, 15, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "..."))

	cyrillic := truncateName("Константинопольский", 15)
	assert.Equal(t, 15, len([]rune(cyrillic)), "truncation must not split multibyte runes")
}

func TestUserStatsRenderingOmitsAbsentLastMessage(t *testing.T) {
	r := testRenderer(t)

	stats := &models.UserChatStats{
		UserID:    1,
		FirstName: "Иван",
		ByPeriod:  models.PeriodCounts{},
		JoinDate:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}

	text := r.UserStats(stats)
	assert.Contains(t, text, "Иван")
	assert.Contains(t, text, "15.01.2024")

	last := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	stats.LastMessageAt = &last
	withLast := r.UserStats(stats)
	assert.Contains(t, withLast, "01.02.2024 10:00")
	assert.Greater(t, len(withLast), len(text))
}
