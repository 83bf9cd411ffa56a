package handlers

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tg-chatstat-go/internal/i18n"
	"github.com/tg-chatstat-go/internal/models"
)

const (
	dateFormat     = "02.01.2006"
	dateTimeFormat = "02.01.2006 15:04"
	nameButtonMax  = 15
)

// Renderer builds the localized texts and inline keyboards for every view.
type Renderer struct {
	localizer *i18n.Localizer
	lang      string
}

// NewRenderer creates a renderer bound to one language.
func NewRenderer(localizer *i18n.Localizer, lang string) *Renderer {
	return &Renderer{localizer: localizer, lang: lang}
}

func (r *Renderer) text(id string, data map[string]interface{}) string {
	return r.localizer.Get(r.lang, id, data)
}

// Text exposes plain localized messages to the handlers.
func (r *Renderer) Text(id string) string {
	return r.text(id, nil)
}

func (r *Renderer) periodName(p models.Period) string {
	switch p {
	case models.PeriodToday:
		return r.text(i18n.MsgPeriodToday, nil)
	case models.PeriodWeek:
		return r.text(i18n.MsgPeriodWeek, nil)
	case models.PeriodMonth:
		return r.text(i18n.MsgPeriodMonth, nil)
	default:
		return r.text(i18n.MsgPeriodAll, nil)
	}
}

// ChatStats renders the chat-wide snapshot view.
func (r *Renderer) ChatStats(stats *models.ChatStats) string {
	var b strings.Builder

	b.WriteString(r.text(i18n.MsgChatStatsHeader, map[string]interface{}{
		"Period": r.periodName(stats.Period),
	}))
	b.WriteString("\n\n")

	b.WriteString(r.text(i18n.MsgTopUsersTitle, nil) + "\n")
	if len(stats.TopUsers) == 0 {
		b.WriteString(r.text(i18n.MsgNoData, nil) + "\n")
	} else {
		suffix := r.text(i18n.MsgMessagesSuffix, nil)
		for i, user := range stats.TopUsers {
			b.WriteString(fmt.Sprintf("%d. %s - %d %s\n", i+1, user.DisplayName(), user.MessageCount, suffix))
		}
	}

	b.WriteString("\n" + r.text(i18n.MsgTotalsTitle, nil) + "\n")
	b.WriteString(r.text(i18n.MsgTotalMessages, map[string]interface{}{"Count": stats.TotalMessages}) + "\n")
	b.WriteString(r.text(i18n.MsgTotalUsers, map[string]interface{}{"Count": stats.TotalUsers}) + "\n")
	b.WriteString(r.text(i18n.MsgGeneratedAt, map[string]interface{}{
		"Time": stats.GeneratedAt.Format(dateTimeFormat),
	}) + "\n")

	return b.String()
}

// UserStats renders the per-user detail view.
func (r *Renderer) UserStats(stats *models.UserChatStats) string {
	var b strings.Builder

	b.WriteString(r.text(i18n.MsgUserStatsHeader, map[string]interface{}{
		"Name": stats.DisplayName(),
	}))
	b.WriteString("\n\n")

	b.WriteString(r.text(i18n.MsgActivityTitle, nil) + "\n")
	b.WriteString(r.text(i18n.MsgLabelToday, map[string]interface{}{"Count": stats.ByPeriod.Today}) + "\n")
	b.WriteString(r.text(i18n.MsgLabelWeek, map[string]interface{}{"Count": stats.ByPeriod.Week}) + "\n")
	b.WriteString(r.text(i18n.MsgLabelMonth, map[string]interface{}{"Count": stats.ByPeriod.Month}) + "\n")
	b.WriteString(r.text(i18n.MsgLabelTotal, map[string]interface{}{"Count": stats.TotalMessages}) + "\n\n")

	b.WriteString(r.text(i18n.MsgExtraTitle, nil) + "\n")
	b.WriteString(r.text(i18n.MsgLabelRank, map[string]interface{}{"Rank": stats.Rank}) + "\n")
	b.WriteString(r.text(i18n.MsgLabelJoinDate, map[string]interface{}{
		"Date": stats.JoinDate.Format(dateFormat),
	}) + "\n")
	if stats.LastMessageAt != nil {
		b.WriteString(r.text(i18n.MsgLabelLastMsg, map[string]interface{}{
			"Time": stats.LastMessageAt.Format(dateTimeFormat),
		}) + "\n")
	}

	return b.String()
}

// UserList renders the numbered user index.
func (r *Renderer) UserList(users []models.UserStats) string {
	var b strings.Builder
	b.WriteString(r.text(i18n.MsgUserListHeader, nil) + "\n\n")
	b.WriteString(r.userLines(users))
	return b.String()
}

// SearchResults renders the search hit list for a term.
func (r *Renderer) SearchResults(term string, users []models.UserStats) string {
	var b strings.Builder
	b.WriteString(r.text(i18n.MsgSearchResults, map[string]interface{}{"Term": term}) + "\n\n")
	b.WriteString(r.userLines(users))
	return b.String()
}

func (r *Renderer) userLines(users []models.UserStats) string {
	var b strings.Builder
	suffix := r.text(i18n.MsgMessagesSuffix, nil)
	for i, user := range users {
		b.WriteString(fmt.Sprintf("%d. %s - %d %s\n", i+1, user.DisplayName(), user.MessageCount, suffix))
	}
	return b.String()
}

// StatsKeyboard is the period menu shown under the chat stats view.
func (r *Renderer) StatsKeyboard(chatID int64, active models.Period) tgbotapi.InlineKeyboardMarkup {
	periodBtn := func(p models.Period, labelID string) tgbotapi.InlineKeyboardButton {
		prefix := "📅 "
		if p == active {
			prefix = "✅ "
		}
		return tgbotapi.NewInlineKeyboardButtonData(
			prefix+r.text(labelID, nil),
			fmt.Sprintf("stats:%s:%d", p, chatID),
		)
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			periodBtn(models.PeriodToday, i18n.MsgBtnToday),
			periodBtn(models.PeriodWeek, i18n.MsgBtnWeek),
		),
		tgbotapi.NewInlineKeyboardRow(
			periodBtn(models.PeriodMonth, i18n.MsgBtnMonth),
			periodBtn(models.PeriodAll, i18n.MsgBtnAll),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.text(i18n.MsgBtnSearch, nil), fmt.Sprintf("stats:search:%d", chatID)),
			tgbotapi.NewInlineKeyboardButtonData(r.text(i18n.MsgBtnList, nil), fmt.Sprintf("stats:list:%d", chatID)),
		),
	)
}

// BackKeyboard is a single back-to-stats button.
func (r *Renderer) BackKeyboard(chatID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.text(i18n.MsgBtnBackToStats, nil), fmt.Sprintf("stats:back:%d", chatID)),
		),
	)
}

// UserSelectKeyboard renders select buttons two per row plus a back button.
func (r *Renderer) UserSelectKeyboard(chatID int64, users []models.UserStats) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(users)/2+2)
	for i := 0; i < len(users); i += 2 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
		for j := 0; j < 2 && i+j < len(users); j++ {
			user := users[i+j]
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%d. %s", i+j+1, truncateName(user.DisplayName(), nameButtonMax)),
				fmt.Sprintf("stats:select_user:%d:%d", chatID, user.UserID),
			))
		}
		rows = append(rows, row)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(r.text(i18n.MsgBtnBackToStats, nil), fmt.Sprintf("stats:back:%d", chatID)),
	})

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// UserDetailKeyboard navigates from the detail view back to the list or
// the chat-wide stats.
func (r *Renderer) UserDetailKeyboard(chatID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.text(i18n.MsgBtnBackToList, nil), fmt.Sprintf("stats:list:%d", chatID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.text(i18n.MsgBtnChatStats, nil), fmt.Sprintf("stats:all:%d", chatID)),
		),
	)
}

// BackToListKeyboard is the fallback keyboard for a failed detail lookup.
func (r *Renderer) BackToListKeyboard(chatID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.text(i18n.MsgBtnBack, nil), fmt.Sprintf("stats:list:%d", chatID)),
		),
	)
}

// truncateName bounds a display name for button labels, rune-safe.
func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max-3]) + "..."
}
