package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/config"
	"github.com/tg-chatstat-go/internal/i18n"
	"github.com/tg-chatstat-go/internal/middleware"
	"github.com/tg-chatstat-go/internal/models"
	"github.com/tg-chatstat-go/internal/services/session"
	"github.com/tg-chatstat-go/internal/services/stats"
	"github.com/tg-chatstat-go/internal/services/storage"
	"github.com/tg-chatstat-go/pkg/logger"
)

const callbackPrefix = "stats"

// Callback actions beyond the four period names.
const (
	ActionSearch     = "search"
	ActionList       = "list"
	ActionSelectUser = "select_user"
	ActionBack       = "back"
)

// Parse failures, distinguished so the handler can answer with the
// right message.
var (
	ErrCallbackMalformed     = errors.New("malformed callback payload")
	ErrCallbackUnknownAction = errors.New("unknown callback action")
	ErrCallbackBadChatID     = errors.New("callback chat id is not numeric")
	ErrCallbackBadUserID     = errors.New("callback user id is not numeric")
)

// StatsCallback is a decoded stats:<action>:<chatId>[:<userId>] payload.
type StatsCallback struct {
	Action string
	ChatID int64
	// UserID is set only for select_user.
	UserID int64
	// Period is set only for period actions.
	Period models.Period
}

// ParseStatsCallback decodes and validates a callback payload. The
// chat id always occupies the third segment; select_user carries the
// target user id in a fourth one.
func ParseStatsCallback(data string) (*StatsCallback, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 3 || parts[0] != callbackPrefix {
		return nil, fmt.Errorf("%w: %q", ErrCallbackMalformed, data)
	}

	chatID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrCallbackBadChatID, parts[2])
	}

	cb := &StatsCallback{Action: parts[1], ChatID: chatID}

	switch cb.Action {
	case ActionSearch, ActionList, ActionBack:
		return cb, nil
	case ActionSelectUser:
		if len(parts) < 4 {
			return nil, fmt.Errorf("%w: missing user id", ErrCallbackMalformed)
		}
		userID, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrCallbackBadUserID, parts[3])
		}
		cb.UserID = userID
		return cb, nil
	default:
		period, err := models.ParsePeriod(cb.Action)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrCallbackUnknownAction, cb.Action)
		}
		cb.Period = period
		return cb, nil
	}
}

// CallbackHandler routes inline-keyboard presses to the stats engine.
type CallbackHandler struct {
	bot      *tgbotapi.BotAPI
	cfg      *config.Config
	engine   *stats.Engine
	sessions *session.Store
	renderer *Renderer
	metrics  *middleware.Metrics
	logger   *logrus.Logger
}

// NewCallbackHandler creates the callback router.
func NewCallbackHandler(
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	engine *stats.Engine,
	sessions *session.Store,
	renderer *Renderer,
	metrics *middleware.Metrics,
	log *logrus.Logger,
) *CallbackHandler {
	return &CallbackHandler{
		bot:      bot,
		cfg:      cfg,
		engine:   engine,
		sessions: sessions,
		renderer: renderer,
		metrics:  metrics,
		logger:   log,
	}
}

// HandleCallback processes one callback query. Payloads without the
// stats prefix are ignored.
func (h *CallbackHandler) HandleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query.Message == nil || !strings.HasPrefix(query.Data, callbackPrefix+":") {
		return nil
	}

	log := logger.WithChatUser(h.logger, query.Message.Chat.ID, query.From.ID)

	parsed, err := ParseStatsCallback(query.Data)
	if err != nil {
		log.WithError(err).WithField("data", query.Data).Warn("Rejected callback payload")
		h.metrics.RecordCallback("parse", "rejected")
		h.answer(query.ID, h.renderer.Text(h.rejectMessageID(err)))
		return nil
	}

	if ok := h.checkAccess(query, parsed.ChatID); !ok {
		h.metrics.RecordCallback(parsed.Action, "denied")
		return nil
	}

	switch parsed.Action {
	case ActionSearch:
		err = h.handleSearchPrompt(query, parsed)
	case ActionList:
		err = h.handleUserList(ctx, query, parsed)
	case ActionSelectUser:
		err = h.handleSelectUser(ctx, query, parsed)
	case ActionBack:
		// navigating away abandons any open search prompt here
		h.sessions.Clear(query.Message.Chat.ID)
		h.metrics.SetActiveSessions(float64(h.sessions.Count()))
		err = h.showChatStats(ctx, query, parsed.ChatID, models.PeriodAll)
	default:
		err = h.showChatStats(ctx, query, parsed.ChatID, parsed.Period)
	}

	if err != nil {
		log.WithError(err).WithField("action", parsed.Action).Error("Callback handling failed")
		h.metrics.RecordCallback(parsed.Action, "error")
		h.answer(query.ID, h.renderer.Text(i18n.MsgCbFailed))
		return err
	}

	h.metrics.RecordCallback(parsed.Action, "ok")
	return nil
}

func (h *CallbackHandler) rejectMessageID(err error) string {
	switch {
	case errors.Is(err, ErrCallbackBadChatID):
		return i18n.MsgCbInvalidChat
	case errors.Is(err, ErrCallbackBadUserID):
		return i18n.MsgCbInvalidUser
	case errors.Is(err, ErrCallbackUnknownAction):
		return i18n.MsgCbUnknownAction
	default:
		return i18n.MsgCbFailed
	}
}

// checkAccess verifies the bot is still a member of the target chat
// before serving any data about it. Answers the query itself on denial.
func (h *CallbackHandler) checkAccess(query *tgbotapi.CallbackQuery, chatID int64) bool {
	member, err := h.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: h.bot.Self.ID,
		},
	})
	if err != nil {
		logger.WithChatUser(h.logger, chatID, query.From.ID).WithError(err).Warn("Chat membership check failed")
		h.answer(query.ID, h.renderer.Text(i18n.MsgCbNoAccess))
		return false
	}
	if member.Status == "left" || member.Status == "kicked" {
		h.answer(query.ID, h.renderer.Text(i18n.MsgCbNotMember))
		return false
	}
	return true
}

func (h *CallbackHandler) showChatStats(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, period models.Period) error {
	snapshot, err := h.engine.ChatStats(ctx, chatID, period, h.cfg.Stats.TopLimit)
	if err != nil {
		return err
	}

	keyboard := h.renderer.StatsKeyboard(chatID, period)
	h.edit(query, h.renderer.ChatStats(snapshot), &keyboard)
	h.answer(query.ID, "")
	return nil
}

func (h *CallbackHandler) handleSearchPrompt(query *tgbotapi.CallbackQuery, parsed *StatsCallback) error {
	keyboard := h.renderer.BackKeyboard(parsed.ChatID)
	h.edit(query, h.renderer.Text(i18n.MsgSearchPrompt), &keyboard)

	// The session lives in the conversation where the prompt was shown;
	// the stats chat it targets may be a different one.
	h.sessions.Begin(query.Message.Chat.ID, parsed.ChatID)
	h.metrics.SetActiveSessions(float64(h.sessions.Count()))

	h.answer(query.ID, "")
	return nil
}

func (h *CallbackHandler) handleUserList(ctx context.Context, query *tgbotapi.CallbackQuery, parsed *StatsCallback) error {
	users, err := h.engine.ListChatUsers(ctx, parsed.ChatID, h.cfg.Stats.ListLimit)
	if err != nil {
		logger.WithChatUser(h.logger, parsed.ChatID, query.From.ID).WithError(err).Error("User list query failed")
		keyboard := h.renderer.BackKeyboard(parsed.ChatID)
		h.edit(query, h.renderer.Text(i18n.MsgCbListFailed), &keyboard)
		h.answer(query.ID, "")
		return nil
	}

	if len(users) == 0 {
		keyboard := h.renderer.BackKeyboard(parsed.ChatID)
		h.edit(query, h.renderer.Text(i18n.MsgUserListEmpty), &keyboard)
		h.answer(query.ID, "")
		return nil
	}

	keyboard := h.renderer.UserSelectKeyboard(parsed.ChatID, users)
	h.edit(query, h.renderer.UserList(users), &keyboard)
	h.answer(query.ID, "")
	return nil
}

func (h *CallbackHandler) handleSelectUser(ctx context.Context, query *tgbotapi.CallbackQuery, parsed *StatsCallback) error {
	detail, err := h.engine.UserStats(ctx, parsed.UserID, parsed.ChatID)
	if err != nil {
		keyboard := h.renderer.BackToListKeyboard(parsed.ChatID)
		if errors.Is(err, storage.ErrNotFound) {
			h.edit(query, h.renderer.Text(i18n.MsgUserNotFound), &keyboard)
		} else {
			logger.WithChatUser(h.logger, parsed.ChatID, parsed.UserID).WithError(err).Error("User stats lookup failed")
			h.edit(query, h.renderer.Text(i18n.MsgUserStatsFailed), &keyboard)
		}
		h.answer(query.ID, "")
		return nil
	}

	keyboard := h.renderer.UserDetailKeyboard(parsed.ChatID)
	h.edit(query, h.renderer.UserStats(detail), &keyboard)
	h.answer(query.ID, "")
	return nil
}

func (h *CallbackHandler) edit(query *tgbotapi.CallbackQuery, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = keyboard
	if _, err := h.bot.Send(edit); err != nil {
		h.logger.WithError(err).Warn("Failed to edit message")
	}
}

func (h *CallbackHandler) answer(queryID, text string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		h.logger.WithError(err).Warn("Failed to answer callback query")
	}
}
