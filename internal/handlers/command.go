package handlers

import (
	"context"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/config"
	"github.com/tg-chatstat-go/internal/i18n"
	"github.com/tg-chatstat-go/internal/middleware"
	"github.com/tg-chatstat-go/internal/models"
	"github.com/tg-chatstat-go/internal/services/ai"
	"github.com/tg-chatstat-go/internal/services/session"
	"github.com/tg-chatstat-go/internal/services/stats"
	"github.com/tg-chatstat-go/internal/services/storage"
	"github.com/tg-chatstat-go/pkg/logger"
	"github.com/tg-chatstat-go/pkg/markdown"
)

var usernameArgRe = regexp.MustCompile(`@(\w+)`)

const analyzeTimeout = 2 * time.Minute

// CommandHandler serves the slash commands.
type CommandHandler struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.Config
	engine      *stats.Engine
	sessions    *session.Store
	users       *storage.UserRepo
	messages    *storage.MessageRepo
	analyzer    ai.Service
	rateLimiter middleware.RateLimiter
	renderer    *Renderer
	metrics     *middleware.Metrics
	logger      *logrus.Logger
}

// NewCommandHandler creates the command handler. analyzer may be nil
// when the analysis feature is disabled.
func NewCommandHandler(
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	engine *stats.Engine,
	sessions *session.Store,
	users *storage.UserRepo,
	messages *storage.MessageRepo,
	analyzer ai.Service,
	rateLimiter middleware.RateLimiter,
	renderer *Renderer,
	metrics *middleware.Metrics,
	log *logrus.Logger,
) *CommandHandler {
	return &CommandHandler{
		bot:         bot,
		cfg:         cfg,
		engine:      engine,
		sessions:    sessions,
		users:       users,
		messages:    messages,
		analyzer:    analyzer,
		rateLimiter: rateLimiter,
		renderer:    renderer,
		metrics:     metrics,
		logger:      log,
	}
}

// HandleCommand dispatches one slash command.
func (h *CommandHandler) HandleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		h.reply(msg, h.renderer.Text(i18n.MsgWelcome), nil)
	case "help":
		h.reply(msg, h.renderer.Text(i18n.MsgHelp), nil)
	case "stats":
		return h.handleStats(ctx, msg)
	case "cancel":
		h.handleCancel(msg)
	case "analyze":
		return h.handleAnalyze(ctx, msg)
	}
	return nil
}

func (h *CommandHandler) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat.IsPrivate() {
		h.reply(msg, h.renderer.Text(i18n.MsgStatsGroupsOnly), nil)
		return nil
	}

	if !h.rateLimiter.Allow(msg.From.ID) {
		h.reply(msg, h.renderer.Text(i18n.MsgRateLimited), nil)
		return nil
	}

	log := logger.WithChatUser(h.logger, msg.Chat.ID, msg.From.ID)

	snapshot, err := h.engine.ChatStats(ctx, msg.Chat.ID, models.PeriodAll, h.cfg.Stats.TopLimit)
	if err != nil {
		log.WithError(err).Error("Chat stats query failed")
		h.reply(msg, h.renderer.Text(i18n.MsgStatsUnavailable), nil)
		return err
	}

	keyboard := h.renderer.StatsKeyboard(msg.Chat.ID, models.PeriodAll)
	h.reply(msg, h.renderer.ChatStats(snapshot), &keyboard)
	return nil
}

func (h *CommandHandler) handleCancel(msg *tgbotapi.Message) {
	if _, ok := h.sessions.Peek(msg.Chat.ID); !ok {
		h.reply(msg, h.renderer.Text(i18n.MsgNoActiveSearch), nil)
		return
	}
	h.sessions.Clear(msg.Chat.ID)
	h.metrics.SetActiveSessions(float64(h.sessions.Count()))
	h.reply(msg, h.renderer.Text(i18n.MsgSearchCancelled), nil)
}

func (h *CommandHandler) handleAnalyze(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat.IsPrivate() {
		h.reply(msg, h.renderer.Text(i18n.MsgAnalyzeGroupsOnly), nil)
		return nil
	}
	if h.analyzer == nil {
		h.reply(msg, h.renderer.Text(i18n.MsgAnalyzeFailed), nil)
		return nil
	}

	log := logger.WithChatUser(h.logger, msg.Chat.ID, msg.From.ID)

	// target is either an explicit @username argument or the author of
	// the replied-to message
	var targetID int64
	var targetName string
	if m := usernameArgRe.FindStringSubmatch(msg.CommandArguments()); m != nil {
		targetName = m[1]
		id, err := h.users.IDByUsername(ctx, targetName)
		if err != nil {
			log.WithError(err).WithField("username", targetName).Warn("Analyze target not found")
			h.reply(msg, h.renderer.Text(i18n.MsgUserNotFound), nil)
			return nil
		}
		targetID = id
	} else if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		targetID = msg.ReplyToMessage.From.ID
		targetName = msg.ReplyToMessage.From.UserName
	} else {
		h.reply(msg, h.renderer.Text(i18n.MsgAnalyzeNoTarget), nil)
		return nil
	}

	if !h.rateLimiter.Allow(msg.From.ID) {
		h.reply(msg, h.renderer.Text(i18n.MsgRateLimited), nil)
		return nil
	}

	waitText := h.renderer.Text(i18n.MsgAnalyzeWait)
	if targetName != "" {
		waitText = h.renderer.text(i18n.MsgAnalyzeWaitUser, map[string]interface{}{
			"Username": targetName,
		})
	}
	waiting, err := h.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, waitText))
	if err != nil {
		return err
	}

	texts, err := h.messages.LastUserTexts(ctx, targetID, h.cfg.AI.AnalyzeMessages)
	if err != nil {
		log.WithError(err).Error("Failed to load messages for analysis")
		h.editPlain(msg.Chat.ID, waiting.MessageID, h.renderer.Text(i18n.MsgAnalyzeFailed))
		return err
	}
	if len(texts) == 0 {
		h.editPlain(msg.Chat.ID, waiting.MessageID, h.renderer.Text(i18n.MsgNoData))
		return nil
	}

	aiCtx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	result, err := h.analyzer.AnalyzeStyle(aiCtx, strings.Join(texts, "\n"))
	if err != nil {
		log.WithError(err).Error("Style analysis failed")
		h.editPlain(msg.Chat.ID, waiting.MessageID, h.renderer.Text(i18n.MsgAnalyzeFailed))
		return err
	}

	h.editRich(msg.Chat.ID, waiting.MessageID, result)
	return nil
}

func (h *CommandHandler) reply(msg *tgbotapi.Message, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil {
		out.ReplyMarkup = *keyboard
	}
	if _, err := h.bot.Send(out); err != nil {
		h.logger.WithError(err).Warn("Failed to send reply")
	}
}

func (h *CommandHandler) editPlain(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := h.bot.Send(edit); err != nil {
		h.logger.WithError(err).Warn("Failed to edit message")
	}
}

// editRich converts model markdown to Telegram HTML, falling back to
// plain text when Telegram rejects the markup.
func (h *CommandHandler) editRich(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, markdown.ToTelegramHTML(text))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := h.bot.Send(edit); err != nil {
		h.logger.WithError(err).Warn("Falling back to plain text edit")
		h.editPlain(chatID, messageID, text)
	}
}
