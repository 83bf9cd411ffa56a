package handlers

import (
	"context"
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

// replyKind classifies an incoming text against the conversation's
// open search session.
type replyKind int

const (
	// replyOrdinary: no applicable session, treat as a normal message.
	replyOrdinary replyKind = iota
	// replySearch: the text is the awaited search term.
	replySearch
	// replyRedirect: one-to-one reply aimed at a different chat's
	// prompt, clear and point the user back.
	replyRedirect
)

// classifySearchReply decides what an incoming text means for the
// session open in its conversation, if any. A session targeting a
// different chat only consumes the reply in a one-to-one conversation;
// in a group the session stays open and the text counts as an
// ordinary message.
func classifySearchReply(sess *models.Session, chatID int64, isPrivate bool) replyKind {
	if sess == nil || sess.Action != models.AwaitingSearch {
		return replyOrdinary
	}
	if sess.TargetChatID == chatID {
		return replySearch
	}
	if isPrivate {
		return replyRedirect
	}
	return replyOrdinary
}

// MessageHandler persists group traffic and consumes search replies.
type MessageHandler struct {
	bot      *tgbotapi.BotAPI
	cfg      *config.Config
	engine   *stats.Engine
	sessions *session.Store
	users    *storage.UserRepo
	chats    *storage.ChatRepo
	messages *storage.MessageRepo
	renderer *Renderer
	metrics  *middleware.Metrics
	logger   *logrus.Logger
}

// NewMessageHandler creates the plain-message handler.
func NewMessageHandler(
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	engine *stats.Engine,
	sessions *session.Store,
	users *storage.UserRepo,
	chats *storage.ChatRepo,
	messages *storage.MessageRepo,
	renderer *Renderer,
	metrics *middleware.Metrics,
	log *logrus.Logger,
) *MessageHandler {
	return &MessageHandler{
		bot:      bot,
		cfg:      cfg,
		engine:   engine,
		sessions: sessions,
		users:    users,
		chats:    chats,
		messages: messages,
		renderer: renderer,
		metrics:  metrics,
		logger:   log,
	}
}

// HandleMessage processes one non-command text message.
func (h *MessageHandler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.From.ID == h.bot.Self.ID {
		return nil
	}

	if sess, ok := h.sessions.Peek(msg.Chat.ID); ok {
		switch classifySearchReply(sess, msg.Chat.ID, msg.Chat.IsPrivate()) {
		case replySearch:
			return h.handleSearchReply(ctx, msg, sess)
		case replyRedirect:
			h.sessions.Clear(msg.Chat.ID)
			h.metrics.SetActiveSessions(float64(h.sessions.Count()))
			h.send(msg.Chat.ID, h.renderer.Text(i18n.MsgSearchRedirect), nil)
			return nil
		}
	}

	return h.persistMessage(ctx, msg)
}

func (h *MessageHandler) handleSearchReply(ctx context.Context, msg *tgbotapi.Message, sess *models.Session) error {
	log := logger.WithChatUser(h.logger, msg.Chat.ID, msg.From.ID)

	// the session is consumed by this reply whatever the outcome
	h.sessions.Clear(msg.Chat.ID)
	h.metrics.SetActiveSessions(float64(h.sessions.Count()))

	term := strings.TrimPrefix(strings.TrimSpace(msg.Text), "@")
	target := sess.TargetChatID

	found, err := h.engine.SearchUsers(ctx, term, &target, h.cfg.Stats.SearchLimit)
	if err != nil {
		log.WithError(err).WithField("term", term).Error("User search failed")
		h.send(msg.Chat.ID, h.renderer.Text(i18n.MsgError), nil)
		return err
	}
	h.metrics.RecordSearch()

	if len(found) == 0 {
		keyboard := h.renderer.BackKeyboard(target)
		h.send(msg.Chat.ID, h.renderer.text(i18n.MsgSearchNotFound, map[string]interface{}{
			"Term": term,
		}), &keyboard)
		return nil
	}

	keyboard := h.renderer.UserSelectKeyboard(target, found)
	h.send(msg.Chat.ID, h.renderer.SearchResults(term, found), &keyboard)
	return nil
}

// persistMessage records the author, the chat and the message itself.
// Each write is independent so one failure does not lose the rest.
func (h *MessageHandler) persistMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat.IsPrivate() {
		return nil
	}

	log := logger.WithChatUser(h.logger, msg.Chat.ID, msg.From.ID)

	if err := h.users.Upsert(ctx, &models.User{
		ID:           msg.From.ID,
		Username:     msg.From.UserName,
		FirstName:    msg.From.FirstName,
		LastName:     msg.From.LastName,
		LanguageCode: msg.From.LanguageCode,
	}); err != nil {
		log.WithError(err).Error("Failed to upsert user")
	}

	exists, err := h.chats.Exists(ctx, msg.Chat.ID)
	if err != nil {
		log.WithError(err).Error("Failed to check chat record")
	}
	if err != nil || !exists {
		if err := h.chats.Upsert(ctx, &models.Chat{
			ID:    msg.Chat.ID,
			Title: msg.Chat.Title,
			Type:  msg.Chat.Type,
		}); err != nil {
			log.WithError(err).Error("Failed to upsert chat")
		}
	}

	if msg.Text == "" {
		return nil
	}

	if err := h.messages.Insert(ctx, &models.StoredMessage{
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
	}); err != nil {
		log.WithError(err).Error("Failed to store message")
		return err
	}

	h.metrics.RecordMessageStored(msg.Chat.Type)
	return nil
}

func (h *MessageHandler) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil {
		out.ReplyMarkup = *keyboard
	}
	if _, err := h.bot.Send(out); err != nil {
		h.logger.WithError(err).Warn("Failed to send message")
	}
}
