package i18n

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tg-chatstat-go/internal/config"
	"golang.org/x/text/language"
)

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.Russian)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range cfg.Languages {
		path := filepath.Join(cfg.Directory, lang+".json")
		if _, err := bundle.LoadMessageFile(path); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// Message IDs
const (
	MsgWelcome          = "welcome"
	MsgHelp             = "help"
	MsgStatsGroupsOnly  = "stats_groups_only"
	MsgStatsUnavailable = "stats_unavailable"
	MsgError            = "error"
	MsgRateLimited      = "rate_limited"

	MsgChatStatsHeader = "chat_stats_header"
	MsgTopUsersTitle   = "top_users_title"
	MsgNoData          = "no_data"
	MsgTotalsTitle     = "totals_title"
	MsgTotalMessages   = "total_messages"
	MsgTotalUsers      = "total_users"
	MsgGeneratedAt     = "generated_at"
	MsgMessagesSuffix  = "messages_suffix"

	MsgPeriodToday = "period_today"
	MsgPeriodWeek  = "period_week"
	MsgPeriodMonth = "period_month"
	MsgPeriodAll   = "period_all"

	MsgSearchPrompt    = "search_prompt"
	MsgSearchNotFound  = "search_not_found"
	MsgSearchResults   = "search_results"
	MsgSearchRedirect  = "search_redirect"
	MsgSearchCancelled = "search_cancelled"
	MsgNoActiveSearch  = "no_active_search"

	MsgUserListHeader = "user_list_header"
	MsgUserListEmpty  = "user_list_empty"

	MsgUserStatsHeader = "user_stats_header"
	MsgActivityTitle   = "activity_title"
	MsgLabelToday      = "label_today"
	MsgLabelWeek       = "label_week"
	MsgLabelMonth      = "label_month"
	MsgLabelTotal      = "label_total"
	MsgExtraTitle      = "extra_title"
	MsgLabelRank       = "label_rank"
	MsgLabelJoinDate   = "label_join_date"
	MsgLabelLastMsg    = "label_last_message"
	MsgUserNotFound    = "user_not_found"
	MsgUserStatsFailed = "user_stats_failed"

	MsgBtnToday       = "btn_today"
	MsgBtnWeek        = "btn_week"
	MsgBtnMonth       = "btn_month"
	MsgBtnAll         = "btn_all"
	MsgBtnSearch      = "btn_search"
	MsgBtnList        = "btn_list"
	MsgBtnBack        = "btn_back"
	MsgBtnBackToStats = "btn_back_to_stats"
	MsgBtnBackToList  = "btn_back_to_list"
	MsgBtnChatStats   = "btn_chat_stats"

	MsgCbInvalidChat   = "cb_invalid_chat"
	MsgCbInvalidUser   = "cb_invalid_user"
	MsgCbNotMember     = "cb_not_member"
	MsgCbNoAccess      = "cb_no_access"
	MsgCbUnknownAction = "cb_unknown_action"
	MsgCbFailed        = "cb_failed"
	MsgCbListFailed    = "cb_list_failed"

	MsgAnalyzeWait       = "analyze_wait"
	MsgAnalyzeWaitUser   = "analyze_wait_user"
	MsgAnalyzeGroupsOnly = "analyze_groups_only"
	MsgAnalyzeNoTarget   = "analyze_no_target"
	MsgAnalyzeFailed     = "analyze_failed"
)
