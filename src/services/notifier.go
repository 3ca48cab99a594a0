package services

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"claude-monitor/src/lib"
	"claude-monitor/src/models"
)

// Notifier delivers operator alerts.
type Notifier interface {
	Send(ctx context.Context, alert models.Alert) error
}

// TelegramNotifier sends alerts to a single Telegram chat using HTML parse
// mode. The chat is a numeric id or an @channel username. The bot is created
// on first use so a daemon without Telegram credentials never touches the
// network.
type TelegramNotifier struct {
	bot      *tgbotapi.BotAPI
	client   *http.Client
	logger   *lib.Logger
	token    string
	endpoint string
	chatID   string
	mu       sync.Mutex
}

// NewTelegramNotifier creates a TelegramNotifier from config.
func NewTelegramNotifier(config *models.Config) *TelegramNotifier {
	return &TelegramNotifier{
		client:   &http.Client{Timeout: config.NotifyTimeoutDuration()},
		logger:   lib.NewLogger("telegram"),
		token:    config.TelegramBotToken,
		endpoint: tgbotapi.APIEndpoint,
		chatID:   strings.TrimSpace(config.TelegramChatID),
	}
}

// Enabled reports whether both bot token and chat id are configured.
func (tn *TelegramNotifier) Enabled() bool {
	return tn.token != "" && tn.chatID != ""
}

// SetEndpoint overrides the Bot API endpoint format, for tests.
func (tn *TelegramNotifier) SetEndpoint(endpoint string) {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	tn.endpoint = endpoint
	tn.bot = nil
}

// Send delivers alert. A missing token or chat id is not an error: the
// alert is logged and dropped.
func (tn *TelegramNotifier) Send(ctx context.Context, alert models.Alert) error {
	if !tn.Enabled() {
		tn.logger.Info("tg skip", map[string]interface{}{
			"kind": string(alert.Kind),
			"text": alert.Text,
		})
		return nil
	}
	if err := ctx.Err(); err != nil {
		return lib.WrapError(err, lib.ErrCodeNotify, "send cancelled")
	}

	msg, err := tn.newMessage(alert.Text)
	if err != nil {
		tn.logger.Error("tg bad chat id", lib.ErrorFields(err))
		return err
	}

	bot, err := tn.getBot()
	if err != nil {
		return err
	}

	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	start := time.Now()
	if _, err := bot.Send(msg); err != nil {
		tn.logger.Error("tg send error", map[string]interface{}{
			"kind":  string(alert.Kind),
			"error": err.Error(),
		})
		return lib.WrapError(err, lib.ErrCodeNotify, "telegram send failed")
	}

	tn.logger.Info("tg sent", map[string]interface{}{
		"kind":        string(alert.Kind),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (tn *TelegramNotifier) newMessage(text string) (tgbotapi.MessageConfig, error) {
	if strings.HasPrefix(tn.chatID, "@") {
		return tgbotapi.NewMessageToChannel(tn.chatID, text), nil
	}
	id, err := strconv.ParseInt(tn.chatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, lib.NotifyError("telegram chat id must be numeric or an @channel username").
			WithContext("chat_id", tn.chatID)
	}
	return tgbotapi.NewMessage(id, text), nil
}

func (tn *TelegramNotifier) getBot() (*tgbotapi.BotAPI, error) {
	tn.mu.Lock()
	defer tn.mu.Unlock()

	if tn.bot != nil {
		return tn.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(tn.token, tn.endpoint, tn.client)
	if err != nil {
		tn.logger.Error("tg bot init failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, lib.WrapError(err, lib.ErrCodeNotify, "telegram bot init failed")
	}
	tn.logger.Debug("tg bot ready", map[string]interface{}{
		"username": bot.Self.UserName,
	})
	tn.bot = bot
	return bot, nil
}

// LogNotifier only logs alerts. Used for dry runs.
type LogNotifier struct {
	logger *lib.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: lib.NewLogger("notify")}
}

// Send logs alert at a level matching its severity.
func (ln *LogNotifier) Send(_ context.Context, alert models.Alert) error {
	ctx := map[string]interface{}{
		"kind":     string(alert.Kind),
		"severity": alert.Level.String(),
		"text":     alert.Text,
	}
	switch alert.Level {
	case models.Critical:
		ln.logger.Error("Alert", ctx)
	case models.Warning:
		ln.logger.Warn("Alert", ctx)
	default:
		ln.logger.Info("Alert", ctx)
	}
	return nil
}
