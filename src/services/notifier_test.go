package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claude-monitor/src/lib"
	"claude-monitor/src/models"
)

type fakeTelegram struct {
	mu       sync.Mutex
	getMe    int
	messages []map[string]string
	failSend bool
}

func (f *fakeTelegram) handler(t *testing.T, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if !strings.HasPrefix(r.URL.Path, "/bot"+token+"/") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
			return
		}
		require.NoError(t, r.ParseForm())

		switch strings.TrimPrefix(r.URL.Path, "/bot"+token+"/") {
		case "getMe":
			f.getMe++
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Monitor","username":"claude_monitor_bot"}}`))
		case "sendMessage":
			if f.failSend {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
				return
			}
			f.messages = append(f.messages, map[string]string{
				"chat_id":    r.PostForm.Get("chat_id"),
				"text":       r.PostForm.Get("text"),
				"parse_mode": r.PostForm.Get("parse_mode"),
			})
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":1760529600,"chat":{"id":12345,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}
}

func newTestTelegram(t *testing.T, fake *fakeTelegram) *TelegramNotifier {
	t.Helper()
	return newTestTelegramChat(t, fake, "12345")
}

func newTestTelegramChat(t *testing.T, fake *fakeTelegram, chat string) *TelegramNotifier {
	t.Helper()
	server := httptest.NewServer(fake.handler(t, "123:abc"))
	t.Cleanup(server.Close)

	cfg := models.ConfigDefaults()
	cfg.TelegramBotToken = "123:abc"
	cfg.TelegramChatID = chat

	tn := NewTelegramNotifier(cfg)
	tn.SetEndpoint(server.URL + "/bot%s/%s")
	return tn
}

func TestTelegramNotifier_Send(t *testing.T) {
	fake := &fakeTelegram{}
	tn := newTestTelegram(t, fake)

	alert := models.Alert{Kind: models.KindRefreshFailed, Level: models.Critical, Text: RefreshFailedText}
	require.NoError(t, tn.Send(context.Background(), alert))
	require.NoError(t, tn.Send(context.Background(), alert))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.getMe, "bot is constructed once")
	require.Len(t, fake.messages, 2)
	assert.Equal(t, "12345", fake.messages[0]["chat_id"])
	assert.Equal(t, RefreshFailedText, fake.messages[0]["text"])
	assert.Equal(t, "HTML", fake.messages[0]["parse_mode"])
}

func TestTelegramNotifier_SendToChannelUsername(t *testing.T) {
	fake := &fakeTelegram{}
	tn := newTestTelegramChat(t, fake, "@opsalerts")

	require.True(t, tn.Enabled())
	require.NoError(t, tn.Send(context.Background(), models.Alert{Kind: models.KindUsageThreshold, Text: "hi"}))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "@opsalerts", fake.messages[0]["chat_id"])
	assert.Equal(t, "HTML", fake.messages[0]["parse_mode"])
}

func TestTelegramNotifier_InvalidChatID(t *testing.T) {
	fake := &fakeTelegram{}
	tn := newTestTelegramChat(t, fake, "ops-alerts")

	err := tn.Send(context.Background(), models.Alert{Text: "hi"})

	require.Error(t, err)
	assert.True(t, lib.IsErrorCode(err, lib.ErrCodeNotify))
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Zero(t, fake.getMe, "no network call for an unusable chat id")
	assert.Empty(t, fake.messages)
}

func TestTelegramNotifier_SendFailure(t *testing.T) {
	fake := &fakeTelegram{failSend: true}
	tn := newTestTelegram(t, fake)

	err := tn.Send(context.Background(), models.Alert{Kind: models.KindUsageThreshold, Text: "hi"})

	require.Error(t, err)
	assert.True(t, lib.IsErrorCode(err, lib.ErrCodeNotify))
}

func TestTelegramNotifier_BadTokenFailsInit(t *testing.T) {
	fake := &fakeTelegram{}
	server := httptest.NewServer(fake.handler(t, "other-token"))
	defer server.Close()

	cfg := models.ConfigDefaults()
	cfg.TelegramBotToken = "123:abc"
	cfg.TelegramChatID = "12345"
	tn := NewTelegramNotifier(cfg)
	tn.SetEndpoint(server.URL + "/bot%s/%s")

	err := tn.Send(context.Background(), models.Alert{Text: "hi"})
	require.Error(t, err)
	assert.True(t, lib.IsErrorCode(err, lib.ErrCodeNotify))
}

func TestTelegramNotifier_SkipsWhenUnconfigured(t *testing.T) {
	tests := []struct {
		name  string
		token string
		chat  string
	}{
		{"no token", "", "12345"},
		{"no chat", "123:abc", ""},
		{"neither", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.ConfigDefaults()
			cfg.TelegramBotToken = tt.token
			cfg.TelegramChatID = tt.chat
			tn := NewTelegramNotifier(cfg)
			tn.SetEndpoint("http://127.0.0.1:1/bot%s/%s")

			assert.False(t, tn.Enabled())
			assert.NoError(t, tn.Send(context.Background(), models.Alert{Text: "dropped"}))
		})
	}
}

func TestTelegramNotifier_CancelledContext(t *testing.T) {
	fake := &fakeTelegram{}
	tn := newTestTelegram(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tn.Send(ctx, models.Alert{Text: "late"})

	assert.Error(t, err)
	assert.Empty(t, fake.messages)
}

func TestLogNotifier(t *testing.T) {
	ln := NewLogNotifier()
	for _, level := range []models.AlertLevel{models.Info, models.Warning, models.Critical} {
		assert.NoError(t, ln.Send(context.Background(), models.Alert{Level: level, Text: "x"}))
	}
}
