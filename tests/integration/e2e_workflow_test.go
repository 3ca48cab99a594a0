package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claude-monitor/internal/testhelpers"
	"claude-monitor/src/models"
	"claude-monitor/src/services"
)

func TestMain(m *testing.M) {
	os.Exit(testhelpers.RunSilenced(m))
}

type telegramLog struct {
	mu    sync.Mutex
	texts []string
}

func (l *telegramLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.texts...)
}

func fakeTelegram(t *testing.T, log *telegramLog) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"m","username":"m_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			log.mu.Lock()
			log.texts = append(log.texts, r.PostForm.Get("text"))
			log.mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":99,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func fakeTokenEndpoint(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "refresh_token", req["grant_type"])
		assert.Equal(t, "rt-original", req["refresh_token"])
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

type env struct {
	dir       string
	credPath  string
	statePath string
	config    *models.Config
}

func setupEnv(t *testing.T, tokenURL string, now time.Time, expiresIn time.Duration, outputTokens int) *env {
	t.Helper()
	dir := t.TempDir()
	claudeDir := filepath.Join(dir, "claude")
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(claudeDir, 0o755))

	e := &env{
		dir:       dir,
		credPath:  filepath.Join(claudeDir, ".credentials.json"),
		statePath: filepath.Join(dataDir, "state.json"),
	}

	creds := models.CredentialsFile{ClaudeAiOauth: &models.Credentials{
		AccessToken:      "at-original",
		RefreshToken:     "rt-original",
		ExpiresAt:        now.Add(expiresIn).UnixMilli(),
		Scopes:           []string{"user:inference"},
		SubscriptionType: "max",
		RateLimitTier:    "default_claude_max_5x",
	}}
	writeJSON(t, e.credPath, creds)

	today := now.UTC().Format(models.DateLayout)
	writeJSON(t, filepath.Join(claudeDir, "stats-cache.json"), models.UsageCache{
		DailyActivity: []models.DailyActivity{{Date: today, MessageCount: 120, SessionCount: 4}},
		DailyModelTokens: []models.DailyModelTokens{
			{Date: today, TokensByModel: map[string]int{"claude-opus-4": outputTokens}},
		},
		ModelUsage: map[string]models.ModelUsage{"claude-opus-4": {CostUSD: 42}},
	})

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf("token_url: %s\ncheck_interval_secs: 1\n", tokenURL)), 0o600))

	environ := map[string]string{
		services.EnvCredentialsPath: e.credPath,
		services.EnvClaudeConfigDir: claudeDir,
		services.EnvSkillDataDir:    dataDir,
		services.EnvTelegramToken:   "1:token",
		services.EnvTelegramChatID:  "99",
	}
	cs := services.NewConfigService()
	cs.SetConfigPath(configPath)
	cs.SetLookupEnv(func(k string) (string, bool) {
		v, ok := environ[k]
		return v, ok
	})

	cfg, err := cs.Load()
	require.NoError(t, err)
	require.Equal(t, 85, cfg.WarnPercent)
	require.Equal(t, 45000, cfg.DailyOutputBudget)
	require.Equal(t, e.statePath, cfg.StatePath())
	e.config = cfg
	return e
}

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func newScheduler(e *env, telegramURL string) *services.Scheduler {
	notifier := services.NewTelegramNotifier(e.config)
	notifier.SetEndpoint(telegramURL + "/bot%s/%s")
	return services.NewScheduler(e.config, services.SchedulerDeps{Notifier: notifier})
}

func TestEndToEnd_RefreshAndUsageAlert(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E workflow test in short mode")
	}

	now := time.Now().UTC()
	tg := &telegramLog{}
	tgServer := fakeTelegram(t, tg)
	tokenServer, calls := fakeTokenEndpoint(t, http.StatusOK,
		`{"access_token":"at-new","refresh_token":"rt-new","expires_in":28800}`)

	e := setupEnv(t, tokenServer.URL, now, 10*time.Minute, 38250)
	sched := newScheduler(e, tgServer.URL)
	sched.Startup(context.Background())

	t.Run("FirstTickRefreshesAndWarns", func(t *testing.T) {
		outcome := sched.Tick(context.Background(), now)

		require.True(t, outcome.OK(), outcome.Reason())
		assert.Equal(t, models.RefreshSucceeded, outcome.Refresh)
		assert.Equal(t, 1, *calls)

		var file models.CredentialsFile
		data, err := os.ReadFile(e.credPath)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &file))
		require.NotNil(t, file.ClaudeAiOauth)
		assert.Equal(t, "at-new", file.ClaudeAiOauth.AccessToken)
		assert.Equal(t, "rt-new", file.ClaudeAiOauth.RefreshToken)
		assert.Equal(t, "max", file.ClaudeAiOauth.SubscriptionType)
		assert.InDelta(t, now.Add(8*time.Hour).UnixMilli(), file.ClaudeAiOauth.ExpiresAt, float64(time.Minute.Milliseconds()))

		texts := tg.all()
		require.Len(t, texts, 1)
		assert.Equal(t, "⚠️ <b>Claude usage at 85%</b>\n"+
			"<code>38,250 / 45,000</code> output tokens today\n"+
			"Messages: 120 | Sessions: 4\n"+
			"Weekly total: 38,250 tokens, 120 msgs", texts[0])
	})

	t.Run("SecondTickIsQuiet", func(t *testing.T) {
		outcome := sched.Tick(context.Background(), now.Add(2*time.Minute))

		require.True(t, outcome.OK())
		assert.Equal(t, models.RefreshSkipped, outcome.Refresh, "fresh token is not refreshed again")
		assert.Equal(t, 1, *calls)
		assert.Len(t, tg.all(), 1)
	})

	t.Run("StatePersisted", func(t *testing.T) {
		state := services.NewStateService(e.statePath).Load()
		assert.Equal(t, 1, state.RefreshCount)
		assert.Equal(t, 1, state.TotalRefreshes)
		assert.True(t, state.DailyTokensWarned)
		assert.Equal(t, now.Format(models.DateLayout), state.DailyTokensWarnedDate)
		assert.NotNil(t, state.LastWarnUTC)
		assert.Empty(t, state.Errors)
	})
}

func TestEndToEnd_RefreshRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E workflow test in short mode")
	}

	now := time.Now().UTC()
	tg := &telegramLog{}
	tgServer := fakeTelegram(t, tg)
	tokenServer, _ := fakeTokenEndpoint(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)

	e := setupEnv(t, tokenServer.URL, now, -time.Minute, 100)
	before, err := os.ReadFile(e.credPath)
	require.NoError(t, err)

	sched := newScheduler(e, tgServer.URL)
	sched.Startup(context.Background())
	outcome := sched.Tick(context.Background(), now)

	assert.True(t, outcome.OK(), "a rejected refresh does not fail the tick")
	assert.Equal(t, models.RefreshFailed, outcome.Refresh)

	after, err := os.ReadFile(e.credPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "credentials untouched on failure")

	texts := tg.all()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Claude token refresh FAILED!")

	state := services.NewStateService(e.statePath).Load()
	require.Len(t, state.Errors, 1)
	assert.True(t, strings.HasPrefix(state.Errors[0], "Claude token refresh FAILED at "))
}

func TestEndToEnd_RefreshFailureAndUsageWarningSameTick(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E workflow test in short mode")
	}

	now := time.Now().UTC()
	tg := &telegramLog{}
	tgServer := fakeTelegram(t, tg)
	tokenServer, calls := fakeTokenEndpoint(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)

	e := setupEnv(t, tokenServer.URL, now, -time.Minute, 38250)
	sched := newScheduler(e, tgServer.URL)
	sched.Startup(context.Background())

	outcome := sched.Tick(context.Background(), now)

	require.True(t, outcome.OK(), outcome.Reason())
	assert.Equal(t, models.RefreshFailed, outcome.Refresh)
	assert.Equal(t, 1, *calls)
	require.Len(t, outcome.Alerts, 2)
	assert.Equal(t, models.KindRefreshFailed, outcome.Alerts[0].Kind)
	assert.Equal(t, models.KindUsageThreshold, outcome.Alerts[1].Kind)

	texts := tg.all()
	require.Len(t, texts, 2)
	assert.Equal(t, services.RefreshFailedText, texts[0])
	assert.True(t, strings.HasPrefix(texts[1], "⚠️ <b>Claude usage at 85%</b>\n<code>38,250 / 45,000</code>"), texts[1])

	state := services.NewStateService(e.statePath).Load()
	require.Len(t, state.Errors, 1)
	assert.True(t, state.DailyTokensWarned)
	assert.Equal(t, now.Format(models.DateLayout), state.DailyTokensWarnedDate)
}

func TestEndToEnd_RunUntilCancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E workflow test in short mode")
	}

	now := time.Now().UTC()
	tg := &telegramLog{}
	tgServer := fakeTelegram(t, tg)
	tokenServer, _ := fakeTokenEndpoint(t, http.StatusOK, `{"access_token":"at-new"}`)

	e := setupEnv(t, tokenServer.URL, now, 24*time.Hour, 0)
	sched := newScheduler(e, tgServer.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	require.NoError(t, sched.Run(ctx))

	st := sched.Status()
	assert.GreaterOrEqual(t, st.Ticks, 2, "ticks immediately and then on the interval")
	assert.Empty(t, tg.all())
	_, err := os.Stat(e.statePath)
	assert.NoError(t, err)
}
