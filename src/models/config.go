// Package models contains domain models and configuration types.
package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"claude-monitor/src/lib"
)

const (
	defaultWarnPercent          = 85
	defaultRefreshBufferSeconds = 3600
	defaultCheckIntervalSeconds = 120
	defaultDailyOutputBudget    = 45000
	defaultRefreshTimeout       = 30
	defaultNotifyTimeout        = 10

	// DefaultOAuthClientID is the public client id of the Claude Code CLI.
	DefaultOAuthClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	// DefaultTokenURL is the OAuth token endpoint used for refresh exchanges.
	DefaultTokenURL = "https://console.anthropic.com/v1/oauth/token"
	// DefaultSkillName names the daemon's data directory.
	DefaultSkillName = "claude-monitor"

	// DefaultUsageAlertTemplate renders the daily budget warning. It uses
	// Telegram HTML markup.
	DefaultUsageAlertTemplate = "⚠️ <b>Claude usage at {{pct .Percent}}%</b>\n" +
		"<code>{{comma .OutputTokens}} / {{comma .DailyBudget}}</code> output tokens today\n" +
		"Messages: {{.Messages}} | Sessions: {{.Sessions}}\n" +
		"Weekly total: {{comma .WeeklyTokens}} tokens, {{.WeeklyMessages}} msgs"
)

// Config represents the daemon configuration. Values come from defaults,
// then the optional YAML file, then environment variables.
type Config struct {
	WarnPercent        int    `yaml:"warn_percent"`
	RefreshBufferSecs  int    `yaml:"refresh_buffer_secs"`
	CheckIntervalSecs  int    `yaml:"check_interval_secs"`
	DailyOutputBudget  int    `yaml:"daily_output_token_budget"`
	CredentialsPath    string `yaml:"credentials_path"`
	ClaudeConfigDir    string `yaml:"claude_config_dir"`
	TelegramBotToken   string `yaml:"telegram_bot_token"`
	TelegramChatID     string `yaml:"telegram_chat_id"`
	OAuthClientID      string `yaml:"oauth_client_id"`
	TokenURL           string `yaml:"token_url"`
	SkillName          string `yaml:"skill_name"`
	DataDir            string `yaml:"data_dir"`
	StatusAddr         string `yaml:"status_addr"`
	DebugLevel         string `yaml:"debug_level"`
	RefreshTimeout     int    `yaml:"refresh_timeout"` // seconds
	NotifyTimeout      int    `yaml:"notify_timeout"`  // seconds
	UsageAlertTemplate string `yaml:"usage_alert_template"`
}

// ConfigDefaults returns a Config struct with default values.
func ConfigDefaults() *Config {
	return &Config{
		WarnPercent:        defaultWarnPercent,
		RefreshBufferSecs:  defaultRefreshBufferSeconds,
		CheckIntervalSecs:  defaultCheckIntervalSeconds,
		DailyOutputBudget:  defaultDailyOutputBudget,
		OAuthClientID:      DefaultOAuthClientID,
		TokenURL:           DefaultTokenURL,
		SkillName:          DefaultSkillName,
		DebugLevel:         "INFO",
		RefreshTimeout:     defaultRefreshTimeout,
		NotifyTimeout:      defaultNotifyTimeout,
		UsageAlertTemplate: DefaultUsageAlertTemplate,
	}
}

// Validate checks configuration values for correctness
// Returns error describing first validation failure found.
func (c *Config) Validate() error {
	// Above 100 warns only once the budget is overrun.
	if c.WarnPercent < 1 {
		return lib.ValidationError("warn_percent must be at least 1")
	}
	if c.RefreshBufferSecs < 0 {
		return lib.ValidationError("refresh_buffer_secs cannot be negative")
	}
	if c.CheckIntervalSecs < 1 || c.CheckIntervalSecs > 86400 {
		return lib.ValidationError("check_interval_secs must be between 1 and 86400 seconds")
	}
	// A zero budget is allowed and disables usage alerts.
	if c.DailyOutputBudget < 0 {
		return lib.ValidationError("daily_output_token_budget cannot be negative")
	}
	if c.OAuthClientID == "" {
		return lib.ValidationError("oauth_client_id cannot be empty")
	}
	if !strings.HasPrefix(c.TokenURL, "http://") && !strings.HasPrefix(c.TokenURL, "https://") {
		return lib.ValidationError("token_url must be an http(s) URL")
	}
	if c.SkillName == "" && c.DataDir == "" {
		return lib.ValidationError("skill_name or data_dir must be set")
	}
	if _, ok := lib.ParseLogLevel(c.DebugLevel); !ok {
		return lib.ValidationError("debug_level must be one of: DEBUG, INFO, WARN, ERROR, FATAL")
	}
	if c.RefreshTimeout < 1 || c.RefreshTimeout > 120 {
		return lib.ValidationError("refresh_timeout must be between 1 and 120 seconds")
	}
	if c.NotifyTimeout < 1 || c.NotifyTimeout > 120 {
		return lib.ValidationError("notify_timeout must be between 1 and 120 seconds")
	}
	if err := lib.NewTemplateEngine().Validate(c.UsageAlertTemplate); err != nil {
		return lib.WrapError(err, lib.ErrCodeValidation, "usage_alert_template is invalid")
	}
	return nil
}

// GetLogLevel converts the debug level string to a LogLevel.
// Returns INFO if the string is invalid.
func (c *Config) GetLogLevel() lib.LogLevel {
	level, _ := lib.ParseLogLevel(c.DebugLevel)
	return level
}

// RefreshBuffer is the lead time before expiry at which a refresh is attempted.
func (c *Config) RefreshBuffer() time.Duration {
	return time.Duration(c.RefreshBufferSecs) * time.Second
}

// CheckInterval is the delay between ticks.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSecs) * time.Second
}

// RefreshTimeoutDuration bounds a single token exchange.
func (c *Config) RefreshTimeoutDuration() time.Duration {
	return time.Duration(c.RefreshTimeout) * time.Second
}

// NotifyTimeoutDuration bounds a single alert delivery.
func (c *Config) NotifyTimeoutDuration() time.Duration {
	return time.Duration(c.NotifyTimeout) * time.Second
}

// StateDir is where the daemon keeps its state file.
func (c *Config) StateDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return filepath.Join(xdg.DataHome, c.SkillName)
}

// StatePath is the full path of the persisted daemon state.
func (c *Config) StatePath() string {
	return filepath.Join(c.StateDir(), "state.json")
}
