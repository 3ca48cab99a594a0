package services

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"claude-monitor/src/lib"
	"claude-monitor/src/models"
)

// Environment variables recognised by the daemon. They override the YAML file.
const (
	EnvWarnPercent     = "USAGE_WARN_PERCENT"
	EnvRefreshBuffer   = "TOKEN_REFRESH_BUFFER_SECS"
	EnvCheckInterval   = "CHECK_INTERVAL_SECS"
	EnvDailyBudget     = "DAILY_OUTPUT_TOKEN_BUDGET"
	EnvCredentialsPath = "CLAUDE_CREDENTIALS_PATH"
	EnvClaudeConfigDir = "CLAUDE_CONFIG_DIR"
	EnvTelegramToken   = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID  = "TELEGRAM_CHAT_ID"
	EnvOAuthClientID   = "CLAUDE_OAUTH_CLIENT_ID"
	EnvSkillName       = "SKILL_NAME"
	EnvSkillDataDir    = "SKILL_DATA_DIR"
	EnvStatusAddr      = "CLAUDE_MONITOR_STATUS_ADDR"
	EnvLogLevel        = "CLAUDE_MONITOR_LOG_LEVEL"
)

// ConfigService loads the daemon configuration from an optional
// XDG-located YAML file and the environment.
type ConfigService struct {
	logger     *lib.Logger
	readFile   lib.ReadFileFunc
	lookupEnv  func(string) (string, bool)
	configPath string // Override for testing and --config
}

// NewConfigService creates a new ConfigService instance
func NewConfigService() *ConfigService {
	return &ConfigService{
		logger:    lib.NewLogger("config-service"),
		readFile:  os.ReadFile,
		lookupEnv: os.LookupEnv,
	}
}

// Load builds the configuration: defaults, then the YAML file if present,
// then environment overrides. A missing file is not an error.
// Returns error for unreadable or corrupted files and invalid values.
func (cs *ConfigService) Load() (*models.Config, error) {
	config := models.ConfigDefaults()
	configPath := cs.GetConfigPath()

	data, err := cs.readFile(configPath)
	switch {
	case err == nil:
		// Unmarshal over the defaults so a partial file keeps the rest.
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
		cs.logger.Debug("No config file, using defaults", map[string]interface{}{
			"path": configPath,
		})
	default:
		return nil, err
	}

	if err := cs.ApplyEnv(config); err != nil {
		return nil, err
	}

	if err := cs.Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv overrides config fields from the environment.
func (cs *ConfigService) ApplyEnv(config *models.Config) error {
	ints := []struct {
		key    string
		target *int
	}{
		{EnvWarnPercent, &config.WarnPercent},
		{EnvRefreshBuffer, &config.RefreshBufferSecs},
		{EnvCheckInterval, &config.CheckIntervalSecs},
		{EnvDailyBudget, &config.DailyOutputBudget},
	}
	for _, item := range ints {
		raw, ok := cs.lookupEnv(item.key)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return lib.WrapError(err, lib.ErrCodeConfig, item.key+" must be an integer").
				WithContext("value", raw)
		}
		*item.target = n
	}

	strs := []struct {
		key    string
		target *string
	}{
		{EnvCredentialsPath, &config.CredentialsPath},
		{EnvClaudeConfigDir, &config.ClaudeConfigDir},
		{EnvTelegramToken, &config.TelegramBotToken},
		{EnvTelegramChatID, &config.TelegramChatID},
		{EnvOAuthClientID, &config.OAuthClientID},
		{EnvSkillName, &config.SkillName},
		{EnvSkillDataDir, &config.DataDir},
		{EnvStatusAddr, &config.StatusAddr},
		{EnvLogLevel, &config.DebugLevel},
	}
	for _, item := range strs {
		if raw, ok := cs.lookupEnv(item.key); ok && raw != "" {
			*item.target = raw
		}
	}
	return nil
}

// Save persists configuration as YAML. The bot token is written as well,
// so the file is created with user-only permissions.
func (cs *ConfigService) Save(config *models.Config) error {
	if err := cs.Validate(config); err != nil {
		return err
	}

	configPath := cs.GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0o600)
}

// Validate checks configuration values for correctness
// Returns error describing first validation failure found
func (cs *ConfigService) Validate(config *models.Config) error {
	return config.Validate()
}

// GetConfigPath returns the full path to the config file
func (cs *ConfigService) GetConfigPath() string {
	if cs.configPath != "" {
		return cs.configPath
	}
	return filepath.Join(xdg.ConfigHome, "claude-monitor", "config.yaml")
}

// SetConfigPath sets a custom config path
func (cs *ConfigService) SetConfigPath(path string) {
	cs.configPath = path
}

// SetReadFile replaces the file reader, for tests.
func (cs *ConfigService) SetReadFile(reader lib.ReadFileFunc) {
	cs.readFile = reader
}

// SetLookupEnv replaces the environment lookup, for tests.
func (cs *ConfigService) SetLookupEnv(lookup func(string) (string, bool)) {
	cs.lookupEnv = lookup
}
