package services

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"claude-monitor/src/models"
)

const (
	credentialsFileName = ".credentials.json"
	usageCacheFileName  = "stats-cache.json"
)

// Locator resolves the path of a file the daemon reads. ok is false when
// no candidate exists.
type Locator interface {
	Locate() (path string, ok bool)
}

// PathLocator returns the first existing candidate path.
type PathLocator struct {
	stat       func(string) (os.FileInfo, error)
	Candidates []string
}

// NewPathLocator creates a locator over candidates, in priority order.
// Empty candidates are skipped.
func NewPathLocator(candidates ...string) *PathLocator {
	filtered := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c != "" {
			filtered = append(filtered, c)
		}
	}
	return &PathLocator{Candidates: filtered, stat: os.Stat}
}

// Locate implements Locator.
func (l *PathLocator) Locate() (string, bool) {
	for _, c := range l.Candidates {
		if info, err := l.stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}

// claudeDirs lists the directories where Claude Code keeps its files,
// most specific first.
func claudeDirs(configDir string) []string {
	dirs := []string{}
	if configDir != "" {
		dirs = append(dirs, configDir)
	}
	return append(dirs,
		filepath.Join(xdg.Home, ".claude"),
		"/claude-config",
		"/data/safe-agent/.claude",
		"/home/safeagent/.claude",
		"/home/agent/.claude",
	)
}

// NewCredentialLocator probes the explicit credentials path, then the
// Claude config directories.
func NewCredentialLocator(config *models.Config) *PathLocator {
	candidates := []string{config.CredentialsPath}
	for _, dir := range claudeDirs(config.ClaudeConfigDir) {
		candidates = append(candidates, filepath.Join(dir, credentialsFileName))
	}
	return NewPathLocator(candidates...)
}

// NewUsageLocator probes the Claude config directories for the stats cache.
func NewUsageLocator(config *models.Config) *PathLocator {
	candidates := []string{}
	for _, dir := range claudeDirs(config.ClaudeConfigDir) {
		candidates = append(candidates, filepath.Join(dir, usageCacheFileName))
	}
	return NewPathLocator(candidates...)
}

// StaticLocator always resolves to Path when it is non-empty. Used when the
// path is fixed, e.g. in tests or after startup discovery.
type StaticLocator struct {
	Path string
}

// Locate implements Locator.
func (s StaticLocator) Locate() (string, bool) {
	return s.Path, s.Path != ""
}
