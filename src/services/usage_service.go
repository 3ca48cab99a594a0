package services

import (
	"os"
	"sync"
	"time"

	"claude-monitor/src/lib"
	"claude-monitor/src/models"
)

// UsageService derives usage snapshots from the Claude Code stats cache.
// The cache path is re-resolved on every read since the file may only
// appear after the first session of a fresh install.
type UsageService struct {
	locator     Locator
	readFile    lib.ReadFileFunc
	logger      *lib.Logger
	lastCorrupt string
	mutex       sync.Mutex
}

// NewUsageService creates a UsageService over the located stats cache.
func NewUsageService(locator Locator) *UsageService {
	return &UsageService{
		locator:  locator,
		readFile: os.ReadFile,
		logger:   lib.NewLogger("usage"),
	}
}

// Path returns the currently resolved stats cache path.
func (us *UsageService) Path() (string, bool) {
	return us.locator.Locate()
}

// Load reads the stats cache.
func (us *UsageService) Load() lib.FileResult[models.UsageCache] {
	path, ok := us.locator.Locate()
	if !ok {
		return lib.Absent[models.UsageCache]()
	}

	res := lib.ReadJSONFile[models.UsageCache](us.readFile, path)
	if res.Status == lib.FileCorrupt {
		res.Err = lib.WrapError(res.Err, lib.ErrCodeUsage, "read usage cache").WithContext("path", path)
	}
	return res
}

// Snapshots returns the daily and weekly views for now. An absent or
// corrupt cache yields zero snapshots. Corruption is logged once per
// distinct error; absence is never logged.
func (us *UsageService) Snapshots(now time.Time) (daily, weekly models.UsageSnapshot) {
	res := us.Load()

	us.mutex.Lock()
	defer us.mutex.Unlock()

	switch res.Status {
	case lib.FileFound:
		us.lastCorrupt = ""
		return DailySnapshot(res.Value, now), WeeklySnapshot(res.Value, now)
	case lib.FileCorrupt:
		if msg := res.Err.Error(); msg != us.lastCorrupt {
			us.lastCorrupt = msg
			us.logger.Warn("Usage cache unreadable, reporting zero usage", map[string]interface{}{
				"error": msg,
			})
		}
	}
	return models.UsageSnapshot{}, models.UsageSnapshot{}
}

// SetReadFile replaces the file reader, for tests.
func (us *UsageService) SetReadFile(reader lib.ReadFileFunc) {
	us.readFile = reader
}

// DailySnapshot computes today's usage (UTC). Messages and sessions come
// from the first activity row dated today, output tokens from the first
// token row dated today summed across models. CostUSD is cumulative across
// all recorded models, not day-scoped.
func DailySnapshot(cache models.UsageCache, now time.Time) models.UsageSnapshot {
	today := now.UTC().Format(models.DateLayout)
	var snap models.UsageSnapshot

	for _, day := range cache.DailyActivity {
		if day.Date == today {
			snap.MessageCount = day.MessageCount
			snap.SessionCount = day.SessionCount
			break
		}
	}

	for _, day := range cache.DailyModelTokens {
		if day.Date == today {
			snap.OutputTokens = day.Total()
			break
		}
	}

	for _, usage := range cache.ModelUsage {
		snap.CostUSD += usage.CostUSD
	}

	return snap
}

// WeeklySnapshot sums every row dated on or after this week's Monday (UTC).
// Cost is not tracked weekly.
func WeeklySnapshot(cache models.UsageCache, now time.Time) models.UsageSnapshot {
	monday := WeekStart(now)
	var snap models.UsageSnapshot

	for _, day := range cache.DailyActivity {
		if day.Date >= monday {
			snap.MessageCount += day.MessageCount
			snap.SessionCount += day.SessionCount
		}
	}

	for _, day := range cache.DailyModelTokens {
		if day.Date >= monday {
			snap.OutputTokens += day.Total()
		}
	}

	return snap
}

// WeekStart returns the most recent Monday at or before now, UTC, as a
// YYYY-MM-DD string.
func WeekStart(now time.Time) string {
	utc := now.UTC()
	offset := (int(utc.Weekday()) + 6) % 7
	return utc.AddDate(0, 0, -offset).Format(models.DateLayout)
}
