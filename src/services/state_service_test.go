package services

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claude-monitor/src/lib"
	"claude-monitor/src/models"
)

func TestStateService_LoadMissingReturnsDefault(t *testing.T) {
	svc := NewStateService(filepath.Join(t.TempDir(), "state.json"))

	state := svc.Load()

	assert.Equal(t, models.NewDaemonState(), state)
	assert.NotNil(t, state.Errors)
}

func TestStateService_LoadCorruptReturnsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{\"refresh_count\": \"many\""), 0o600))

	assert.Equal(t, models.NewDaemonState(), NewStateService(path).Load())

	svc := NewStateService(path)
	svc.SetReadFile(func(string) ([]byte, error) { return nil, errors.New("permission denied") })
	assert.Equal(t, models.NewDaemonState(), svc.Load())
}

func TestStateService_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "claude-monitor", "state.json")
	svc := NewStateService(path)
	now := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)

	state := models.NewDaemonState()
	state.RecordRefresh(now)
	state.RollOver("2026-10-15")
	state.Latch(now.Add(time.Hour))
	state.RecordError("Claude token refresh FAILED at 2026-10-15T08:00:00Z")

	require.NoError(t, svc.Save(state))

	loaded := svc.Load()
	assert.Equal(t, state, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStateService_FileShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state := models.NewDaemonState()
	require.NoError(t, NewStateService(path).Save(state))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "last_refresh_utc")
	assert.Contains(t, raw, "refresh_count")
	assert.Contains(t, raw, "total_refreshes")
	assert.Contains(t, raw, "daily_tokens_warned")
	assert.Equal(t, []interface{}{}, raw["errors"])
	assert.Contains(t, string(data), "\n  \"", "state is written indented")
}

func TestStateService_LoadTrimsLongErrorLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	errs := make([]string, 14)
	for i := range errs {
		errs[i] = string(rune('a' + i))
	}
	data, err := json.Marshal(map[string]interface{}{"errors": errs})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	state := NewStateService(path).Load()

	assert.Len(t, state.Errors, models.MaxErrorHistory)
	assert.Equal(t, "e", state.Errors[0])
}

func TestStateService_LoadNullErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"errors": null, "total_refreshes": 7}`), 0o600))

	state := NewStateService(path).Load()

	assert.Equal(t, 7, state.TotalRefreshes)
	assert.NotNil(t, state.Errors)
}

func TestStateService_SaveFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := NewStateService(filepath.Join(blocker, "state.json")).Save(models.NewDaemonState())

	require.Error(t, err)
	assert.True(t, lib.IsErrorCode(err, lib.ErrCodeState))
}
