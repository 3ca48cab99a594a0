package services

import (
	"os"

	"claude-monitor/src/lib"
	"claude-monitor/src/models"
)

// StateService loads and saves the persisted DaemonState.
type StateService struct {
	logger   *lib.Logger
	readFile lib.ReadFileFunc
	path     string
}

// NewStateService creates a StateService for the file at path.
func NewStateService(path string) *StateService {
	return &StateService{
		logger:   lib.NewLogger("state"),
		readFile: os.ReadFile,
		path:     path,
	}
}

// Path returns the state file location.
func (ss *StateService) Path() string {
	return ss.path
}

// Load returns the persisted state. A missing or unreadable file yields
// models.NewDaemonState(); corruption is never fatal.
func (ss *StateService) Load() models.DaemonState {
	res := lib.ReadJSONFile[models.DaemonState](ss.readFile, ss.path)
	switch res.Status {
	case lib.FileFound:
		state := res.Value
		if state.Errors == nil {
			state.Errors = []string{}
		}
		if over := len(state.Errors) - models.MaxErrorHistory; over > 0 {
			state.Errors = state.Errors[over:]
		}
		ss.logger.Debug("State loaded", map[string]interface{}{
			"path":            ss.path,
			"total_refreshes": state.TotalRefreshes,
		})
		return state
	case lib.FileCorrupt:
		ss.logger.Warn("State file unreadable, starting fresh", map[string]interface{}{
			"path":  ss.path,
			"error": res.Err.Error(),
		})
	}
	return models.NewDaemonState()
}

// Save writes the whole state record, creating the directory if needed.
func (ss *StateService) Save(state models.DaemonState) error {
	if state.Errors == nil {
		state.Errors = []string{}
	}
	if err := lib.WriteJSONFileAtomic(ss.path, state, 0o600); err != nil {
		return lib.WrapError(err, lib.ErrCodeState, "save state").WithContext("path", ss.path)
	}
	return nil
}

// SetReadFile replaces the file reader, for tests.
func (ss *StateService) SetReadFile(reader lib.ReadFileFunc) {
	ss.readFile = reader
}
