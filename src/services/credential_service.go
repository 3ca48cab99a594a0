package services

import (
	"os"
	"time"

	"claude-monitor/src/lib"
	"claude-monitor/src/models"
)

// CredentialService reads and replaces the OAuth credential record.
// It never caches the record: another process may rewrite the file at any
// time, so every Load goes back to storage.
type CredentialService struct {
	locator  Locator
	readFile lib.ReadFileFunc
	logger   *lib.Logger
}

// NewCredentialService creates a CredentialService over the located file.
func NewCredentialService(locator Locator) *CredentialService {
	return &CredentialService{
		locator:  locator,
		readFile: os.ReadFile,
		logger:   lib.NewLogger("credentials"),
	}
}

// Path returns the resolved credential file path.
func (cs *CredentialService) Path() (string, bool) {
	return cs.locator.Locate()
}

// Load reads the current credential record.
// Returns Absent when no file can be located, Corrupt when the file cannot
// be decoded or carries no claudeAiOauth object.
func (cs *CredentialService) Load() lib.FileResult[models.Credentials] {
	path, ok := cs.locator.Locate()
	if !ok {
		return lib.Absent[models.Credentials]()
	}

	res := lib.ReadJSONFile[models.CredentialsFile](cs.readFile, path)
	switch res.Status {
	case lib.FileFound:
		if res.Value.ClaudeAiOauth == nil {
			return lib.Corrupt[models.Credentials](
				lib.CredentialsError("credentials file has no claudeAiOauth object").WithContext("path", path))
		}
		return lib.Found(*res.Value.ClaudeAiOauth)
	case lib.FileAbsent:
		return lib.Absent[models.Credentials]()
	default:
		return lib.Corrupt[models.Credentials](lib.WrapError(res.Err, lib.ErrCodeCredentials, "read credentials"))
	}
}

// Save replaces the whole credential file with creds in a single rename.
func (cs *CredentialService) Save(creds models.Credentials) error {
	path, ok := cs.locator.Locate()
	if !ok {
		return lib.CredentialsError("credentials file not found")
	}

	file := models.CredentialsFile{ClaudeAiOauth: &creds}
	if err := lib.WriteJSONFileAtomic(path, file, 0o600); err != nil {
		return lib.WrapError(err, lib.ErrCodeCredentials, "write credentials").WithContext("path", path)
	}
	return nil
}

// ExpiresSoon reports whether creds expire within buffer of now and logs
// the remaining lifetime.
func (cs *CredentialService) ExpiresSoon(creds models.Credentials, buffer time.Duration, now time.Time) bool {
	remaining := creds.Remaining(now)
	cs.logger.Info("Token lifetime checked", map[string]interface{}{
		"remaining_seconds": int64(remaining.Seconds()),
		"remaining_hours":   float64(int64(remaining.Hours()*10)) / 10,
		"buffer_seconds":    int64(buffer.Seconds()),
	})
	return creds.ExpiresSoon(buffer, now)
}

// SetReadFile replaces the file reader, for tests.
func (cs *CredentialService) SetReadFile(reader lib.ReadFileFunc) {
	cs.readFile = reader
}
