package services

import (
	"time"

	"claude-monitor/src/models"
)

// Report is a read-only snapshot of everything the daemon looks at. It
// never refreshes, alerts or writes.
type Report struct {
	GeneratedAt        time.Time            `json:"generated_at"`
	TokenExpiresAt     *time.Time           `json:"token_expires_at,omitempty"`
	CredentialsPath    string               `json:"credentials_path,omitempty"`
	CredentialsStatus  string               `json:"credentials_status"`
	UsagePath          string               `json:"usage_path,omitempty"`
	StatePath          string               `json:"state_path"`
	State              models.DaemonState   `json:"state"`
	Daily              models.UsageSnapshot `json:"daily"`
	Weekly             models.UsageSnapshot `json:"weekly"`
	DailyPercent       float64              `json:"daily_percent"`
	TokenRemainingSecs int64                `json:"token_remaining_secs,omitempty"`
	RefreshDue         bool                 `json:"refresh_due"`
}

// BuildReport gathers a Report at now.
func BuildReport(config *models.Config, creds CredentialSource, usage UsageSource, store StateStore, now time.Time) Report {
	r := Report{
		GeneratedAt:       now.UTC(),
		StatePath:         store.Path(),
		State:             store.Load(),
		CredentialsStatus: "not located",
	}

	if path, ok := creds.Path(); ok {
		r.CredentialsPath = path
		res := creds.Load()
		r.CredentialsStatus = res.Status.String()
		if res.IsFound() {
			expires := res.Value.ExpiresAtTime().UTC()
			r.TokenExpiresAt = &expires
			r.TokenRemainingSecs = int64(res.Value.Remaining(now).Seconds())
			r.RefreshDue = res.Value.ExpiresSoon(config.RefreshBuffer(), now)
		}
	}

	r.UsagePath, _ = usage.Path()
	r.Daily, r.Weekly = usage.Snapshots(now)
	r.DailyPercent = r.Daily.Percent(config.DailyOutputBudget)
	return r
}
