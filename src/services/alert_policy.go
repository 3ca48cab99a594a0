package services

import (
	"time"

	"claude-monitor/src/lib"
	"claude-monitor/src/models"
)

const (
	// RefreshFailedText is sent on every failed refresh attempt.
	RefreshFailedText = "🚨 <b>Claude token refresh FAILED!</b>\n" +
		"Manual intervention may be needed.\n" +
		"The token will expire soon."

	// CredentialsMissingText is sent once at startup when no credential file
	// can be located.
	CredentialsMissingText = "⚠️ Claude Monitor: cannot find .credentials.json, token refresh disabled"
)

// AlertInput is everything the policy looks at for one tick.
type AlertInput struct {
	Now         time.Time
	Today       string
	Daily       models.UsageSnapshot
	Weekly      models.UsageSnapshot
	Refresh     models.RefreshOutcome
	WarnPercent int
	DailyBudget int
}

// AlertPolicy decides which alerts a tick produces and maintains the
// once-per-day usage warning latch.
type AlertPolicy struct {
	engine   *lib.TemplateEngine
	template string
	logger   *lib.Logger
}

// NewAlertPolicy creates an AlertPolicy using the configured usage template.
func NewAlertPolicy(config *models.Config) *AlertPolicy {
	tmpl := config.UsageAlertTemplate
	if tmpl == "" {
		tmpl = models.DefaultUsageAlertTemplate
	}
	return &AlertPolicy{
		engine:   lib.NewTemplateEngine(),
		template: tmpl,
		logger:   lib.NewLogger("alert-policy"),
	}
}

// Evaluate applies, in order: date rollover, refresh outcome, usage
// threshold. It returns the updated state and the alerts to send; state
// itself is not modified.
func (ap *AlertPolicy) Evaluate(in AlertInput, state models.DaemonState) (models.DaemonState, []models.Alert) {
	next := state.Clone()
	var alerts []models.Alert

	if next.RollOver(in.Today) {
		ap.logger.Debug("Daily warn latch reset", map[string]interface{}{"date": in.Today})
	}

	if in.Refresh == models.RefreshFailed {
		alerts = append(alerts, models.Alert{
			Kind:  models.KindRefreshFailed,
			Level: models.Critical,
			Text:  RefreshFailedText,
		})
	}

	pct := in.Daily.Percent(in.DailyBudget)
	if in.DailyBudget > 0 && pct >= float64(in.WarnPercent) && !next.DailyTokensWarned {
		next.Latch(in.Now)
		alerts = append(alerts, models.Alert{
			Kind:  models.KindUsageThreshold,
			Level: models.Warning,
			Text:  ap.renderUsage(models.NewAlertData(in.Daily, in.Weekly, in.DailyBudget, in.Now)),
		})
	}

	return next, alerts
}

// StartupAlerts returns the one-time alerts raised when the daemon starts.
func (ap *AlertPolicy) StartupAlerts(credentialsFound bool) []models.Alert {
	if credentialsFound {
		return nil
	}
	return []models.Alert{{
		Kind:  models.KindCredentialsMissing,
		Level: models.Warning,
		Text:  CredentialsMissingText,
	}}
}

func (ap *AlertPolicy) renderUsage(data *models.AlertData) string {
	if ap.template == models.DefaultUsageAlertTemplate {
		return ap.engine.ExecuteWithDefault(ap.template, data, "⚠️ Claude usage warning")
	}
	fallback := ap.engine.ExecuteWithDefault(models.DefaultUsageAlertTemplate, data, "⚠️ Claude usage warning")
	return ap.engine.ExecuteWithDefault(ap.template, data, fallback)
}
