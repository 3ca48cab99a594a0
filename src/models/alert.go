package models

// AlertLevel represents the severity of an operator alert.
type AlertLevel int

const (
	Info     AlertLevel = iota // Routine events
	Warning                    // Needs attention soon
	Critical                   // Needs manual intervention
)

// String returns human-readable alert level.
func (a AlertLevel) String() string {
	switch a {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText encodes the level by name.
func (a AlertLevel) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Emoji returns the prefix used in chat messages.
func (a AlertLevel) Emoji() string {
	switch a {
	case Info:
		return "ℹ️"
	case Warning:
		return "⚠️"
	case Critical:
		return "🚨"
	default:
		return "❔"
	}
}

// AlertKind identifies what triggered an alert.
type AlertKind string

const (
	KindCredentialsMissing AlertKind = "credentials_missing"
	KindRefreshFailed      AlertKind = "refresh_failed"
	KindUsageThreshold     AlertKind = "usage_threshold"
)

// Alert is a message queued for the operator. Text may contain Telegram
// HTML markup.
type Alert struct {
	Kind  AlertKind  `json:"kind"`
	Text  string     `json:"text"`
	Level AlertLevel `json:"level"`
}
