package services

import (
	"time"

	"claude-monitor/src/models"
)

// Metrics receives daemon telemetry. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordRefresh(outcome models.RefreshOutcome, reason models.FailureReason)
	RecordAlert(kind models.AlertKind, delivered bool)
	RecordTick(ok bool, duration time.Duration)
	SetUsage(daily, weekly models.UsageSnapshot, percent float64)
	SetTokenRemaining(remaining time.Duration)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordRefresh(models.RefreshOutcome, models.FailureReason) {}
func (NoopMetrics) RecordAlert(models.AlertKind, bool) {}
func (NoopMetrics) RecordTick(bool, time.Duration) {}
func (NoopMetrics) SetUsage(models.UsageSnapshot, models.UsageSnapshot, float64) {}
func (NoopMetrics) SetTokenRemaining(time.Duration) {}
