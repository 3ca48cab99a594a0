// Package metrics exports daemon telemetry to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"claude-monitor/src/models"
	"claude-monitor/src/services"
)

var _ services.Metrics = (*Metrics)(nil)

// Metrics implements services.Metrics using Prometheus.
type Metrics struct {
	refreshTotal       *prometheus.CounterVec
	alertsTotal        *prometheus.CounterVec
	ticksTotal         *prometheus.CounterVec
	tickDuration       prometheus.Histogram
	dailyOutputTokens  prometheus.Gauge
	dailyUsagePercent  prometheus.Gauge
	dailyMessages      prometheus.Gauge
	weeklyOutputTokens prometheus.Gauge
	costUSD            prometheus.Gauge
	tokenRemaining     prometheus.Gauge
}

// NewMetrics registers the daemon's collectors on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		refreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Token refresh attempts by outcome and failure reason.",
		}, []string{"outcome", "reason"}),

		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts raised by kind and whether delivery succeeded.",
		}, []string{"kind", "delivered"}),

		ticksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler iterations by result.",
		}, []string{"result"}),

		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Latency of one scheduler iteration.",
			Buckets:   prometheus.DefBuckets,
		}),

		dailyOutputTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_output_tokens",
			Help:      "Output tokens used today (UTC).",
		}),

		dailyUsagePercent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_usage_percent",
			Help:      "Today's output tokens as a percentage of the daily budget.",
		}),

		dailyMessages: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_messages",
			Help:      "Messages sent today (UTC).",
		}),

		weeklyOutputTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weekly_output_tokens",
			Help:      "Output tokens used since Monday (UTC).",
		}),

		costUSD: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cost_usd",
			Help:      "Cumulative cost across all models.",
		}),

		tokenRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "token_remaining_seconds",
			Help:      "Seconds until the access token expires. Negative once expired.",
		}),
	}
}

func (m *Metrics) RecordRefresh(outcome models.RefreshOutcome, reason models.FailureReason) {
	label := string(reason)
	if label == "" {
		label = "none"
	}
	m.refreshTotal.WithLabelValues(outcome.String(), label).Inc()
}

func (m *Metrics) RecordAlert(kind models.AlertKind, delivered bool) {
	m.alertsTotal.WithLabelValues(string(kind), strconv.FormatBool(delivered)).Inc()
}

func (m *Metrics) RecordTick(ok bool, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.ticksTotal.WithLabelValues(result).Inc()
	m.tickDuration.Observe(duration.Seconds())
}

func (m *Metrics) SetUsage(daily, weekly models.UsageSnapshot, percent float64) {
	m.dailyOutputTokens.Set(float64(daily.OutputTokens))
	m.dailyMessages.Set(float64(daily.MessageCount))
	m.dailyUsagePercent.Set(percent)
	m.weeklyOutputTokens.Set(float64(weekly.OutputTokens))
	m.costUSD.Set(daily.CostUSD)
}

func (m *Metrics) SetTokenRemaining(remaining time.Duration) {
	m.tokenRemaining.Set(remaining.Seconds())
}
