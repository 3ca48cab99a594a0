package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"claude-monitor/src/lib"
	"claude-monitor/src/models"
)

// CredentialSource reads the OAuth credential record.
type CredentialSource interface {
	Path() (string, bool)
	Load() lib.FileResult[models.Credentials]
	ExpiresSoon(creds models.Credentials, buffer time.Duration, now time.Time) bool
}

// Refresher exchanges a refresh token for a new credential record.
type Refresher interface {
	Refresh(ctx context.Context, creds models.Credentials) models.RefreshResult
}

// UsageSource produces usage snapshots.
type UsageSource interface {
	Path() (string, bool)
	Snapshots(now time.Time) (daily, weekly models.UsageSnapshot)
}

// StateStore persists DaemonState.
type StateStore interface {
	Path() string
	Load() models.DaemonState
	Save(state models.DaemonState) error
}

// SchedulerDeps wires the Scheduler. Nil fields get the default
// implementation built from config.
type SchedulerDeps struct {
	Credentials CredentialSource
	Refresher   Refresher
	Usage       UsageSource
	Policy      *AlertPolicy
	State       StateStore
	Notifier    Notifier
	Metrics     Metrics
	Now         func() time.Time
}

// Status is a point-in-time view of the scheduler for reporting.
type Status struct {
	StartedAt       time.Time           `json:"started_at"`
	LastTick        *models.TickOutcome `json:"last_tick,omitempty"`
	LastTickError   string              `json:"last_tick_error,omitempty"`
	CredentialsPath string              `json:"credentials_path,omitempty"`
	State           models.DaemonState  `json:"state"`
	Ticks           int                 `json:"ticks"`
	WarnPercent     int                 `json:"warn_percent"`
	DailyBudget     int                 `json:"daily_budget"`
}

// Scheduler runs the refresh check, usage check and persist cycle on a
// fixed interval. A failing tick is recorded and the loop carries on.
type Scheduler struct {
	config      *models.Config
	credentials CredentialSource
	refresher   Refresher
	usage       UsageSource
	policy      *AlertPolicy
	store       StateStore
	notifier    Notifier
	metrics     Metrics
	logger      *lib.Logger
	now         func() time.Time

	startOnce sync.Once
	mu        sync.RWMutex
	state     models.DaemonState
	last      *models.TickOutcome
	started   time.Time
	credPath  string
	ticks     int
}

// NewScheduler creates a Scheduler for config.
func NewScheduler(config *models.Config, deps SchedulerDeps) *Scheduler {
	s := &Scheduler{
		config:      config,
		credentials: deps.Credentials,
		refresher:   deps.Refresher,
		usage:       deps.Usage,
		policy:      deps.Policy,
		store:       deps.State,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		now:         deps.Now,
		logger:      lib.NewLogger("scheduler"),
		state:       models.NewDaemonState(),
	}

	if s.credentials == nil {
		s.credentials = NewCredentialService(NewCredentialLocator(config))
	}
	if s.refresher == nil {
		store, ok := s.credentials.(CredentialStore)
		if !ok {
			store = NewCredentialService(NewCredentialLocator(config))
		}
		s.refresher = NewRefreshService(config, store)
	}
	if s.usage == nil {
		s.usage = NewUsageService(NewUsageLocator(config))
	}
	if s.policy == nil {
		s.policy = NewAlertPolicy(config)
	}
	if s.store == nil {
		s.store = NewStateService(config.StatePath())
	}
	if s.notifier == nil {
		s.notifier = NewTelegramNotifier(config)
	}
	if s.metrics == nil {
		s.metrics = NoopMetrics{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Startup logs the effective configuration, raises the one-time
// missing-credentials alert and loads persisted state. Run calls it
// automatically.
func (s *Scheduler) Startup(ctx context.Context) {
	s.startOnce.Do(func() {
		credPath, credOK := s.credentials.Path()
		usagePath, _ := s.usage.Path()

		s.logger.Info("Claude Monitor daemon starting", map[string]interface{}{
			"warn_percent":        s.config.WarnPercent,
			"daily_budget":        s.config.DailyOutputBudget,
			"refresh_buffer_secs": s.config.RefreshBufferSecs,
			"check_interval_secs": s.config.CheckIntervalSecs,
			"credentials":         credPath,
			"stats_cache":         usagePath,
			"state":               s.store.Path(),
		})

		if !credOK {
			s.logger.Warn("Cannot find .credentials.json, token refresh disabled")
		}
		s.dispatch(ctx, s.policy.StartupAlerts(credOK))

		state := s.store.Load()
		// RefreshCount is per process; TotalRefreshes spans restarts.
		state.RefreshCount = 0

		s.mu.Lock()
		s.state = state
		s.started = s.now()
		s.credPath = credPath
		s.mu.Unlock()
	})
}

// Run ticks immediately and then every CheckInterval until ctx is
// cancelled. A tick never ends the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Startup(ctx)

	interval := s.config.CheckInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Tick(ctx, s.now())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopping", map[string]interface{}{
				"ticks": s.tickCount(),
			})
			return nil
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick runs one iteration at now. Panics and errors inside the body are
// converted into a failed outcome.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (outcome models.TickOutcome) {
	start := time.Now()
	outcome.Started = now

	s.mu.RLock()
	state := s.state.Clone()
	s.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = lib.SystemError(fmt.Sprintf("tick panicked: %v", r))
		}
		if outcome.Err != nil {
			s.logger.Error("Tick failed", lib.ErrorFields(outcome.Err))
		}
		s.metrics.RecordTick(outcome.OK(), time.Since(start))

		s.mu.Lock()
		s.state = state
		last := outcome
		s.last = &last
		s.ticks++
		s.mu.Unlock()
	}()

	outcome.Err = s.tick(ctx, now, &state, &outcome)
	return outcome
}

func (s *Scheduler) tick(ctx context.Context, now time.Time, state *models.DaemonState, outcome *models.TickOutcome) error {
	today := now.UTC().Format(models.DateLayout)
	state.RollOver(today)

	outcome.Refresh = s.checkToken(ctx, now, state)

	daily, weekly := s.usage.Snapshots(now)
	outcome.Daily, outcome.Weekly = daily, weekly
	pct := daily.Percent(s.config.DailyOutputBudget)
	s.metrics.SetUsage(daily, weekly, pct)

	s.logger.Info("Usage", map[string]interface{}{
		"daily_tokens":    daily.OutputTokens,
		"daily_percent":   math.Round(pct),
		"daily_messages":  daily.MessageCount,
		"weekly_tokens":   weekly.OutputTokens,
		"weekly_messages": weekly.MessageCount,
	})

	next, alerts := s.policy.Evaluate(AlertInput{
		Now:         now,
		Today:       today,
		Daily:       daily,
		Weekly:      weekly,
		Refresh:     outcome.Refresh,
		WarnPercent: s.config.WarnPercent,
		DailyBudget: s.config.DailyOutputBudget,
	}, *state)
	*state = next
	outcome.Alerts = alerts

	for _, a := range alerts {
		if a.Kind == models.KindUsageThreshold {
			s.logger.Warn("Usage alert raised", map[string]interface{}{
				"percent": math.Round(pct),
			})
		}
	}
	s.dispatch(ctx, alerts)

	return s.store.Save(*state)
}

// checkToken refreshes the credential record when it is close to expiry.
// Refresh failures are recorded in state.
func (s *Scheduler) checkToken(ctx context.Context, now time.Time, state *models.DaemonState) models.RefreshOutcome {
	if _, ok := s.credentials.Path(); !ok {
		return models.RefreshSkipped
	}

	res := s.credentials.Load()
	switch res.Status {
	case lib.FileAbsent:
		return models.RefreshSkipped
	case lib.FileCorrupt:
		s.logger.Warn("Credentials unreadable, skipping refresh check", map[string]interface{}{
			"error": res.Err.Error(),
		})
		return models.RefreshSkipped
	}

	creds := res.Value
	s.metrics.SetTokenRemaining(creds.Remaining(now))
	if !s.credentials.ExpiresSoon(creds, s.config.RefreshBuffer(), now) {
		return models.RefreshSkipped
	}

	refreshCtx, cancel := context.WithTimeout(ctx, s.config.RefreshTimeoutDuration())
	defer cancel()

	result := s.refresher.Refresh(refreshCtx, creds)
	s.metrics.RecordRefresh(result.Outcome(), result.Reason)

	if result.OK() {
		state.RecordRefresh(now)
		s.logger.Info("Token refresh recorded", map[string]interface{}{
			"refresh_count":   state.RefreshCount,
			"total_refreshes": state.TotalRefreshes,
		})
		return models.RefreshSucceeded
	}

	state.RecordError(fmt.Sprintf("Claude token refresh FAILED at %s", now.UTC().Format(time.RFC3339)))
	return models.RefreshFailed
}

// dispatch sends alerts one by one. Delivery failures are logged and
// counted, never returned.
func (s *Scheduler) dispatch(ctx context.Context, alerts []models.Alert) {
	for _, alert := range alerts {
		sendCtx, cancel := context.WithTimeout(ctx, s.config.NotifyTimeoutDuration())
		err := s.notifier.Send(sendCtx, alert)
		cancel()

		s.metrics.RecordAlert(alert.Kind, err == nil)
		if err != nil {
			fields := lib.ErrorFields(err)
			fields["kind"] = string(alert.Kind)
			s.logger.Warn("Alert delivery failed", fields)
		}
	}
}

// Status returns a copy of the scheduler's current view.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		StartedAt:       s.started,
		CredentialsPath: s.credPath,
		State:           s.state.Clone(),
		Ticks:           s.ticks,
		WarnPercent:     s.config.WarnPercent,
		DailyBudget:     s.config.DailyOutputBudget,
	}
	if s.last != nil {
		last := *s.last
		last.Alerts = append([]models.Alert(nil), s.last.Alerts...)
		st.LastTick = &last
		st.LastTickError = last.Reason()
	}
	return st
}

func (s *Scheduler) tickCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticks
}
