package models

import "time"

// MaxErrorHistory bounds DaemonState.Errors.
const MaxErrorHistory = 10

// DaemonState is the small record persisted between ticks and restarts.
// DailyTokensWarned is only meaningful for DailyTokensWarnedDate; call
// RollOver before reading it.
type DaemonState struct {
	LastRefreshUTC        *time.Time `json:"last_refresh_utc"`
	LastWarnUTC           *time.Time `json:"last_warn_utc"`
	DailyTokensWarnedDate string     `json:"daily_tokens_warned_date"`
	Errors                []string   `json:"errors"`
	RefreshCount          int        `json:"refresh_count"`
	TotalRefreshes        int        `json:"total_refreshes"`
	DailyTokensWarned     bool       `json:"daily_tokens_warned"`
}

// NewDaemonState returns the zero-value state used when nothing is persisted.
func NewDaemonState() DaemonState {
	return DaemonState{Errors: []string{}}
}

// RollOver clears the warn latch when today differs from the latched date.
// It reports whether a reset happened.
func (s *DaemonState) RollOver(today string) bool {
	if s.DailyTokensWarnedDate == today {
		return false
	}
	s.DailyTokensWarned = false
	s.DailyTokensWarnedDate = today
	return true
}

// RecordRefresh counts a successful token refresh.
func (s *DaemonState) RecordRefresh(now time.Time) {
	t := now.UTC()
	s.LastRefreshUTC = &t
	s.RefreshCount++
	s.TotalRefreshes++
}

// RecordError appends msg and keeps only the newest MaxErrorHistory entries.
func (s *DaemonState) RecordError(msg string) {
	s.Errors = append(s.Errors, msg)
	if over := len(s.Errors) - MaxErrorHistory; over > 0 {
		s.Errors = append([]string(nil), s.Errors[over:]...)
	}
}

// Latch marks today's usage warning as sent.
func (s *DaemonState) Latch(now time.Time) {
	t := now.UTC()
	s.DailyTokensWarned = true
	s.LastWarnUTC = &t
}

// Clone returns a deep copy.
func (s DaemonState) Clone() DaemonState {
	out := s
	if s.LastRefreshUTC != nil {
		t := *s.LastRefreshUTC
		out.LastRefreshUTC = &t
	}
	if s.LastWarnUTC != nil {
		t := *s.LastWarnUTC
		out.LastWarnUTC = &t
	}
	out.Errors = append([]string{}, s.Errors...)
	return out
}
