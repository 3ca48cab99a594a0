package models

import "time"

// TickOutcome is Ok | Failed(Err) for one scheduler iteration, plus what the
// tick observed so callers and tests can inspect it.
type TickOutcome struct {
	Started time.Time      `json:"started"`
	Err     error          `json:"-"`
	Alerts  []Alert        `json:"alerts"`
	Daily   UsageSnapshot  `json:"daily"`
	Weekly  UsageSnapshot  `json:"weekly"`
	Refresh RefreshOutcome `json:"refresh"`
}

// OK reports whether the tick completed without failure.
func (o TickOutcome) OK() bool {
	return o.Err == nil
}

// Reason returns the failure text, or "" for a successful tick.
func (o TickOutcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
