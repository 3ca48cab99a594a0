package models

// DefaultExpiresInSeconds is assumed when the token endpoint omits expires_in.
const DefaultExpiresInSeconds = 28800

// FailureReason classifies a failed refresh.
type FailureReason string

const (
	FailureNoRefreshToken     FailureReason = "no_refresh_token"
	FailureHTTPStatus         FailureReason = "http_status"
	FailureMissingAccessToken FailureReason = "missing_access_token"
	FailureTransport          FailureReason = "transport"
	FailurePersist            FailureReason = "persist"
)

// RefreshOutcome summarises what happened to the token this tick.
type RefreshOutcome int

const (
	RefreshSkipped RefreshOutcome = iota
	RefreshSucceeded
	RefreshFailed
)

// String returns the outcome name.
func (o RefreshOutcome) String() string {
	switch o {
	case RefreshSkipped:
		return "skipped"
	case RefreshSucceeded:
		return "succeeded"
	case RefreshFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the outcome by name.
func (o RefreshOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// RefreshResult is Success(Credentials) | Failure(Reason, Err).
type RefreshResult struct {
	Err         error
	Credentials *Credentials
	Reason      FailureReason
	StatusCode  int
}

// RefreshSuccess wraps the new credential record.
func RefreshSuccess(creds Credentials) RefreshResult {
	return RefreshResult{Credentials: &creds}
}

// RefreshFailure builds a failed result.
func RefreshFailure(reason FailureReason, err error) RefreshResult {
	return RefreshResult{Reason: reason, Err: err}
}

// OK reports whether the refresh succeeded.
func (r RefreshResult) OK() bool {
	return r.Credentials != nil && r.Reason == ""
}

// Outcome maps the result onto a RefreshOutcome.
func (r RefreshResult) Outcome() RefreshOutcome {
	if r.OK() {
		return RefreshSucceeded
	}
	return RefreshFailed
}
