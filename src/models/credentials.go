package models

import "time"

// Credentials is the OAuth credential record. ExpiresAt is an absolute
// wall-clock time in epoch milliseconds.
type Credentials struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken"`
	ExpiresAt        int64    `json:"expiresAt"`
	Scopes           []string `json:"scopes"`
	SubscriptionType string   `json:"subscriptionType"`
	RateLimitTier    string   `json:"rateLimitTier"`
}

// CredentialsFile is the on-disk wrapper around Credentials.
type CredentialsFile struct {
	ClaudeAiOauth *Credentials `json:"claudeAiOauth"`
}

// ExpiresAtTime returns the expiry as a time.Time.
func (c Credentials) ExpiresAtTime() time.Time {
	return time.UnixMilli(c.ExpiresAt)
}

// Remaining is the time left before expiry; negative once expired.
func (c Credentials) Remaining(now time.Time) time.Duration {
	return c.ExpiresAtTime().Sub(now)
}

// ExpiresSoon reports whether the token expires within buffer of now.
// An already expired token also expires soon.
func (c Credentials) ExpiresSoon(buffer time.Duration, now time.Time) bool {
	return c.Remaining(now) < buffer
}

// Clone returns a deep copy.
func (c Credentials) Clone() Credentials {
	out := c
	if c.Scopes != nil {
		out.Scopes = append([]string(nil), c.Scopes...)
	}
	return out
}
