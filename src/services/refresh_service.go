package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"claude-monitor/src/lib"
	"claude-monitor/src/models"
)

const maxLoggedBodyLength = 200

// CredentialStore persists a refreshed credential record.
type CredentialStore interface {
	Save(creds models.Credentials) error
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
}

// ExpiresIn accepts any JSON number; fractions are truncated to seconds.
type tokenResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    float64 `json:"expires_in"`
}

// RefreshService exchanges a refresh token for a new access token and
// replaces the credential record on success.
type RefreshService struct {
	store    CredentialStore
	client   *http.Client
	logger   *lib.Logger
	now      func() time.Time
	tokenURL string
	clientID string
}

// NewRefreshService creates a RefreshService from config.
func NewRefreshService(config *models.Config, store CredentialStore) *RefreshService {
	return &RefreshService{
		store:    store,
		client:   &http.Client{Timeout: config.RefreshTimeoutDuration()},
		logger:   lib.NewLogger("refresh"),
		now:      time.Now,
		tokenURL: config.TokenURL,
		clientID: config.OAuthClientID,
	}
}

// Refresh performs the token exchange for creds. The previous record is
// left untouched unless the exchange succeeds and the new record is saved.
func (rs *RefreshService) Refresh(ctx context.Context, creds models.Credentials) models.RefreshResult {
	if creds.RefreshToken == "" {
		rs.logger.Warn("No refresh token available")
		return models.RefreshFailure(models.FailureNoRefreshToken,
			lib.RefreshError("no refresh token available"))
	}

	rs.logger.Info("Refreshing OAuth token")

	body, err := json.Marshal(tokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: creds.RefreshToken,
		ClientID:     rs.clientID,
	})
	if err != nil {
		return models.RefreshFailure(models.FailureTransport, lib.WrapError(err, lib.ErrCodeRefresh, "encode token request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rs.tokenURL, bytes.NewReader(body))
	if err != nil {
		return models.RefreshFailure(models.FailureTransport, lib.WrapError(err, lib.ErrCodeRefresh, "build token request"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := rs.client.Do(req)
	if err != nil {
		rs.logger.Error("Token exchange request failed", map[string]interface{}{
			"error": err.Error(),
		})
		return models.RefreshFailure(models.FailureTransport, lib.WrapError(err, lib.ErrCodeRefresh, "token exchange request failed"))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyLength))
		err := lib.RefreshError(fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode)).
			WithFields(map[string]interface{}{
				"status": resp.StatusCode,
				"body":   string(excerpt),
			})
		rs.logger.Error("Token exchange rejected", lib.ErrorFields(err))
		result := models.RefreshFailure(models.FailureHTTPStatus, err)
		result.StatusCode = resp.StatusCode
		return result
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		rs.logger.Error("Token response could not be decoded", map[string]interface{}{
			"error": err.Error(),
		})
		return models.RefreshFailure(models.FailureTransport, lib.WrapError(err, lib.ErrCodeRefresh, "decode token response"))
	}

	if payload.AccessToken == "" {
		rs.logger.Error("No access_token in response")
		return models.RefreshFailure(models.FailureMissingAccessToken,
			lib.RefreshError("no access_token in response"))
	}

	updated := rs.buildCredentials(creds, payload)

	if err := rs.store.Save(updated); err != nil {
		rs.logger.Error("Refreshed token could not be saved", map[string]interface{}{
			"error": err.Error(),
		})
		return models.RefreshFailure(models.FailurePersist, lib.WrapError(err, lib.ErrCodeRefresh, "save refreshed credentials"))
	}

	rs.logger.Info("Token refreshed", map[string]interface{}{
		"expires_at":      updated.ExpiresAtTime().UTC().Format(time.RFC3339),
		"rotated_refresh": payload.RefreshToken != "",
	})
	return models.RefreshSuccess(updated)
}

// buildCredentials constructs a complete new record. Fields the token
// endpoint does not return are carried over from prev.
func (rs *RefreshService) buildCredentials(prev models.Credentials, payload tokenResponse) models.Credentials {
	expiresIn := int64(payload.ExpiresIn)
	if expiresIn <= 0 {
		expiresIn = models.DefaultExpiresInSeconds
	}

	refreshToken := payload.RefreshToken
	if refreshToken == "" {
		refreshToken = prev.RefreshToken
	}

	carried := prev.Clone()
	if carried.Scopes == nil {
		carried.Scopes = []string{}
	}
	return models.Credentials{
		AccessToken:      payload.AccessToken,
		RefreshToken:     refreshToken,
		ExpiresAt:        rs.now().Add(time.Duration(expiresIn) * time.Second).UnixMilli(),
		Scopes:           carried.Scopes,
		SubscriptionType: carried.SubscriptionType,
		RateLimitTier:    carried.RateLimitTier,
	}
}
