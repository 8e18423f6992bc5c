package swiftship

import (
	"context"
	"fmt"
	"time"

	"github.com/threadline/courier-bridge/pkg/courier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TokenManager owns the bearer-token lifecycle against the carrier's
// token endpoint. The common path is a cheap read of persisted state;
// refreshes go through a singleflight group so concurrent callers
// observing an expiring token share one refresh call instead of racing.
type TokenManager struct {
	creds  *courier.CredentialStore
	api    APIClient
	logger *otelzap.Logger

	group singleflight.Group
	now   func() time.Time
}

// NewTokenManager creates a token manager.
func NewTokenManager(creds *courier.CredentialStore, api APIClient, logger *otelzap.Logger) *TokenManager {
	return &TokenManager{
		creds:  creds,
		api:    api,
		logger: logger,
		now:    time.Now,
	}
}

// ValidToken returns a bearer token that is safe to use for at least
// the usability margin. A fresh stored token is returned with zero
// network calls; otherwise the refresh path runs. Fails with
// courier.ErrCredentialsMissing or courier.ErrRefreshFailed.
func (t *TokenManager) ValidToken(ctx context.Context) (string, error) {
	state, err := t.creds.TokenState(ctx)
	if err != nil {
		return "", err
	}

	if state.Usable(t.now()) {
		return state.AccessToken, nil
	}

	if state.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token, re-authentication required", courier.ErrRefreshFailed)
	}

	token, err, _ := t.group.Do("refresh", func() (interface{}, error) {
		return t.refresh(ctx, state)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// refresh exchanges the refresh token for a new state and persists it.
func (t *TokenManager) refresh(ctx context.Context, state courier.TokenState) (string, error) {
	clientID, clientSecret, err := t.creds.ClientCredentials(ctx)
	if err != nil {
		return "", err
	}

	resp, err := t.api.IssueToken(ctx, &TokenRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: state.RefreshToken,
		GrantType:    GrantRefreshToken,
	})
	if err != nil {
		t.logger.Error("Token refresh failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", courier.ErrRefreshFailed, err)
	}

	newState := courier.TokenState{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    t.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	// Some grants omit the refresh token; carry the old one over.
	if newState.RefreshToken == "" {
		newState.RefreshToken = state.RefreshToken
	}

	if err := t.creds.SaveTokenState(ctx, newState); err != nil {
		return "", fmt.Errorf("%w: %v", courier.ErrRefreshFailed, err)
	}

	t.logger.Info("Carrier token refreshed",
		zap.Time("expires_at", newState.ExpiresAt),
	)
	return newState.AccessToken, nil
}

// Exchange performs the initial full credential exchange and persists
// the resulting token state. Used by the carrier setup flow; the
// refresh path never falls back to it on its own.
func (t *TokenManager) Exchange(ctx context.Context) error {
	creds, err := t.creds.Credentials(ctx)
	if err != nil {
		return err
	}

	resp, err := t.api.IssueToken(ctx, &TokenRequest{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Username:     creds.Username,
		Password:     creds.Password,
		GrantType:    GrantPassword,
	})
	if err != nil {
		return fmt.Errorf("credential exchange: %w", err)
	}

	state := courier.TokenState{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    t.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if err := t.creds.SaveTokenState(ctx, state); err != nil {
		return fmt.Errorf("persisting exchanged token: %w", err)
	}

	t.logger.Info("Carrier session established",
		zap.Time("expires_at", state.ExpiresAt),
	)
	return nil
}
