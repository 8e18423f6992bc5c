package swiftship_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/courier-bridge/pkg/courier"
	"github.com/threadline/courier-bridge/pkg/courier/swiftship"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestLogger() *otelzap.Logger {
	return otelzap.New(zap.NewNop())
}

func seedCredentials(t *testing.T, settings *courier.MemorySettings) {
	t.Helper()
	ctx := context.Background()
	for key, value := range map[string]string{
		courier.KeyClientID:     "client-1",
		courier.KeyClientSecret: "secret-1",
		courier.KeyUsername:     "merchant@threadline.example",
		courier.KeyPassword:     "hunter2",
		courier.KeyStoreID:      "store-42",
		courier.KeySenderPhone:  "01700000000",
	} {
		require.NoError(t, settings.Set(ctx, key, value))
	}
}

func newTokenManager(t *testing.T, settings *courier.MemorySettings, api swiftship.APIClient) *swiftship.TokenManager {
	t.Helper()
	return swiftship.NewTokenManager(courier.NewCredentialStore(settings), api, newTestLogger())
}

func seedTokenState(t *testing.T, settings *courier.MemorySettings, state courier.TokenState) {
	t.Helper()
	store := courier.NewCredentialStore(settings)
	require.NoError(t, store.SaveTokenState(context.Background(), state))
}

func TestTokenManager_FreshTokenNoNetworkCalls(t *testing.T) {
	settings := courier.NewMemorySettings()
	seedCredentials(t, settings)
	seedTokenState(t, settings, courier.TokenState{
		AccessToken:  "fresh-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(5 * time.Hour),
	})

	mockAPI := swiftship.NewMockAPIClient()
	tm := newTokenManager(t, settings, mockAPI)

	token, err := tm.ValidToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.EqualValues(t, 0, mockAPI.IssueTokenCalls())
}

func TestTokenManager_RefreshExpiringToken(t *testing.T) {
	settings := courier.NewMemorySettings()
	seedCredentials(t, settings)
	oldExpiry := time.Now().Add(30 * time.Minute)
	seedTokenState(t, settings, courier.TokenState{
		AccessToken:  "expiring-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    oldExpiry,
	})

	mockAPI := swiftship.NewMockAPIClient()
	mockAPI.OnIssueToken = func(ctx context.Context, req *swiftship.TokenRequest) (*swiftship.TokenResponse, error) {
		assert.Equal(t, swiftship.GrantRefreshToken, req.GrantType)
		assert.Equal(t, "refresh-1", req.RefreshToken)
		assert.Equal(t, "client-1", req.ClientID)
		assert.Empty(t, req.Password, "refresh must not send the password")
		return &swiftship.TokenResponse{
			AccessToken:  "new-token",
			RefreshToken: "refresh-2",
			ExpiresIn:    432000,
		}, nil
	}
	tm := newTokenManager(t, settings, mockAPI)

	token, err := tm.ValidToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "new-token", token)
	assert.EqualValues(t, 1, mockAPI.IssueTokenCalls())

	state, err := courier.NewCredentialStore(settings).TokenState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-token", state.AccessToken)
	assert.Equal(t, "refresh-2", state.RefreshToken)
	assert.True(t, state.ExpiresAt.After(oldExpiry), "persisted expiry must be strictly later")
}

func TestTokenManager_RefreshCarriesOverRefreshToken(t *testing.T) {
	settings := courier.NewMemorySettings()
	seedCredentials(t, settings)
	seedTokenState(t, settings, courier.TokenState{
		AccessToken:  "expiring-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(10 * time.Minute),
	})

	mockAPI := swiftship.NewMockAPIClient()
	mockAPI.OnIssueToken = func(ctx context.Context, req *swiftship.TokenRequest) (*swiftship.TokenResponse, error) {
		// Carrier omits the refresh token on this grant.
		return &swiftship.TokenResponse{AccessToken: "new-token", ExpiresIn: 3600}, nil
	}
	tm := newTokenManager(t, settings, mockAPI)

	_, err := tm.ValidToken(context.Background())
	require.NoError(t, err)

	state, err := courier.NewCredentialStore(settings).TokenState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", state.RefreshToken)
}

func TestTokenManager_NoRefreshToken(t *testing.T) {
	settings := courier.NewMemorySettings()
	seedCredentials(t, settings)
	seedTokenState(t, settings, courier.TokenState{
		AccessToken: "expired-token",
		ExpiresAt:   time.Now().Add(-time.Hour),
	})

	mockAPI := swiftship.NewMockAPIClient()
	tm := newTokenManager(t, settings, mockAPI)

	_, err := tm.ValidToken(context.Background())

	assert.ErrorIs(t, err, courier.ErrRefreshFailed)
	assert.EqualValues(t, 0, mockAPI.IssueTokenCalls())
}

func TestTokenManager_RefreshNetworkError(t *testing.T) {
	settings := courier.NewMemorySettings()
	seedCredentials(t, settings)
	seedTokenState(t, settings, courier.TokenState{
		AccessToken:  "expired-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Hour),
	})

	mockAPI := swiftship.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	tm := newTokenManager(t, settings, mockAPI)

	_, err := tm.ValidToken(context.Background())

	assert.ErrorIs(t, err, courier.ErrRefreshFailed)
	assert.Contains(t, err.Error(), "MOCK_ERROR")
}

func TestTokenManager_RefreshMissingClientCredentials(t *testing.T) {
	settings := courier.NewMemorySettings()
	seedTokenState(t, settings, courier.TokenState{
		AccessToken:  "expired-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Hour),
	})

	tm := newTokenManager(t, settings, swiftship.NewMockAPIClient())

	_, err := tm.ValidToken(context.Background())

	assert.ErrorIs(t, err, courier.ErrCredentialsMissing)
}

func TestTokenManager_ConcurrentRefreshSingleFlight(t *testing.T) {
	settings := courier.NewMemorySettings()
	seedCredentials(t, settings)
	seedTokenState(t, settings, courier.TokenState{
		AccessToken:  "expiring-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(10 * time.Minute),
	})

	mockAPI := swiftship.NewMockAPIClient()
	mockAPI.SimulateLatency = 50 * time.Millisecond
	tm := newTokenManager(t, settings, mockAPI)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = tm.ValidToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, tokens[0], tokens[i])
	}
	assert.EqualValues(t, 1, mockAPI.IssueTokenCalls(), "concurrent callers must share one refresh")
}

func TestTokenManager_Exchange(t *testing.T) {
	settings := courier.NewMemorySettings()
	seedCredentials(t, settings)

	mockAPI := swiftship.NewMockAPIClient()
	mockAPI.OnIssueToken = func(ctx context.Context, req *swiftship.TokenRequest) (*swiftship.TokenResponse, error) {
		assert.Equal(t, swiftship.GrantPassword, req.GrantType)
		assert.Equal(t, "merchant@threadline.example", req.Username)
		assert.Equal(t, "hunter2", req.Password)
		return &swiftship.TokenResponse{AccessToken: "first-token", RefreshToken: "first-refresh", ExpiresIn: 432000}, nil
	}
	tm := newTokenManager(t, settings, mockAPI)

	require.NoError(t, tm.Exchange(context.Background()))

	state, err := courier.NewCredentialStore(settings).TokenState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first-token", state.AccessToken)
	assert.True(t, state.Usable(time.Now()))
}

func TestTokenManager_ExchangeMissingCredentials(t *testing.T) {
	tm := newTokenManager(t, courier.NewMemorySettings(), swiftship.NewMockAPIClient())

	err := tm.Exchange(context.Background())
	assert.ErrorIs(t, err, courier.ErrCredentialsMissing)
}
