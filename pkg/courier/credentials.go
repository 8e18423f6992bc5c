package courier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Settings keys consumed and produced by the credential store.
const (
	KeyClientID     = "carrier_client_id"
	KeyClientSecret = "carrier_client_secret"
	KeyUsername     = "carrier_username"
	KeyPassword     = "carrier_password"
	KeyStoreID      = "carrier_store_id"
	KeySenderPhone  = "carrier_sender_phone"

	KeyAccessToken  = "carrier_access_token"
	KeyRefreshToken = "carrier_refresh_token"
	KeyTokenExpiry  = "carrier_token_expires_at"
)

// CredentialStore reads and writes carrier credentials and token state
// over the settings collaborator, translating absent required keys into
// ErrCredentialsMissing.
type CredentialStore struct {
	settings Settings
}

// NewCredentialStore creates a credential store on top of settings.
func NewCredentialStore(settings Settings) *CredentialStore {
	return &CredentialStore{settings: settings}
}

// Credentials loads the full credential set. Every field is required;
// a missing key fails with ErrCredentialsMissing naming the key.
func (s *CredentialStore) Credentials(ctx context.Context) (*Credentials, error) {
	var creds Credentials
	for _, f := range []struct {
		key string
		dst *string
	}{
		{KeyClientID, &creds.ClientID},
		{KeyClientSecret, &creds.ClientSecret},
		{KeyUsername, &creds.Username},
		{KeyPassword, &creds.Password},
		{KeyStoreID, &creds.StoreID},
		{KeySenderPhone, &creds.SenderPhone},
	} {
		v, err := s.required(ctx, f.key)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	return &creds, nil
}

// ClientCredentials loads only the client id and secret, the subset the
// token refresh path needs.
func (s *CredentialStore) ClientCredentials(ctx context.Context) (clientID, clientSecret string, err error) {
	clientID, err = s.required(ctx, KeyClientID)
	if err != nil {
		return "", "", err
	}
	clientSecret, err = s.required(ctx, KeyClientSecret)
	if err != nil {
		return "", "", err
	}
	return clientID, clientSecret, nil
}

func (s *CredentialStore) required(ctx context.Context, key string) (string, error) {
	v, err := s.settings.Get(ctx, key)
	if errors.Is(err, ErrSettingNotFound) || (err == nil && v == "") {
		return "", fmt.Errorf("%w: %s", ErrCredentialsMissing, key)
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return v, nil
}

// TokenState loads the persisted token state. Absent token keys yield a
// zero state rather than an error: a first run has no token yet.
func (s *CredentialStore) TokenState(ctx context.Context) (TokenState, error) {
	var st TokenState
	var err error
	if st.AccessToken, err = s.optional(ctx, KeyAccessToken); err != nil {
		return TokenState{}, err
	}
	if st.RefreshToken, err = s.optional(ctx, KeyRefreshToken); err != nil {
		return TokenState{}, err
	}
	raw, err := s.optional(ctx, KeyTokenExpiry)
	if err != nil {
		return TokenState{}, err
	}
	if raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return TokenState{}, fmt.Errorf("malformed token expiry %q: %w", raw, err)
		}
		st.ExpiresAt = time.UnixMilli(millis)
	}
	return st, nil
}

// SaveTokenState persists a refreshed token state, superseding the
// previous one in place.
func (s *CredentialStore) SaveTokenState(ctx context.Context, st TokenState) error {
	if err := s.settings.Set(ctx, KeyAccessToken, st.AccessToken); err != nil {
		return fmt.Errorf("persisting access token: %w", err)
	}
	if err := s.settings.Set(ctx, KeyRefreshToken, st.RefreshToken); err != nil {
		return fmt.Errorf("persisting refresh token: %w", err)
	}
	millis := strconv.FormatInt(st.ExpiresAt.UnixMilli(), 10)
	if err := s.settings.Set(ctx, KeyTokenExpiry, millis); err != nil {
		return fmt.Errorf("persisting token expiry: %w", err)
	}
	return nil
}

func (s *CredentialStore) optional(ctx context.Context, key string) (string, error) {
	v, err := s.settings.Get(ctx, key)
	if errors.Is(err, ErrSettingNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return v, nil
}
