package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const (
	defaultSecretService = "finview"
	defaultSecretUser    = "google_oauth_token"
)

var (
	keyringGet    = keyring.Get
	keyringSet    = keyring.Set
	keyringDelete = keyring.Delete
)

// ErrNoStoredToken means no token has been saved yet; run oauth-init.
var ErrNoStoredToken = errors.New("no stored oauth token")

// LoadToken reads the OAuth token saved by oauth-init.
//
// Order of precedence:
// 1) GOOGLE_OAUTH_TOKEN_JSON environment variable.
// 2) The system keyring item referenced by service/account.
func LoadToken() (*oauth2.Token, error) {
	raw := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_JSON"))
	if raw == "" {
		service, account := keyringItem()
		secret, err := keyringGet(service, account)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNoStoredToken
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read keyring item service=%q account=%q: %w", service, account, err)
		}
		raw = strings.TrimSpace(secret)
	}
	if raw == "" {
		return nil, ErrNoStoredToken
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("decode stored token: %w", err)
	}
	return &tok, nil
}

// SaveToken stores tok in the system credential store.
func SaveToken(tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return ErrNoToken
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	service, account := keyringItem()
	if err := keyringSet(service, account, string(b)); err != nil {
		return fmt.Errorf("failed to store keyring item service=%q account=%q: %w", service, account, err)
	}
	return nil
}

// DeleteToken removes the stored token. Deleting a missing token is not an
// error.
func DeleteToken() error {
	service, account := keyringItem()
	if err := keyringDelete(service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring item service=%q account=%q: %w", service, account, err)
	}
	return nil
}

func keyringItem() (string, string) {
	return envOrDefault("FINVIEW_KEYCHAIN_SERVICE", defaultSecretService),
		envOrDefault("FINVIEW_KEYCHAIN_ACCOUNT", defaultSecretUser)
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
