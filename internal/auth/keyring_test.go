package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

func TestLoadTokenUsesEnvVarFirst(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_TOKEN_JSON", `{"access_token":"env-token","refresh_token":"r"}`)

	origGet := keyringGet
	defer func() { keyringGet = origGet }()

	keyringCalled := false
	keyringGet = func(service, user string) (string, error) {
		keyringCalled = true
		return "", nil
	}

	tok, err := LoadToken()
	if err != nil {
		t.Fatalf("LoadToken() unexpected error: %v", err)
	}
	if tok.AccessToken != "env-token" || tok.RefreshToken != "r" {
		t.Fatalf("LoadToken() = %+v", tok)
	}
	if keyringCalled {
		t.Fatal("LoadToken() called keyringGet even though GOOGLE_OAUTH_TOKEN_JSON was set")
	}
}

func TestLoadTokenFallsBackToKeyring(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_TOKEN_JSON", "")
	t.Setenv("FINVIEW_KEYCHAIN_SERVICE", "svc")
	t.Setenv("FINVIEW_KEYCHAIN_ACCOUNT", "acct")

	origGet := keyringGet
	defer func() { keyringGet = origGet }()

	var gotService, gotUser string
	keyringGet = func(service, user string) (string, error) {
		gotService, gotUser = service, user
		return `  {"access_token":"kr-token"}  `, nil
	}

	tok, err := LoadToken()
	if err != nil {
		t.Fatalf("LoadToken() unexpected error: %v", err)
	}
	if tok.AccessToken != "kr-token" {
		t.Fatalf("LoadToken() access token = %q", tok.AccessToken)
	}
	if gotService != "svc" || gotUser != "acct" {
		t.Fatalf("keyringGet called with (%q, %q), want (svc, acct)", gotService, gotUser)
	}
}

func TestLoadTokenMissing(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_TOKEN_JSON", "")

	origGet := keyringGet
	defer func() { keyringGet = origGet }()
	keyringGet = func(service, user string) (string, error) {
		return "", keyring.ErrNotFound
	}

	if _, err := LoadToken(); !errors.Is(err, ErrNoStoredToken) {
		t.Fatalf("expected ErrNoStoredToken, got %v", err)
	}
}

func TestLoadTokenKeyringFailure(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_TOKEN_JSON", "")

	origGet := keyringGet
	defer func() { keyringGet = origGet }()
	keyringGet = func(service, user string) (string, error) {
		return "", errors.New("locked")
	}

	_, err := LoadToken()
	if err == nil || !strings.Contains(err.Error(), "failed to read keyring item") {
		t.Fatalf("expected keyring error, got %v", err)
	}
}

func TestSaveToken(t *testing.T) {
	t.Setenv("FINVIEW_KEYCHAIN_SERVICE", "")
	t.Setenv("FINVIEW_KEYCHAIN_ACCOUNT", "")

	origSet := keyringSet
	defer func() { keyringSet = origSet }()

	var stored, gotService string
	keyringSet = func(service, user, secret string) error {
		gotService = service
		stored = secret
		return nil
	}

	if err := SaveToken(&oauth2.Token{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("SaveToken() unexpected error: %v", err)
	}
	if gotService != defaultSecretService {
		t.Errorf("service = %q, want %q", gotService, defaultSecretService)
	}
	if !strings.Contains(stored, `"refresh_token":"r"`) {
		t.Errorf("stored secret missing refresh token: %s", stored)
	}

	if err := SaveToken(&oauth2.Token{}); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken for empty token, got %v", err)
	}
}

func TestDeleteTokenIgnoresMissing(t *testing.T) {
	origDelete := keyringDelete
	defer func() { keyringDelete = origDelete }()
	keyringDelete = func(service, user string) error { return keyring.ErrNotFound }

	if err := DeleteToken(); err != nil {
		t.Fatalf("DeleteToken() unexpected error: %v", err)
	}
}
