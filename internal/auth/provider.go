// Package auth implements the OAuth authorization-code flow against Google
// and the local credential store used by the command-line tools.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// ErrNoToken is returned when an exchange succeeds without an access token.
var ErrNoToken = errors.New("authorization returned no access token")

// Provider is the authorization server as seen by the dashboard.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// Refresh returns a valid token for tok, refreshing it when expired.
	// The returned token may be tok itself.
	Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
}

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GoogleProvider requests read-only Sheets access with offline refresh.
type GoogleProvider struct {
	cfg *oauth2.Config
}

var _ Provider = (*GoogleProvider)(nil)

func NewGoogleProvider(c GoogleConfig) (*GoogleProvider, error) {
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return nil, errors.New("google oauth client id and secret are required")
	}
	if _, err := url.ParseRequestURI(c.RedirectURL); err != nil {
		return nil, fmt.Errorf("invalid redirect url %q: %w", c.RedirectURL, err)
	}
	return &GoogleProvider{cfg: &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gsheet.SpreadsheetsReadonlyScope},
	}}, nil
}

// NewGoogleProviderFromJSON reads a client registration downloaded from the
// Google Cloud console.
func NewGoogleProviderFromJSON(b []byte, redirectURL string) (*GoogleProvider, error) {
	cfg, err := google.ConfigFromJSON(b, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return &GoogleProvider{cfg: cfg}, nil
}

// Config exposes the underlying OAuth configuration.
func (p *GoogleProvider) Config() *oauth2.Config {
	return p.cfg
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, ErrNoToken
	}
	return tok, nil
}

func (p *GoogleProvider) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil {
		return nil, ErrNoToken
	}
	if tok.Valid() {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("token expired and no refresh token available")
	}
	fresh, err := p.cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return fresh, nil
}

// NewState returns an unguessable value for the OAuth state parameter.
func NewState() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
