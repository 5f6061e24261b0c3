package auth

import (
	"context"
	"net/url"

	"golang.org/x/oauth2"
)

// DevToken is the access token issued by DevProvider.
const DevToken = "dev-access-token"

// DevProvider signs in without contacting Google. It pairs with the memory
// ledger backend for local development.
type DevProvider struct {
	CallbackPath string
}

var _ Provider = DevProvider{}

func (d DevProvider) AuthCodeURL(state string) string {
	path := d.CallbackPath
	if path == "" {
		path = "/auth/callback"
	}
	return path + "?" + url.Values{"code": {"dev"}, "state": {state}}.Encode()
}

func (DevProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: DevToken, TokenType: "Bearer"}, nil
}

func (DevProvider) Refresh(_ context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, ErrNoToken
	}
	return tok, nil
}
