package types

import (
	"time"

	"golang.org/x/oauth2"
)

type TokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in,omitempty"`
	TokenType    string   `json:"token_type,omitempty"`
	Scope        []string `json:"scope,omitempty"`
}

// OAuth2Token converts the response to the golang.org/x/oauth2 representation,
// the expiry is computed relative to "now".
func (r TokenResponse) OAuth2Token(now time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return tok
}

// TokenError is the body Twitch sends when a token request is rejected.
type TokenError struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// TokenValidation is the body of a successful "validate token" request.
type TokenValidation struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int      `json:"expires_in"`
}
