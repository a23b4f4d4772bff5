package models

import (
	"time"

	"golang.org/x/oauth2"
)

// OAuthCredential is a site's stored Google credential for spreadsheet access
type OAuthCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Connected reports whether the site ever linked a Google account
func (c OAuthCredential) Connected() bool {
	return c.AccessToken != "" || c.RefreshToken != ""
}

// ToOAuth2Token converts to golang.org/x/oauth2.Token
func (c OAuthCredential) ToOAuth2Token() *oauth2.Token {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    tokenType,
		Expiry:       c.ExpiresAt,
	}
}

// FromOAuth2Token builds a credential from a refreshed token
func FromOAuth2Token(token *oauth2.Token) OAuthCredential {
	return OAuthCredential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}
}
