package models

import "time"

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	GrantType            string
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
	RefreshTokenExpires  time.Time
}

// Principal is a verified identity.
type Principal struct {
	UserID    string
	UserName  string
	Authority Authority
}
