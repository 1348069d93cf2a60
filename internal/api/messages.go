// Package api holds the wire contract of the fluma auth service shared by
// the gRPC server and its clients: request and response messages, the codec
// that carries them as google.protobuf.Struct payloads, and the service
// descriptor.
package api

import "time"

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname,omitempty"`
}

type SignupResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname,omitempty"`
	Authority string `json:"authority"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ReissueRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is the token pair returned by Login and Reissue.
type TokenResponse struct {
	GrantType            string    `json:"grant_type"`
	AccessToken          string    `json:"access_token"`
	RefreshToken         string    `json:"refresh_token"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
