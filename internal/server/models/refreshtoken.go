package models

import "time"

// RefreshToken is the single refresh token on file for a user.
type RefreshToken struct {
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
