// Package models defines server-side data models persisted in the database
// or handed across the service boundary.
package models

import "time"

// Authority is the role granted to a user and carried in access tokens.
type Authority string

const (
	AuthorityUser  Authority = "ROLE_USER"
	AuthorityAdmin Authority = "ROLE_ADMIN"
)

// User is a credential record. PasswordHash holds an encoded one-way hash,
// never the raw password.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	Nickname     string
	Authority    Authority
	CreatedAt    time.Time
}

// UserSummary is what signup hands back: a user without its password hash.
type UserSummary struct {
	ID        string
	UserName  string
	Nickname  string
	Authority Authority
}

// Summary strips the credential from u.
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:        u.ID,
		UserName:  u.UserName,
		Nickname:  u.Nickname,
		Authority: u.Authority,
	}
}
