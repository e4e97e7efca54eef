package domain

import "time"

// User is a portal account. Agent and closer accounts link to their registry
// row so the access token can carry the caller's own principal id.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	AgentID      *string
	CloserID     *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the identity the user acts as.
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.Role, AgentID: u.AgentID, CloserID: u.CloserID}
}

// PasswordResetToken is a single-use credential for resetting a password.
type PasswordResetToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token may still be redeemed at now.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
