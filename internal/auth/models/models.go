// Package models defines authentication records.
package models

import "time"

// Session is a revocable server-side login record. Tokens carry the session
// ID so revocation takes effect before token expiry.
type Session struct {
	ID        string     `json:"id"`
	UserID    int64      `json:"user_id"`
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the session is usable at the given instant.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
