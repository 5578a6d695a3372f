package domain

import "time"

// Session describes a verified session token.
type Session struct {
	UserID    string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}
