package domain

import "time"

// Session represents one authenticated device binding for a principal
// (stored in sessions table). The refresh secret is held only as a hash;
// the session is deleted outright on logout, eviction, or expiry rather
// than flagged.
type Session struct {
	ID                string
	PrincipalID       string
	RefreshSecretHash string
	DeviceLabel       string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	LastSeenAt        *time.Time // nil until first refresh
}
