package domain

import "time"

// Request represents one outstanding verification code for an identifier
// (stored in credential_requests table). At most one live request exists per
// identifier; re-issuing replaces any prior row.
type Request struct {
	ID         string
	Identifier string
	CodeHash   string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}
