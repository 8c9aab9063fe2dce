package domain

import "time"

// Event is one recorded lifecycle transition (stored in audit_events table).
// Subject is the principal id for session events and the normalized
// identifier for credential events. Detail carries the precise internal
// reason that callers only see in collapsed form.
type Event struct {
	ID        string
	Subject   string
	Action    string
	Detail    string
	CreatedAt time.Time
}
