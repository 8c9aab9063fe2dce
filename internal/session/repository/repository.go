package repository

import (
	"context"
	"time"

	"session-lifecycle/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Live means expires_at is
// still in the future relative to the caller-supplied now.
type Repository interface {
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Create persists the session. The session must have ID set.
	Create(ctx context.Context, s *domain.Session) error
	// Delete removes the session. Deleting a missing row is not an error.
	Delete(ctx context.Context, id string) error
	// DeleteAllForPrincipal removes every session of the principal.
	DeleteAllForPrincipal(ctx context.Context, principalID string) error
	// DeleteExpired removes all sessions past their expiry and returns the
	// number of rows deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// CountLive returns the number of live sessions for the principal.
	CountLive(ctx context.Context, principalID string, now time.Time) (int, error)
	// OldestLive returns the live session with the smallest created_at for
	// the principal, ties broken by smallest id; nil if none.
	OldestLive(ctx context.Context, principalID string, now time.Time) (*domain.Session, error)
	// ListLive returns live sessions for the principal ordered by created_at
	// descending.
	ListLive(ctx context.Context, principalID string, now time.Time) ([]*domain.Session, error)
	// UpdateLastSeen sets the session's last-seen timestamp.
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	// UpdateRefreshSecretHash replaces the stored refresh secret hash.
	UpdateRefreshSecretHash(ctx context.Context, id, hash string) error
}
