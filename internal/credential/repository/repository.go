package repository

import (
	"context"
	"time"

	"session-lifecycle/backend/internal/credential/domain"
)

// Repository defines persistence for credential requests.
type Repository interface {
	// GetByIdentifier returns the live request for identifier, or nil if none.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Request, error)
	// Create persists the request. The request must have ID set.
	Create(ctx context.Context, r *domain.Request) error
	// DeleteByIdentifier removes any request for identifier. Deleting a
	// missing row is not an error.
	DeleteByIdentifier(ctx context.Context, identifier string) error
	// DeleteExpired removes all requests with expires_at before now and
	// returns the number of rows deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
