package repository

import (
	"context"
	"database/sql"

	"session-lifecycle/backend/internal/audit/domain"
)

// PostgresRepository persists audit events in the audit_events table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit event repository that uses the given
// db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the event to the database. The event must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	const q = `
		INSERT INTO audit_events (id, subject, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.Subject, e.Action, e.Detail, e.CreatedAt)
	return err
}
