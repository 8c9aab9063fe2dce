package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"session-lifecycle/backend/internal/credential/domain"
)

// PostgresRepository persists credential requests in the credential_requests
// table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a credential request repository that uses the
// given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByIdentifier returns the request for identifier, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Request, error) {
	const q = `
		SELECT id, identifier, code_hash, expires_at, created_at
		FROM credential_requests
		WHERE identifier = $1`
	var req domain.Request
	err := r.db.QueryRowContext(ctx, q, identifier).Scan(
		&req.ID, &req.Identifier, &req.CodeHash, &req.ExpiresAt, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// Create persists the request to the database. The request must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, req *domain.Request) error {
	const q = `
		INSERT INTO credential_requests (id, identifier, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, q,
		req.ID, req.Identifier, req.CodeHash, req.ExpiresAt, req.CreatedAt,
	)
	return err
}

// DeleteByIdentifier removes any request for identifier. Deleting a missing
// row is a no-op.
func (r *PostgresRepository) DeleteByIdentifier(ctx context.Context, identifier string) error {
	const q = `DELETE FROM credential_requests WHERE identifier = $1`
	_, err := r.db.ExecContext(ctx, q, identifier)
	return err
}

// DeleteExpired removes all requests past their expiry and returns the number
// of rows deleted.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM credential_requests WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
