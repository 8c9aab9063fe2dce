package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"session-lifecycle/backend/internal/session/domain"
)

// PostgresRepository persists sessions in the sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db
// for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, principal_id, refresh_secret_hash, device_label, created_at, expires_at, last_seen_at`

// GetByID returns the session for id, or nil if not found. It returns an
// error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	const q = `
		INSERT INTO sessions (id, principal_id, refresh_secret_hash, device_label, created_at, expires_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, q,
		s.ID,
		s.PrincipalID,
		s.RefreshSecretHash,
		sql.NullString{String: s.DeviceLabel, Valid: s.DeviceLabel != ""},
		s.CreatedAt,
		s.ExpiresAt,
		timeToNullTime(s.LastSeenAt),
	)
	return err
}

// Delete removes the session with the given id. Deleting a missing row is a
// no-op.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM sessions WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// DeleteAllForPrincipal removes every session of the principal.
func (r *PostgresRepository) DeleteAllForPrincipal(ctx context.Context, principalID string) error {
	const q = `DELETE FROM sessions WHERE principal_id = $1`
	_, err := r.db.ExecContext(ctx, q, principalID)
	return err
}

// DeleteExpired removes all sessions past their expiry and returns the number
// of rows deleted.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM sessions WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountLive returns the number of non-expired sessions for the principal.
func (r *PostgresRepository) CountLive(ctx context.Context, principalID string, now time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM sessions WHERE principal_id = $1 AND expires_at > $2`
	var n int
	if err := r.db.QueryRowContext(ctx, q, principalID, now).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// OldestLive returns the live session created first for the principal, ties
// broken by smallest id; nil if the principal has no live sessions.
func (r *PostgresRepository) OldestLive(ctx context.Context, principalID string, now time.Time) (*domain.Session, error) {
	const q = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE principal_id = $1 AND expires_at > $2
		ORDER BY created_at ASC, id ASC
		LIMIT 1`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, principalID, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListLive returns non-expired sessions for the principal, newest first.
func (r *PostgresRepository) ListLive(ctx context.Context, principalID string, now time.Time) ([]*domain.Session, error) {
	const q = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE principal_id = $1 AND expires_at > $2
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, principalID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateLastSeen sets the session's last-seen timestamp for the given id.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE sessions SET last_seen_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, at)
	return err
}

// UpdateRefreshSecretHash replaces the stored refresh secret hash for the
// given id.
func (r *PostgresRepository) UpdateRefreshSecretHash(ctx context.Context, id, hash string) error {
	const q = `UPDATE sessions SET refresh_secret_hash = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, hash)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s           domain.Session
		deviceLabel sql.NullString
		lastSeenAt  sql.NullTime
	)
	err := row.Scan(&s.ID, &s.PrincipalID, &s.RefreshSecretHash, &deviceLabel, &s.CreatedAt, &s.ExpiresAt, &lastSeenAt)
	if err != nil {
		return nil, err
	}
	if deviceLabel.Valid {
		s.DeviceLabel = deviceLabel.String
	}
	s.LastSeenAt = nullTimeToPtr(lastSeenAt)
	return &s, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
