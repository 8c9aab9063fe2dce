// Package session creates, enumerates, evicts, and deletes session records,
// holding the count of live sessions per principal at or below a configured
// limit.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"session-lifecycle/backend/internal/audit"
	"session-lifecycle/backend/internal/platform/keymutex"
	"session-lifecycle/backend/internal/security"
	"session-lifecycle/backend/internal/session/domain"
	"session-lifecycle/backend/internal/session/repository"
)

// ErrInvariantViolation is returned when the store observes storage state
// that its own operations cannot produce (e.g. a live count at the limit but
// no evictable row). The create is retried once before this surfaces.
var ErrInvariantViolation = errors.New("session store invariant violation")

// ErrPrincipalRequired is returned when an operation is called without a
// principal id.
var ErrPrincipalRequired = errors.New("principal id is required")

const (
	// DefaultMaxSessionsPerPrincipal bounds concurrent live sessions.
	DefaultMaxSessionsPerPrincipal = 2
	// DefaultSessionTTL is the session lifetime from creation.
	DefaultSessionTTL = 30 * 24 * time.Hour
)

// Store enforces the bounded-concurrency invariant: after any completed
// CreateSession, a principal has at most the configured number of live
// sessions, and the survivors are the most recently created ones.
type Store struct {
	repo   repository.Repository
	events audit.Recorder
	limit  int
	ttl    time.Duration
	locks  *keymutex.KeyMutex
	now    func() time.Time

	// decoyHash is compared against when a lookup misses so that a wrong
	// secret and a nonexistent session are indistinguishable in timing.
	decoyHash string
}

// NewStore returns a Store backed by repo. limit and ttl fall back to the
// defaults when zero. events may be nil.
func NewStore(repo repository.Repository, events audit.Recorder, limit int, ttl time.Duration) *Store {
	if limit <= 0 {
		limit = DefaultMaxSessionsPerPrincipal
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Store{
		repo:      repo,
		events:    events,
		limit:     limit,
		ttl:       ttl,
		locks:     keymutex.New(),
		now:       func() time.Time { return time.Now().UTC() },
		decoyHash: security.HashRefreshSecret("session-store-decoy"),
	}
}

// CreateSession inserts a session for principalID holding the hash of
// refreshSecret. When the principal is at the limit, the oldest live session
// (ties broken by smallest id) is deleted first; the count check, eviction,
// and insert run as one critical section per principal, so concurrent logins
// never push the live count past the limit.
func (s *Store) CreateSession(ctx context.Context, principalID, refreshSecret, deviceLabel string) (*domain.Session, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, ErrPrincipalRequired
	}
	unlock := s.locks.Lock(principalID)
	defer unlock()

	now := s.now()
	if err := s.evictToLimit(ctx, principalID, now); err != nil {
		return nil, err
	}
	sess := &domain.Session{
		ID:                uuid.New().String(),
		PrincipalID:       principalID,
		RefreshSecretHash: security.HashRefreshSecret(refreshSecret),
		DeviceLabel:       strings.TrimSpace(deviceLabel),
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if s.events != nil {
		s.events.LogEvent(ctx, principalID, "session_created", sess.ID)
	}
	return sess, nil
}

// evictToLimit deletes oldest-first until the principal has room for one more
// live session. A count that claims the limit is reached while no live row is
// selectable indicates storage inconsistency; it is logged and the check is
// retried once before giving up.
func (s *Store) evictToLimit(ctx context.Context, principalID string, now time.Time) error {
	for attempt := 0; attempt < 2; attempt++ {
		count, err := s.repo.CountLive(ctx, principalID, now)
		if err != nil {
			return fmt.Errorf("create session: count live: %w", err)
		}
		for count >= s.limit {
			oldest, err := s.repo.OldestLive(ctx, principalID, now)
			if err != nil {
				return fmt.Errorf("create session: select eviction candidate: %w", err)
			}
			if oldest == nil {
				log.Printf("session: principal %s counts %d live sessions but none selectable; retrying", principalID, count)
				break
			}
			if err := s.repo.Delete(ctx, oldest.ID); err != nil {
				return fmt.Errorf("create session: evict %s: %w", oldest.ID, err)
			}
			if s.events != nil {
				s.events.LogEvent(ctx, principalID, "session_evicted", oldest.ID)
			}
			count--
		}
		if count < s.limit {
			return nil
		}
	}
	return ErrInvariantViolation
}

// FindBySecret resolves the session referenced by the encoded refresh secret
// and verifies the secret against the stored hash. Lookup miss and hash
// mismatch both return (nil, nil); a decoy comparison keeps the two paths
// indistinguishable in timing.
func (s *Store) FindBySecret(ctx context.Context, encodedSecret string) (*domain.Session, error) {
	sessionID, secret, err := security.DecodeRefreshSecret(encodedSecret)
	if err != nil {
		security.RefreshSecretEqual(encodedSecret, s.decoyHash)
		return nil, nil
	}
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if sess == nil {
		security.RefreshSecretEqual(secret, s.decoyHash)
		return nil, nil
	}
	if !security.RefreshSecretEqual(secret, sess.RefreshSecretHash) {
		return nil, nil
	}
	return sess, nil
}

// Rotate replaces the session's refresh secret hash with the hash of
// newSecret. The prior secret stops matching immediately.
func (s *Store) Rotate(ctx context.Context, sessionID, newSecret string) error {
	if err := s.repo.UpdateRefreshSecretHash(ctx, sessionID, security.HashRefreshSecret(newSecret)); err != nil {
		return fmt.Errorf("rotate session %s: %w", sessionID, err)
	}
	if s.events != nil {
		s.events.LogEvent(ctx, sessionID, "refresh_rotated", "")
	}
	return nil
}

// Touch updates the session's last-seen timestamp. Best-effort: failures are
// logged and never fail the caller's flow.
func (s *Store) Touch(ctx context.Context, sessionID string) {
	if err := s.repo.UpdateLastSeen(ctx, sessionID, s.now()); err != nil {
		log.Printf("session: touch %s: %v", sessionID, err)
	}
}

// Delete removes the session. Idempotent: deleting a nonexistent session is
// not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	if s.events != nil {
		s.events.LogEvent(ctx, sessionID, "session_revoked", "")
	}
	return nil
}

// DeleteAllForPrincipal removes every session of the principal. Idempotent.
func (s *Store) DeleteAllForPrincipal(ctx context.Context, principalID string) error {
	if err := s.repo.DeleteAllForPrincipal(ctx, principalID); err != nil {
		return fmt.Errorf("delete sessions for %s: %w", principalID, err)
	}
	if s.events != nil {
		s.events.LogEvent(ctx, principalID, "sessions_revoked_all", "")
	}
	return nil
}

// ListLive returns the principal's non-expired sessions, newest first, for a
// "manage your devices" view.
func (s *Store) ListLive(ctx context.Context, principalID string) ([]*domain.Session, error) {
	out, err := s.repo.ListLive(ctx, principalID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}
