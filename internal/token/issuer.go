// Package token mints stateless access assertions paired with long-lived
// opaque refresh secrets, and exchanges refresh secrets for fresh assertions.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"session-lifecycle/backend/internal/audit"
	"session-lifecycle/backend/internal/security"
	"session-lifecycle/backend/internal/session"
)

// Sentinel rejections for refresh. A missing, revoked, evicted, or
// wrong-secret refresh all collapse into ErrInvalidOrRevoked so callers
// cannot probe which one occurred. Storage failures are returned wrapped and
// are never one of these.
var (
	ErrInvalidOrRevoked   = errors.New("refresh secret invalid or session revoked")
	ErrSessionExpired     = errors.New("session expired")
	ErrUnknownPrincipal   = errors.New("unknown principal")
	ErrPrincipalDirectory = errors.New("principal directory unavailable")
)

// PrincipalDirectory is the read-only existence check supplied by the
// external identity store. The issuer never creates or mutates principals.
type PrincipalDirectory interface {
	PrincipalExists(ctx context.Context, principalID string) (bool, error)
}

// Pair is one issued access assertion plus the refresh secret backing it.
// Only the refresh secret's session survives server-side; the access
// assertion is stateless and expires on its own.
type Pair struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshSecret   string
	SessionID       string
	PrincipalID     string
}

// Issuer mints token pairs against the session store and rotates the refresh
// secret on every successful refresh.
type Issuer struct {
	sessions   *session.Store
	tokens     *security.TokenProvider
	principals PrincipalDirectory
	events     audit.Recorder
	now        func() time.Time
}

// NewIssuer returns an Issuer. principals may be nil, in which case principal
// existence is not checked (the caller has already authenticated the
// principal). events may be nil.
func NewIssuer(sessions *session.Store, tokens *security.TokenProvider, principals PrincipalDirectory, events audit.Recorder) *Issuer {
	return &Issuer{
		sessions:   sessions,
		tokens:     tokens,
		principals: principals,
		events:     events,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a session for principalID and returns the token pair. attrs
// are embedded in the access assertion as caller-supplied claims. The refresh
// secret carries the session id alongside the secret so refresh can locate
// the session without trusting the secret itself.
func (i *Issuer) Issue(ctx context.Context, principalID string, attrs map[string]string, deviceLabel string) (*Pair, error) {
	if i.principals != nil {
		ok, err := i.principals.PrincipalExists(ctx, principalID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPrincipalDirectory, err)
		}
		if !ok {
			return nil, ErrUnknownPrincipal
		}
	}
	secret, err := security.GenerateRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	sess, err := i.sessions.CreateSession(ctx, principalID, secret, deviceLabel)
	if err != nil {
		return nil, err
	}
	access, _, accessExp, err := i.tokens.IssueAccess(principalID, attrs)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: sign access: %w", err)
	}
	return &Pair{
		AccessToken:     access,
		AccessExpiresAt: accessExp,
		RefreshSecret:   security.EncodeRefreshSecret(sess.ID, secret),
		SessionID:       sess.ID,
		PrincipalID:     principalID,
	}, nil
}

// Refresh exchanges a refresh secret for a fresh access assertion. The
// refresh secret is rotated: the returned pair carries a new secret and the
// presented one stops working immediately. A session past its expiry is
// deleted and rejected; revocation of the backing session is the only way to
// stop refresh before then.
func (i *Issuer) Refresh(ctx context.Context, refreshSecret string) (*Pair, error) {
	sess, err := i.sessions.FindBySecret(ctx, refreshSecret)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		if i.events != nil {
			i.events.LogEvent(ctx, "", "refresh_rejected", "invalid_or_revoked")
		}
		return nil, ErrInvalidOrRevoked
	}
	if i.now().After(sess.ExpiresAt) {
		if err := i.sessions.Delete(ctx, sess.ID); err != nil {
			return nil, err
		}
		if i.events != nil {
			i.events.LogEvent(ctx, sess.PrincipalID, "refresh_rejected", "expired")
		}
		return nil, ErrSessionExpired
	}
	i.sessions.Touch(ctx, sess.ID)
	newSecret, err := security.GenerateRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if err := i.sessions.Rotate(ctx, sess.ID, newSecret); err != nil {
		return nil, err
	}
	access, _, accessExp, err := i.tokens.IssueAccess(sess.PrincipalID, nil)
	if err != nil {
		return nil, fmt.Errorf("refresh: sign access: %w", err)
	}
	return &Pair{
		AccessToken:     access,
		AccessExpiresAt: accessExp,
		RefreshSecret:   security.EncodeRefreshSecret(sess.ID, newSecret),
		SessionID:       sess.ID,
		PrincipalID:     sess.PrincipalID,
	}, nil
}

// Revoke deletes the backing session. Already-issued access assertions stay
// valid until their natural expiry; keep the access TTL short where that
// window matters.
func (i *Issuer) Revoke(ctx context.Context, sessionID string) error {
	return i.sessions.Delete(ctx, sessionID)
}

// RevokeAll deletes every session of the principal.
func (i *Issuer) RevokeAll(ctx context.Context, principalID string) error {
	return i.sessions.DeleteAllForPrincipal(ctx, principalID)
}
