// Package credential issues and verifies short-lived single-use verification
// codes bound to an identifier (e.g. a normalized phone number). Delivery of
// the raw code is the caller's concern.
package credential

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"session-lifecycle/backend/internal/audit"
	"session-lifecycle/backend/internal/credential/domain"
	"session-lifecycle/backend/internal/credential/repository"
	"session-lifecycle/backend/internal/platform/keymutex"
	"session-lifecycle/backend/internal/security"
)

// Sentinel rejections for code verification. Callers facing end users should
// collapse all three into one generic "invalid code" message; the audit trail
// keeps the precise reason. Storage failures are returned wrapped and are
// never one of these.
var (
	ErrCodeNotFound     = errors.New("no verification code outstanding")
	ErrCodeExpired      = errors.New("verification code expired")
	ErrCodeMismatch     = errors.New("verification code mismatch")
	ErrIdentifierNeeded = errors.New("identifier is required")
)

const (
	// DefaultCodeLength is the number of digits in a verification code.
	DefaultCodeLength = 6
	// DefaultCodeTTL is how long an issued code stays verifiable.
	DefaultCodeTTL = 5 * time.Minute
)

// Issuer generates, stores (hashed), and verifies verification codes,
// keeping at most one live request per identifier.
type Issuer struct {
	repo       repository.Repository
	hasher     *security.Hasher
	events     audit.Recorder
	codeLength int
	ttl        time.Duration
	locks      *keymutex.KeyMutex
	now        func() time.Time
}

// NewIssuer returns an Issuer backed by repo and hasher. codeLength and ttl
// fall back to the defaults when zero. events may be nil.
func NewIssuer(repo repository.Repository, hasher *security.Hasher, events audit.Recorder, codeLength int, ttl time.Duration) *Issuer {
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &Issuer{
		repo:       repo,
		hasher:     hasher,
		events:     events,
		codeLength: codeLength,
		ttl:        ttl,
		locks:      keymutex.New(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// IssueCode generates a fresh numeric code for identifier, replaces any prior
// outstanding request, and returns the raw code for out-of-band delivery.
// After it returns, exactly one live request exists for the identifier.
func (i *Issuer) IssueCode(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", ErrIdentifierNeeded
	}
	unlock := i.locks.Lock(identifier)
	defer unlock()

	code, err := generateCode(i.codeLength)
	if err != nil {
		return "", fmt.Errorf("issue code: %w", err)
	}
	hash, err := i.hasher.Hash([]byte(code))
	if err != nil {
		return "", fmt.Errorf("issue code: %w", err)
	}
	if err := i.repo.DeleteByIdentifier(ctx, identifier); err != nil {
		return "", fmt.Errorf("issue code: replace prior request: %w", err)
	}
	now := i.now()
	req := &domain.Request{
		ID:         uuid.New().String(),
		Identifier: identifier,
		CodeHash:   hash,
		ExpiresAt:  now.Add(i.ttl),
		CreatedAt:  now,
	}
	if err := i.repo.Create(ctx, req); err != nil {
		return "", fmt.Errorf("issue code: %w", err)
	}
	if i.events != nil {
		i.events.LogEvent(ctx, identifier, "code_issued", "")
	}
	return code, nil
}

// VerifyCode checks candidate against the outstanding request for identifier.
// On success the request is consumed (single-use). A mismatch leaves the
// request in place so the caller may retry until expiry; an expired request
// is deleted regardless of whether candidate would have matched.
func (i *Issuer) VerifyCode(ctx context.Context, identifier, candidate string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ErrIdentifierNeeded
	}
	unlock := i.locks.Lock(identifier)
	defer unlock()

	req, err := i.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		return fmt.Errorf("verify code: %w", err)
	}
	if req == nil {
		i.reject(ctx, identifier, "not_found")
		return ErrCodeNotFound
	}
	if i.now().After(req.ExpiresAt) {
		if err := i.repo.DeleteByIdentifier(ctx, identifier); err != nil {
			return fmt.Errorf("verify code: drop expired request: %w", err)
		}
		i.reject(ctx, identifier, "expired")
		return ErrCodeExpired
	}
	if err := i.hasher.Compare(req.CodeHash, []byte(candidate)); err != nil {
		i.reject(ctx, identifier, "mismatch")
		return ErrCodeMismatch
	}
	if err := i.repo.DeleteByIdentifier(ctx, identifier); err != nil {
		return fmt.Errorf("verify code: consume request: %w", err)
	}
	if i.events != nil {
		i.events.LogEvent(ctx, identifier, "code_verified", "")
	}
	return nil
}

func (i *Issuer) reject(ctx context.Context, identifier, reason string) {
	if i.events != nil {
		i.events.LogEvent(ctx, identifier, "code_rejected", reason)
	}
}

// generateCode returns an n-digit numeric code string (e.g. "482913") using
// crypto/rand for randomness.
func generateCode(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := make([]byte, n)
	for i := 0; i < n; i++ {
		s[i] = '0' + (b[i] % 10)
	}
	return string(s), nil
}
