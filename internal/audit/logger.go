package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"session-lifecycle/backend/internal/audit/domain"
	auditrepo "session-lifecycle/backend/internal/audit/repository"
)

// Recorder writes a single audit event with explicit action/detail. Used by
// the credential, session, and token code paths. LogEvent is best-effort:
// failures are logged and do not affect the caller.
type Recorder interface {
	LogEvent(ctx context.Context, subject, action, detail string)
}

// Logger implements Recorder using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	now  func() time.Time
}

// NewLogger returns a Recorder that persists to repo. repo may be nil; then
// events are dropped.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// LogEvent writes one audit event. Best-effort: errors are logged and not
// returned.
func (l *Logger) LogEvent(ctx context.Context, subject, action, detail string) {
	if l == nil || l.repo == nil {
		return
	}
	e := &domain.Event{
		ID:        uuid.New().String(),
		Subject:   subject,
		Action:    action,
		Detail:    detail,
		CreatedAt: l.now(),
	}
	if err := l.repo.Create(ctx, e); err != nil {
		log.Printf("audit: log event %s/%s: %v", action, subject, err)
	}
}
