// Package sweeper periodically deletes sessions and credential requests that
// are past their expiry. Sweeps are idempotent and safe to run concurrently
// with normal traffic; lazy expiry checks elsewhere catch anything a sweep
// misses.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "session-lifecycle/backend/internal/sweeper"

// DefaultInterval is the pause between sweeps in Run.
const DefaultInterval = time.Hour

// SessionPurger deletes expired session rows.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CredentialPurger deletes expired credential request rows.
type CredentialPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Stats reports what one sweep removed.
type Stats struct {
	SessionsDeleted    int64
	CredentialsDeleted int64
}

// Sweeper deletes expired rows from both stores on demand or on a ticker.
type Sweeper struct {
	sessions    SessionPurger
	credentials CredentialPurger
	interval    time.Duration
	now         func() time.Time

	tracer  trace.Tracer
	deleted metric.Int64Counter
}

// New returns a Sweeper over the two purgers. interval falls back to
// DefaultInterval when zero. Telemetry uses the global otel providers.
func New(sessions SessionPurger, credentials CredentialPurger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	meter := otel.Meter(instrumentationName)
	deleted, err := meter.Int64Counter("sweeper.rows_deleted",
		metric.WithDescription("Expired rows deleted by the sweeper, by table."))
	if err != nil {
		log.Printf("sweeper: register counter: %v", err)
	}
	return &Sweeper{
		sessions:    sessions,
		credentials: credentials,
		interval:    interval,
		now:         func() time.Time { return time.Now().UTC() },
		tracer:      otel.Tracer(instrumentationName),
		deleted:     deleted,
	}
}

// RunOnce deletes all sessions and credential requests whose expiry is before
// now. Idempotent: a second call with the same now deletes nothing further.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) (Stats, error) {
	ctx, span := s.tracer.Start(ctx, "sweeper.RunOnce")
	defer span.End()

	var stats Stats
	n, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		span.RecordError(err)
		return stats, fmt.Errorf("sweep sessions: %w", err)
	}
	stats.SessionsDeleted = n
	if s.deleted != nil {
		s.deleted.Add(ctx, n, metric.WithAttributes(attribute.String("table", "sessions")))
	}

	n, err = s.credentials.DeleteExpired(ctx, now)
	if err != nil {
		span.RecordError(err)
		return stats, fmt.Errorf("sweep credential requests: %w", err)
	}
	stats.CredentialsDeleted = n
	if s.deleted != nil {
		s.deleted.Add(ctx, n, metric.WithAttributes(attribute.String("table", "credential_requests")))
	}
	return stats, nil
}

// Run sweeps immediately and then on every interval tick until ctx is done.
// Sweep failures are logged and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		stats, err := s.RunOnce(ctx, s.now())
		if err != nil {
			log.Printf("sweeper: %v", err)
		} else if stats.SessionsDeleted > 0 || stats.CredentialsDeleted > 0 {
			log.Printf("sweeper: deleted %d sessions, %d credential requests",
				stats.SessionsDeleted, stats.CredentialsDeleted)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
