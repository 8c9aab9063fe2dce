// Worker runs the expiry sweeper: it periodically deletes sessions and
// credential requests past their expiry. Set DATABASE_URL; SWEEP_INTERVAL and
// OTLP_ENDPOINT are optional.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"session-lifecycle/backend/internal/config"
	credentialrepo "session-lifecycle/backend/internal/credential/repository"
	"session-lifecycle/backend/internal/db"
	sessionrepo "session-lifecycle/backend/internal/session/repository"
	"session-lifecycle/backend/internal/sweeper"
	"session-lifecycle/backend/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "session-lifecycle-worker", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("worker: telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("worker: open database: %v", err)
	}
	defer database.Close()

	sw := sweeper.New(
		sessionrepo.NewPostgresRepository(database),
		credentialrepo.NewPostgresRepository(database),
		cfg.SweepInterval(),
	)

	log.Printf("worker: sweeping every %s", cfg.SweepInterval())
	if err := sw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker: %v", err)
	}
	log.Println("worker: stopped")
}
