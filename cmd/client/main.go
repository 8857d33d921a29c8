package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"parley/client/internal/app"
	"parley/client/internal/blob"
	"parley/client/internal/config"
	"parley/client/internal/identity"
	"parley/client/internal/logger"
	"parley/client/internal/realtime"
	"parley/client/internal/session"
	"parley/client/internal/store"
)

func main() {
	cfg := config.Load()
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	users := store.NewPostgresStore(db)

	sessions, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer sessions.Close()

	rt, err := realtime.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer rt.Close()

	blobs, err := blob.NewMinioStore(ctx, blob.MinioConfig{
		Endpoint:     cfg.MinioEndpoint,
		AccessKey:    cfg.MinioAccessKey,
		SecretKey:    cfg.MinioSecretKey,
		Bucket:       cfg.MinioBucket,
		UseSSL:       cfg.MinioUseSSL,
		ReferenceTTL: cfg.ReferenceTTL,
	})
	if err != nil {
		log.Fatalf("minio connection failed: %v", err)
	}

	provider := identity.NewService(users, sessions, cfg.JWTSecret, cfg.AccessTTL)

	term := newTerminal(os.Stdout)
	service := app.New(provider, rt, blobs, term)
	service.Start(ctx)

	if cfg.SessionToken != "" {
		// Best effort; a stale token just means signing in again.
		_ = service.Resume(ctx, cfg.SessionToken)
	}

	if err := term.Run(ctx, service); err != nil {
		log.Fatalf("terminal loop failed: %v", err)
	}
}
