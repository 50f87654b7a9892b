package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"valora_backend/internal/events"
	"valora_backend/internal/funda"
	"valora_backend/internal/media"
	"valora_backend/internal/notification"
	"valora_backend/internal/scheduler"
	"valora_backend/platform/config"
	"valora_backend/platform/db"
	"valora_backend/platform/logger"
	"valora_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scrape worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	fundaModule := funda.NewModule(pool, eventBus, cfg, val, log)
	defer fundaModule.Close(ctx)

	archiver, err := media.NewArchiver(cfg, fundaModule.Repository(), log)
	if err != nil {
		log.Error("failed to initialize media archiver", "error", err)
		panic("failed to initialize media archiver: " + err.Error())
	}
	if archiver.Enabled() {
		if err := withRetry(ctx, log, "ensure media bucket", 5, 2*time.Second, func() error {
			return archiver.EnsureBucket(ctx)
		}); err != nil {
			log.Error("failed to ensure media bucket", "error", err)
			panic("failed to ensure media bucket: " + err.Error())
		}
		// Listings found by crawls in this process are archived directly.
		archiver.Subscribe(eventBus)
	}

	notifier := notification.NewNotifier(cfg, log)
	notifier.Subscribe(eventBus)

	worker, err := scheduler.NewWorker(cfg, fundaModule.Scraper(), archiver, log)
	if err != nil {
		log.Error("failed to initialize job worker", "error", err)
		panic("failed to initialize job worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
