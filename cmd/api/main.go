package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"valora_backend/internal/enrichment"
	"valora_backend/internal/events"
	"valora_backend/internal/funda"
	apphttp "valora_backend/internal/http"
	"valora_backend/internal/http/router"
	"valora_backend/internal/notification"
	"valora_backend/internal/scheduler"
	"valora_backend/migrations"
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
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	redisClient := newRedisClient(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	fundaModule := funda.NewModule(pool, eventBus, cfg, val, log)
	defer fundaModule.Close(ctx)

	enrichmentModule := enrichment.NewModule(redisClient, fundaModule.Repository(), cfg, val, log)

	// Price-drop alerts fire for crawls run in this process too (the
	// on-demand scrape endpoint publishes the same events).
	notifier := notification.NewNotifier(cfg, log)
	notifier.Subscribe(eventBus)

	// New listings found here are archived by the worker; the API only
	// enqueues.
	wireMediaQueue(cfg, eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			fundaModule,
			enrichmentModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// newRedisClient builds the shared cache client, or nil when redis is
// not configured. A nil client disables the report cache only.
func newRedisClient(cfg *config.Config, log *logger.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not configured; report caching disabled")
		return nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("invalid REDIS_URL; report caching disabled", "error", err)
		return nil
	}
	return redis.NewClient(opt)
}

// wireMediaQueue enqueues a media-archive job for every discovered
// listing when the job queue is configured.
func wireMediaQueue(cfg *config.Config, bus events.Bus, log *logger.Logger) {
	if cfg.RedisURL == "" || !cfg.IsMediaArchiveEnabled() {
		return
	}
	queueClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize job queue client", "error", err)
		return
	}

	bus.Subscribe(events.ListingDiscovered{}.EventName(), events.HandlerFunc(
		func(ctx context.Context, event events.Event) error {
			discovered, ok := event.(events.ListingDiscovered)
			if !ok {
				return nil
			}
			return queueClient.EnqueueMediaArchive(ctx, scheduler.MediaArchivePayload{
				ListingID: discovered.ListingID.String(),
			})
		}))
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
