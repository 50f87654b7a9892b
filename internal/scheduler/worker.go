package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	fundadomain "valora_backend/internal/funda/domain"
	"valora_backend/internal/funda/scraper"
	"valora_backend/platform/config"
	"valora_backend/platform/logger"
)

// Crawler runs listing crawls.
type Crawler interface {
	RunFull(ctx context.Context) error
	RunLimited(ctx context.Context, region string, limit int, progress scraper.ProgressFunc) ([]fundadomain.Listing, error)
}

// MediaArchiver archives a stored listing's photos.
type MediaArchiver interface {
	ArchiveListing(ctx context.Context, listingID uuid.UUID) error
}

// Worker consumes the job queue and keeps the periodic full crawl
// registered.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	crawler   Crawler
	media     MediaArchiver
	log       *logger.Logger
}

// WorkerConfig combines the config interfaces the worker needs.
type WorkerConfig interface {
	config.SchedulerConfig
	config.ScrapeConfig
}

// NewWorker creates the job worker and registers the periodic full
// crawl at the configured interval.
func NewWorker(cfg WorkerConfig, crawler Crawler, media MediaArchiver, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := queueName(cfg)
	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	interval := cfg.GetScrapeInterval()
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	periodic := asynq.NewScheduler(opt, nil)
	if _, err := periodic.Register(
		fmt.Sprintf("@every %s", interval),
		NewScrapeFullTask(),
		asynq.Queue(queue),
	); err != nil {
		return nil, fmt.Errorf("register periodic crawl: %w", err)
	}

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: periodic,
		mux:       mux,
		crawler:   crawler,
		media:     media,
		log:       log,
	}

	mux.HandleFunc(TaskScrapeFull, w.handleScrapeFull)
	mux.HandleFunc(TaskScrapeRegion, w.handleScrapeRegion)
	mux.HandleFunc(TaskMediaArchive, w.handleMediaArchive)

	return w, nil
}

// Run serves the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.log.Error("periodic scheduler stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("job worker stopped", "error", err)
	}
}

func (w *Worker) handleScrapeFull(ctx context.Context, _ *asynq.Task) error {
	w.log.Info("scheduled full crawl starting")
	return w.crawler.RunFull(ctx)
}

func (w *Worker) handleScrapeRegion(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScrapeRegionPayload(task)
	if err != nil {
		return err
	}
	if payload.Region == "" || payload.Limit < 1 {
		w.log.Warn("discarding malformed region crawl task", "payload", string(task.Payload()))
		return nil
	}

	listings, err := w.crawler.RunLimited(ctx, payload.Region, payload.Limit, func(message string) {
		w.log.Info("region crawl progress", "region", payload.Region, "message", message)
	})
	if err != nil {
		return err
	}
	w.log.Info("region crawl finished", "region", payload.Region, "listings", len(listings))
	return nil
}

func (w *Worker) handleMediaArchive(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMediaArchivePayload(task)
	if err != nil {
		return err
	}
	listingID, err := uuid.Parse(payload.ListingID)
	if err != nil {
		w.log.Warn("discarding malformed media task", "payload", string(task.Payload()))
		return nil
	}
	return w.media.ArchiveListing(ctx, listingID)
}
