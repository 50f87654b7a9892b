// Package media archives listing photos to object storage so reports
// keep their imagery after a listing goes offline.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"valora_backend/internal/events"
	fundadomain "valora_backend/internal/funda/domain"
	"valora_backend/platform/config"
	"valora_backend/platform/logger"
)

const downloadTimeout = 30 * time.Second

// ListingSource provides stored listings by id.
type ListingSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (fundadomain.Listing, error)
}

// Archiver copies a listing's photos into the media bucket. A disabled
// archiver (no MinIO configured) accepts every call as a no-op so
// callers need no storage-configured branch.
type Archiver struct {
	client     *minio.Client
	httpClient *http.Client
	bucket     string
	listings   ListingSource
	log        *logger.Logger
}

// NewArchiver creates a media archiver. Returns a disabled archiver when
// object storage is not configured.
func NewArchiver(cfg config.MediaConfig, listings ListingSource, log *logger.Logger) (*Archiver, error) {
	archiver := &Archiver{
		httpClient: &http.Client{Timeout: downloadTimeout},
		listings:   listings,
		log:        log.WithSource("media"),
	}
	if !cfg.IsMediaArchiveEnabled() {
		log.Info("media archiving disabled, object storage not configured")
		return archiver, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	archiver.client = client
	archiver.bucket = cfg.GetMediaBucket()
	return archiver, nil
}

// Enabled reports whether object storage is configured.
func (a *Archiver) Enabled() bool {
	return a.client != nil
}

// EnsureBucket creates the media bucket when missing.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	if !a.Enabled() {
		return nil
	}
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// ArchiveListing archives all photos of a stored listing.
func (a *Archiver) ArchiveListing(ctx context.Context, listingID uuid.UUID) error {
	if !a.Enabled() {
		return nil
	}
	listing, err := a.listings.GetByID(ctx, listingID)
	if err != nil {
		return fmt.Errorf("load listing %s: %w", listingID, err)
	}
	return a.Archive(ctx, listing.ExternalID, listing.MediaURLs)
}

// Archive downloads each media URL and stores it under the listing's
// external id. Already-archived objects are skipped, so re-running after
// a partial failure only fetches what is missing. Per-object failures
// are logged and counted, not fatal.
func (a *Archiver) Archive(ctx context.Context, externalID int64, mediaURLs []string) error {
	if !a.Enabled() || len(mediaURLs) == 0 {
		return nil
	}

	var stored, skipped, failed int
	for i, mediaURL := range mediaURLs {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := ObjectKey(externalID, i)
		if a.objectExists(ctx, key) {
			skipped++
			continue
		}
		if err := a.storeObject(ctx, key, mediaURL); err != nil {
			a.log.Warn("photo archive failed", "external_id", externalID, "url", mediaURL, "error", err)
			failed++
			continue
		}
		stored++
	}

	a.log.Info("listing media archived",
		"external_id", externalID, "stored", stored, "skipped", skipped, "failed", failed)
	if failed > 0 && stored == 0 && skipped == 0 {
		return fmt.Errorf("all %d photo downloads failed for listing %d", failed, externalID)
	}
	return nil
}

// HandleDiscovered archives photos when a new listing is stored.
func (a *Archiver) HandleDiscovered(ctx context.Context, event events.Event) error {
	discovered, ok := event.(events.ListingDiscovered)
	if !ok {
		return nil
	}
	return a.ArchiveListing(ctx, discovered.ListingID)
}

// Subscribe attaches the archiver to the event bus.
func (a *Archiver) Subscribe(bus events.Bus) {
	if !a.Enabled() {
		return
	}
	bus.Subscribe(events.ListingDiscovered{}.EventName(), events.HandlerFunc(a.HandleDiscovered))
}

// ObjectKey is the bucket path of one listing photo.
func ObjectKey(externalID int64, index int) string {
	return fmt.Sprintf("%d/%d.jpg", externalID, index)
}

func (a *Archiver) objectExists(ctx context.Context, key string) bool {
	_, err := a.client.StatObject(ctx, a.bucket, key, minio.StatObjectOptions{})
	return err == nil
}

func (a *Archiver) storeObject(ctx context.Context, key, mediaURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New("status " + resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	// -1 streams with unknown length; the site does not always send
	// Content-Length on media responses.
	size := resp.ContentLength
	var body io.Reader = resp.Body
	_, err = a.client.PutObject(ctx, a.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}
