// Package scheduler runs the background jobs: scheduled full crawls,
// on-demand region crawls and listing media archiving, all through an
// asynq (redis) queue.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskScrapeFull = "scrape:full"

const TaskScrapeRegion = "scrape:region"

const TaskMediaArchive = "media:archive"

// ScrapeRegionPayload crawls one region up to a listing limit.
type ScrapeRegionPayload struct {
	Region string `json:"region"`
	Limit  int    `json:"limit"`
}

// MediaArchivePayload archives the photos of one stored listing.
type MediaArchivePayload struct {
	ListingID string `json:"listingId"`
}

func NewScrapeFullTask() *asynq.Task {
	return asynq.NewTask(TaskScrapeFull, nil)
}

func NewScrapeRegionTask(payload ScrapeRegionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScrapeRegion, data), nil
}

func ParseScrapeRegionPayload(task *asynq.Task) (ScrapeRegionPayload, error) {
	var payload ScrapeRegionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScrapeRegionPayload{}, err
	}
	return payload, nil
}

func NewMediaArchiveTask(payload MediaArchivePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMediaArchive, data), nil
}

func ParseMediaArchivePayload(task *asynq.Task) (MediaArchivePayload, error) {
	var payload MediaArchivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MediaArchivePayload{}, err
	}
	return payload, nil
}
