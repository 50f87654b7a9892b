// Package scraper drives the acquisition runs: a budgeted unattended full
// crawl across all configured regions, and a bounded on-demand crawl for
// one region with live progress reporting.
package scraper

import (
	"context"
	"fmt"
	"time"

	"valora_backend/internal/events"
	"valora_backend/internal/funda/client"
	"valora_backend/internal/funda/domain"
	"valora_backend/internal/funda/mapper"
	"valora_backend/internal/funda/parse"
	"valora_backend/internal/funda/repository"
	"valora_backend/platform/apperr"
	"valora_backend/platform/config"
	"valora_backend/platform/logger"
)

// ProgressFunc receives human-readable progress updates during an
// on-demand crawl. It may be nil.
type ProgressFunc func(message string)

// Scraper orchestrates acquisition runs. The run-wide call budget is
// threaded as a value through every pass so a run can never leak budget
// state between regions.
type Scraper struct {
	client client.Client
	repo   repository.Repository
	bus    events.Bus
	cfg    config.ScrapeConfig
	log    *logger.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

// New creates a crawl orchestrator.
func New(cl client.Client, repo repository.Repository, bus events.Bus, cfg config.ScrapeConfig, log *logger.Logger) *Scraper {
	return &Scraper{
		client: cl,
		repo:   repo,
		bus:    bus,
		cfg:    cfg,
		log:    log,
		sleep:  sleepCtx,
		now:    time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// RunFull executes one unattended crawl: a recent pass over every region
// followed by a backfill pass, both bounded by the run-wide call budget.
// Either pass stops mid-region the moment the budget runs out.
func (s *Scraper) RunFull(ctx context.Context) error {
	regions := s.regions()
	if len(regions) == 0 {
		return apperr.Validation("no crawl regions configured")
	}

	budget := s.cfg.GetScrapeCallBudget()
	s.log.Info("full crawl starting", "regions", len(regions), "budget", budget)

	for _, region := range regions {
		if budget <= 0 {
			break
		}
		var err error
		budget, err = s.recentPass(ctx, region, budget)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.log.Error("recent pass failed", "region", region, "error", err)
		}
	}

	for _, region := range regions {
		if budget <= 0 {
			break
		}
		var err error
		budget, err = s.backfillPass(ctx, region, budget)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.log.Error("backfill pass failed", "region", region, "error", err)
		}
	}

	s.log.Info("full crawl finished", "budgetLeft", budget)
	return ctx.Err()
}

// RunLimited crawls one region up to limit listings, reporting progress
// per listing. This path never touches the persisted region cursor.
func (s *Scraper) RunLimited(ctx context.Context, region string, limit int, progress ProgressFunc) ([]domain.Listing, error) {
	if region == "" {
		return nil, apperr.Validation("region is required")
	}
	if limit < 1 {
		return nil, apperr.Validation("limit must be positive")
	}

	notify := func(message string) {
		if progress != nil {
			progress(message)
		}
	}
	notify(fmt.Sprintf("Starting search for %s...", region))

	perPage := s.cfg.GetResultsPerPage()
	if perPage < 1 {
		perPage = 15
	}
	maxPages := (limit + perPage - 1) / perPage

	var collected []domain.Listing
	for page := 1; page <= maxPages && len(collected) < limit; page++ {
		result, err := s.client.SearchListings(ctx, region, "buy", page, client.PriceRange{})
		if err != nil {
			if len(collected) > 0 {
				s.log.SourceError("funda", "search", err)
				break
			}
			return nil, err
		}
		if len(result.Listings) == 0 {
			break
		}
		notify(fmt.Sprintf("Found %d listings on page %d. Processing...", len(result.Listings), page))

		for _, summary := range result.Listings {
			if len(collected) >= limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return collected, err
			}

			listing, err := s.processListing(ctx, region, summary, unlimitedBudget())
			if err != nil {
				s.log.Error("listing processing failed", "externalId", summary.GlobalID, "error", err)
				continue
			}
			collected = append(collected, *listing)
			notify(listing.Address)
			s.sleep(ctx, s.cfg.GetListingDelay())
		}
	}

	notify(fmt.Sprintf("Done. Processed %d listings.", len(collected)))
	return collected, nil
}

// regions derives the distinct region list from the configured search
// URLs, preserving order.
func (s *Scraper) regions() []string {
	var regions []string
	seen := map[string]bool{}
	for _, rawURL := range s.cfg.GetSearchURLs() {
		region, ok := parse.Region(rawURL)
		if !ok {
			s.log.Warn("search URL carries no region, skipping", "url", rawURL)
			continue
		}
		if !seen[region] {
			seen[region] = true
			regions = append(regions, region)
		}
	}
	return regions
}

// recentPass re-polls the first pages of a region to pick up new listings
// quickly. The cursor is persisted once when the pass ends, even when the
// budget cut it short.
func (s *Scraper) recentPass(ctx context.Context, region string, budget int) (int, error) {
	cursor, err := s.repo.GetRegionCursor(ctx, region)
	if err != nil {
		return budget, err
	}

	for page := 1; page <= s.cfg.GetRecentPagesPerRegion(); page++ {
		if budget <= 0 {
			break
		}
		budget--

		s.log.ScrapeEvent("recent page", region, page, budget)
		result, err := s.client.SearchListings(ctx, region, "buy", page, client.PriceRange{})
		if err != nil {
			s.log.SourceError("funda", "search", err)
			break
		}
		if len(result.Listings) == 0 {
			break
		}

		budget = s.processPage(ctx, region, result.Listings, budget)
	}

	now := s.now()
	cursor.LastRecentScrape = &now
	if err := s.repo.SaveRegionCursor(ctx, &cursor); err != nil {
		return budget, err
	}
	return budget, ctx.Err()
}

// backfillPass walks deeper pages from the persisted cursor. An empty
// page means the region's history is exhausted and resets the cursor to
// page 1; a non-empty page advances it by exactly one.
func (s *Scraper) backfillPass(ctx context.Context, region string, budget int) (int, error) {
	cursor, err := s.repo.GetRegionCursor(ctx, region)
	if err != nil {
		return budget, err
	}
	if cursor.NextBackfillPage < 1 {
		cursor.NextBackfillPage = 1
	}

	for fetched := 0; fetched < s.cfg.GetBackfillPagesPerRegion(); fetched++ {
		if budget <= 0 {
			break
		}
		budget--

		page := cursor.NextBackfillPage
		s.log.ScrapeEvent("backfill page", region, page, budget)
		result, err := s.client.SearchListings(ctx, region, "buy", page, client.PriceRange{})
		if err != nil {
			s.log.SourceError("funda", "search", err)
			break
		}
		if len(result.Listings) == 0 {
			cursor.NextBackfillPage = 1
			break
		}

		budget = s.processPage(ctx, region, result.Listings, budget)
		cursor.NextBackfillPage = page + 1
	}

	now := s.now()
	cursor.LastBackfillScrape = &now
	if err := s.repo.SaveRegionCursor(ctx, &cursor); err != nil {
		return budget, err
	}
	return budget, ctx.Err()
}

// processPage handles every listing of one search page. A failing listing
// never aborts the page; the budget check does.
func (s *Scraper) processPage(ctx context.Context, region string, summaries []client.SearchSummary, budget int) int {
	for _, summary := range summaries {
		if budget <= 0 {
			return budget
		}
		if ctx.Err() != nil {
			return budget
		}

		b := &budget
		if _, err := s.processListing(ctx, region, summary, b); err != nil {
			s.log.Error("listing processing failed", "externalId", summary.GlobalID, "error", err)
		}
		s.sleep(ctx, s.cfg.GetListingDelay())
	}
	return budget
}

// unlimitedBudget returns a budget pointer the on-demand path uses; it
// never runs out.
func unlimitedBudget() *int {
	b := int(^uint(0) >> 1)
	return &b
}

// spend takes one call from the budget; it reports false once the budget
// is exhausted.
func spend(budget *int) bool {
	if *budget <= 0 {
		return false
	}
	*budget--
	return true
}

// processListing acquires all per-listing data the budget allows, merges
// it into the stored record and publishes the resulting domain events.
func (s *Scraper) processListing(ctx context.Context, region string, summary client.SearchSummary, budget *int) (*domain.Listing, error) {
	fresh := mapper.FromSearchSummary(summary, region)

	if spend(budget) {
		details, err := s.client.FetchListingSummary(ctx, summary.GlobalID)
		if err != nil {
			s.log.SourceError("funda", "summary", err)
		} else {
			mapper.ApplySummary(&fresh, details)
		}
	}

	if spend(budget) {
		rich, err := s.client.FetchListingDetails(ctx, fresh.URL)
		if err != nil {
			s.log.SourceError("funda", "detail", err)
		} else {
			mapper.ApplyRichPayload(&fresh, rich)
		}
	}

	if spend(budget) {
		contacts, err := s.client.FetchContactDetails(ctx, summary.GlobalID)
		if err != nil {
			s.log.SourceError("funda", "contacts", err)
		} else {
			mapper.ApplyContactDetails(&fresh, contacts)
		}
	}

	if fresh.PostalCode != nil && spend(budget) {
		fiber, err := s.client.FetchFiberAvailability(ctx, *fresh.PostalCode)
		if err != nil {
			s.log.SourceError("funda", "fiber", err)
		} else {
			mapper.ApplyFiber(&fresh, fiber)
		}
	}

	fresh.LastFetched = s.now()
	return s.store(ctx, &fresh)
}

// store persists a freshly acquired listing, recording price history and
// publishing discovery/price/status events.
func (s *Scraper) store(ctx context.Context, fresh *domain.Listing) (*domain.Listing, error) {
	existing, err := s.repo.GetByExternalID(ctx, fresh.ExternalID)
	if apperr.Is(err, apperr.KindNotFound) {
		// A listing surfaces in search results because it is for sale;
		// without an explicit status it starts as available.
		if fresh.Status == "" || fresh.Status == domain.StatusUnknown {
			fresh.Status = domain.StatusAvailable
		}
		s.markSoldAt(fresh, domain.StatusUnknown)
		if err := s.repo.Create(ctx, fresh); err != nil {
			return nil, err
		}
		if fresh.Price != nil {
			if err := s.repo.AddPriceHistory(ctx, fresh.ID, *fresh.Price); err != nil {
				s.log.DatabaseError("add price history", err)
			}
		}
		s.bus.Publish(ctx, events.ListingDiscovered{
			BaseEvent:  events.NewBaseEvent(),
			ListingID:  fresh.ID,
			ExternalID: fresh.ExternalID,
			Address:    fresh.Address,
			City:       fresh.City,
			Price:      fresh.Price,
			DetailURL:  fresh.URL,
		})
		s.log.Info("listing discovered", "externalId", fresh.ExternalID, "address", fresh.Address)
		return fresh, nil
	}
	if err != nil {
		return nil, err
	}

	oldPrice := existing.Price
	oldStatus := existing.Status

	mapper.Merge(&existing, fresh)
	existing.LastFetched = fresh.LastFetched
	s.markSoldAt(&existing, oldStatus)

	if err := s.repo.Update(ctx, &existing); err != nil {
		return nil, err
	}

	if existing.Price != nil && (oldPrice == nil || *oldPrice != *existing.Price) {
		if err := s.repo.AddPriceHistory(ctx, existing.ID, *existing.Price); err != nil {
			s.log.DatabaseError("add price history", err)
		}
		if oldPrice != nil {
			s.bus.Publish(ctx, events.ListingPriceChanged{
				BaseEvent:  events.NewBaseEvent(),
				ListingID:  existing.ID,
				ExternalID: existing.ExternalID,
				Address:    existing.Address,
				City:       existing.City,
				OldPrice:   *oldPrice,
				NewPrice:   *existing.Price,
			})
			s.log.Info("price changed", "externalId", existing.ExternalID, "oldPrice", *oldPrice, "newPrice", *existing.Price)
		}
	}

	if existing.Status != oldStatus && oldStatus != domain.StatusUnknown {
		s.bus.Publish(ctx, events.ListingStatusChanged{
			BaseEvent:  events.NewBaseEvent(),
			ListingID:  existing.ID,
			ExternalID: existing.ExternalID,
			Address:    existing.Address,
			OldStatus:  string(oldStatus),
			NewStatus:  string(existing.Status),
		})
	}

	return &existing, nil
}

// markSoldAt stamps the sold timestamp on the first transition into a
// terminal status.
func (s *Scraper) markSoldAt(listing *domain.Listing, previous domain.Status) {
	terminal := listing.Status == domain.StatusSold || listing.Status == domain.StatusRented
	wasTerminal := previous == domain.StatusSold || previous == domain.StatusRented
	if terminal && !wasTerminal && listing.SoldAt == nil {
		now := s.now()
		listing.SoldAt = &now
	}
}
