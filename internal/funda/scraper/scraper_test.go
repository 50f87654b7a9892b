package scraper

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"valora_backend/internal/events"
	"valora_backend/internal/funda/client"
	"valora_backend/internal/funda/domain"
	"valora_backend/internal/funda/repository"
	"valora_backend/platform/apperr"
	"valora_backend/platform/logger"
)

// fakeConfig satisfies config.ScrapeConfig for tests.
type fakeConfig struct {
	searchURLs    []string
	budget        int
	recentPages   int
	backfillPages int
	resultsPage   int
}

func (c fakeConfig) GetSearchURLs() []string             { return c.searchURLs }
func (c fakeConfig) GetScrapeCallBudget() int            { return c.budget }
func (c fakeConfig) GetRecentPagesPerRegion() int        { return c.recentPages }
func (c fakeConfig) GetBackfillPagesPerRegion() int      { return c.backfillPages }
func (c fakeConfig) GetResultsPerPage() int              { return c.resultsPage }
func (c fakeConfig) GetMinRequestInterval() time.Duration { return 0 }
func (c fakeConfig) GetListingDelay() time.Duration      { return 0 }
func (c fakeConfig) GetScrapeInterval() time.Duration    { return time.Hour }
func (c fakeConfig) GetBrowserExecPath() string          { return "" }
func (c fakeConfig) IsBrowserFallbackEnabled() bool      { return false }

type searchCall struct {
	region string
	page   int
}

// fakeClient serves canned pages per region.
type fakeClient struct {
	pages     map[string][][]client.SearchSummary
	summaries map[int64]*client.ListingSummary

	searchCalls []searchCall
}

func (f *fakeClient) SearchListings(_ context.Context, region, _ string, page int, _ client.PriceRange) (*client.SearchResult, error) {
	f.searchCalls = append(f.searchCalls, searchCall{region: region, page: page})
	regionPages := f.pages[region]
	if page < 1 || page > len(regionPages) {
		return &client.SearchResult{}, nil
	}
	return &client.SearchResult{Listings: regionPages[page-1]}, nil
}

func (f *fakeClient) FetchListingSummary(_ context.Context, globalID int64) (*client.ListingSummary, error) {
	if s, ok := f.summaries[globalID]; ok {
		return s, nil
	}
	return nil, apperr.Unavailable("summary unavailable")
}

func (f *fakeClient) FetchListingDetails(context.Context, string) (*client.RichListingData, error) {
	return nil, nil
}

func (f *fakeClient) FetchContactDetails(context.Context, int64) (*client.ContactDetails, error) {
	return nil, apperr.Unavailable("contacts unavailable")
}

func (f *fakeClient) FetchFiberAvailability(context.Context, string) (*client.FiberAvailability, error) {
	return nil, apperr.Unavailable("fiber unavailable")
}

// fakeRepo is an in-memory repository.
type fakeRepo struct {
	mu       sync.Mutex
	byExtID  map[int64]domain.Listing
	cursors  map[string]domain.RegionCursor
	saves    []domain.RegionCursor
	history  map[uuid.UUID][]float64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byExtID: map[int64]domain.Listing{},
		cursors: map[string]domain.RegionCursor{},
		history: map[uuid.UUID][]float64{},
	}
}

func (r *fakeRepo) Create(_ context.Context, l *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	r.byExtID[l.ExternalID] = *l
	return nil
}

func (r *fakeRepo) Update(_ context.Context, l *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.UpdatedAt = time.Now()
	r.byExtID[l.ExternalID] = *l
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.byExtID {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Listing{}, apperr.NotFound("listing not found")
}

func (r *fakeRepo) GetByExternalID(_ context.Context, externalID int64) (domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.byExtID[externalID]; ok {
		return l, nil
	}
	return domain.Listing{}, apperr.NotFound("listing not found")
}

func (r *fakeRepo) List(context.Context, repository.ListParams) ([]domain.Listing, int, error) {
	return nil, 0, nil
}

func (r *fakeRepo) AddPriceHistory(_ context.Context, listingID uuid.UUID, price float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[listingID] = append(r.history[listingID], price)
	return nil
}

func (r *fakeRepo) ListPriceHistory(_ context.Context, listingID uuid.UUID) ([]domain.PriceHistoryEntry, error) {
	return nil, nil
}

func (r *fakeRepo) GetRegionCursor(_ context.Context, region string) (domain.RegionCursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cursors[region]; ok {
		return c, nil
	}
	c := domain.RegionCursor{ID: uuid.New(), Region: region, NextBackfillPage: 1}
	r.cursors[region] = c
	return c, nil
}

func (r *fakeRepo) SaveRegionCursor(_ context.Context, cursor *domain.RegionCursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[cursor.Region] = *cursor
	r.saves = append(r.saves, *cursor)
	return nil
}

// fakeBus records published events synchronously.
type fakeBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *fakeBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *fakeBus) Subscribe(string, events.Handler) {}

func (b *fakeBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

func summaryRow(globalID int64, price, address string) client.SearchSummary {
	return client.SearchSummary{
		GlobalID:  globalID,
		PriceText: price,
		DetailURL: fmt.Sprintf("/detail/koop/amsterdam/huis-%d-adres/", globalID),
		Address:   address,
		City:      "Amsterdam",
	}
}

func newTestScraper(cl client.Client, repo repository.Repository, bus events.Bus, cfg fakeConfig) *Scraper {
	s := New(cl, repo, bus, cfg, logger.New("development"))
	s.sleep = func(context.Context, time.Duration) {}
	return s
}

func TestRunFull_StoresListingsWithPricesAndHistory(t *testing.T) {
	cl := &fakeClient{
		pages: map[string][][]client.SearchSummary{
			"amsterdam": {{
				summaryRow(101, "€ 500.000 k.k.", "Prinsengracht 1"),
				summaryRow(102, "€ 600.000 k.k.", "Keizersgracht 2"),
			}},
		},
		summaries: map[int64]*client.ListingSummary{},
	}
	repo := newFakeRepo()
	bus := &fakeBus{}
	cfg := fakeConfig{
		searchURLs:    []string{"https://www.funda.nl/koop/amsterdam/"},
		budget:        100,
		recentPages:   1,
		backfillPages: 0,
		resultsPage:   15,
	}

	if err := newTestScraper(cl, repo, bus, cfg).RunFull(context.Background()); err != nil {
		t.Fatalf("RunFull: %v", err)
	}

	first, err := repo.GetByExternalID(context.Background(), 101)
	if err != nil {
		t.Fatalf("listing 101 not stored: %v", err)
	}
	if first.Price == nil || *first.Price != 500000 {
		t.Fatalf("listing 101 price = %v", first.Price)
	}
	second, err := repo.GetByExternalID(context.Background(), 102)
	if err != nil {
		t.Fatalf("listing 102 not stored: %v", err)
	}
	if second.Price == nil || *second.Price != 600000 {
		t.Fatalf("listing 102 price = %v", second.Price)
	}

	if got := len(repo.history[first.ID]); got != 1 {
		t.Fatalf("price history entries for 101 = %d", got)
	}
	if got := len(bus.named("listings.discovered")); got != 2 {
		t.Fatalf("discovered events = %d", got)
	}
}

func TestRunFull_NewListingDefaultsToAvailable(t *testing.T) {
	// The summary endpoint is down, so the search row carries no status.
	cl := &fakeClient{
		pages: map[string][][]client.SearchSummary{
			"amsterdam": {{summaryRow(101, "€ 500.000 k.k.", "Prinsengracht 1")}},
		},
		summaries: map[int64]*client.ListingSummary{},
	}
	repo := newFakeRepo()
	cfg := fakeConfig{
		searchURLs:  []string{"https://www.funda.nl/koop/amsterdam/"},
		budget:      100,
		recentPages: 1,
		resultsPage: 15,
	}

	if err := newTestScraper(cl, repo, &fakeBus{}, cfg).RunFull(context.Background()); err != nil {
		t.Fatalf("RunFull: %v", err)
	}

	stored, err := repo.GetByExternalID(context.Background(), 101)
	if err != nil {
		t.Fatalf("listing not stored: %v", err)
	}
	if stored.Status != domain.StatusAvailable {
		t.Fatalf("status = %q, want %q", stored.Status, domain.StatusAvailable)
	}
	if stored.SoldAt != nil {
		t.Fatalf("SoldAt = %v, want nil", stored.SoldAt)
	}
}

func TestRunFull_BudgetExhaustionStopsMidRegionButPersistsCursor(t *testing.T) {
	cl := &fakeClient{
		pages: map[string][][]client.SearchSummary{
			"amsterdam": {
				{summaryRow(201, "€ 500.000", "Adres 1"), summaryRow(202, "€ 510.000", "Adres 2")},
				{summaryRow(203, "€ 520.000", "Adres 3")},
			},
		},
	}
	repo := newFakeRepo()
	bus := &fakeBus{}
	cfg := fakeConfig{
		searchURLs:    []string{"https://www.funda.nl/koop/amsterdam/"},
		budget:        3,
		recentPages:   2,
		backfillPages: 3,
		resultsPage:   15,
	}

	if err := newTestScraper(cl, repo, bus, cfg).RunFull(context.Background()); err != nil {
		t.Fatalf("RunFull: %v", err)
	}

	// Budget 3: one search call plus two per-listing calls for the first
	// listing. The second listing and second page never get fetched.
	if len(cl.searchCalls) != 1 {
		t.Fatalf("search calls = %d, want 1", len(cl.searchCalls))
	}
	if _, err := repo.GetByExternalID(context.Background(), 202); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatal("second listing must not be processed after budget exhaustion")
	}

	// The cursor is still persisted exactly once for the cut-short pass.
	if len(repo.saves) != 1 {
		t.Fatalf("cursor saves = %d, want 1", len(repo.saves))
	}
	if repo.saves[0].LastRecentScrape == nil {
		t.Fatal("recent pass must stamp LastRecentScrape even when cut short")
	}
}

func TestBackfillPass_AdvancesCursorPerNonEmptyPage(t *testing.T) {
	cl := &fakeClient{
		pages: map[string][][]client.SearchSummary{
			"utrecht": {
				{summaryRow(301, "€ 400.000", "Adres 1")},
				{summaryRow(302, "€ 410.000", "Adres 2")},
				{summaryRow(303, "€ 420.000", "Adres 3")},
			},
		},
	}
	repo := newFakeRepo()
	cfg := fakeConfig{
		searchURLs:    []string{"https://www.funda.nl/koop/utrecht/"},
		budget:        100,
		recentPages:   0,
		backfillPages: 2,
		resultsPage:   15,
	}

	if err := newTestScraper(cl, repo, &fakeBus{}, cfg).RunFull(context.Background()); err != nil {
		t.Fatalf("RunFull: %v", err)
	}

	cursor := repo.cursors["utrecht"]
	if cursor.NextBackfillPage != 3 {
		t.Fatalf("NextBackfillPage = %d, want 3 after two non-empty pages", cursor.NextBackfillPage)
	}
	if cursor.LastBackfillScrape == nil {
		t.Fatal("LastBackfillScrape must be stamped")
	}
}

func TestBackfillPass_EmptyPageResetsCursor(t *testing.T) {
	cl := &fakeClient{
		pages: map[string][][]client.SearchSummary{
			"utrecht": {
				{summaryRow(401, "€ 400.000", "Adres 1")},
			},
		},
	}
	repo := newFakeRepo()
	// Start the cursor past the last page so the first backfill fetch
	// comes back empty.
	repo.cursors["utrecht"] = domain.RegionCursor{ID: uuid.New(), Region: "utrecht", NextBackfillPage: 5}

	cfg := fakeConfig{
		searchURLs:    []string{"https://www.funda.nl/koop/utrecht/"},
		budget:        100,
		recentPages:   0,
		backfillPages: 3,
		resultsPage:   15,
	}

	if err := newTestScraper(cl, repo, &fakeBus{}, cfg).RunFull(context.Background()); err != nil {
		t.Fatalf("RunFull: %v", err)
	}

	if got := repo.cursors["utrecht"].NextBackfillPage; got != 1 {
		t.Fatalf("NextBackfillPage = %d, want reset to 1 on empty page", got)
	}
}

func TestRunFull_PriceChangeRecordsHistoryAndEvent(t *testing.T) {
	cl := &fakeClient{
		pages: map[string][][]client.SearchSummary{
			"amsterdam": {{summaryRow(501, "€ 550.000 k.k.", "Herengracht 5")}},
		},
	}
	repo := newFakeRepo()
	oldPrice := 500000.0
	seeded := domain.Listing{
		ID:         uuid.New(),
		ExternalID: 501,
		Address:    "Herengracht 5",
		City:       "Amsterdam",
		Price:      &oldPrice,
		Status:     domain.StatusAvailable,
	}
	repo.byExtID[501] = seeded

	bus := &fakeBus{}
	cfg := fakeConfig{
		searchURLs:  []string{"https://www.funda.nl/koop/amsterdam/"},
		budget:      100,
		recentPages: 1,
		resultsPage: 15,
	}

	if err := newTestScraper(cl, repo, bus, cfg).RunFull(context.Background()); err != nil {
		t.Fatalf("RunFull: %v", err)
	}

	if got := len(repo.history[seeded.ID]); got != 1 {
		t.Fatalf("price history entries = %d, want 1", got)
	}
	changed := bus.named("listings.price_changed")
	if len(changed) != 1 {
		t.Fatalf("price_changed events = %d, want 1", len(changed))
	}
	event := changed[0].(events.ListingPriceChanged)
	if event.OldPrice != 500000 || event.NewPrice != 550000 {
		t.Fatalf("price event = %v -> %v", event.OldPrice, event.NewPrice)
	}
}

func TestRunLimited_RespectsLimitAndSkipsCursor(t *testing.T) {
	cl := &fakeClient{
		pages: map[string][][]client.SearchSummary{
			"rotterdam": {{
				summaryRow(601, "€ 300.000", "Adres 1"),
				summaryRow(602, "€ 310.000", "Adres 2"),
				summaryRow(603, "€ 320.000", "Adres 3"),
			}},
		},
	}
	repo := newFakeRepo()
	cfg := fakeConfig{
		searchURLs:  []string{"https://www.funda.nl/koop/rotterdam/"},
		budget:      100,
		resultsPage: 15,
	}

	var messages []string
	listings, err := newTestScraper(cl, repo, &fakeBus{}, cfg).RunLimited(
		context.Background(), "rotterdam", 2,
		func(message string) { messages = append(messages, message) },
	)
	if err != nil {
		t.Fatalf("RunLimited: %v", err)
	}

	if len(listings) != 2 {
		t.Fatalf("collected = %d, want 2", len(listings))
	}
	if len(repo.saves) != 0 {
		t.Fatal("on-demand crawl must not persist region cursors")
	}
	if len(messages) < 3 {
		t.Fatalf("progress messages = %d, want start/found/per-listing updates", len(messages))
	}
}

func TestRegions_DerivedAndDeduplicated(t *testing.T) {
	cfg := fakeConfig{
		searchURLs: []string{
			"https://www.funda.nl/koop/amsterdam/",
			"https://www.funda.nl/zoeken/koop/utrecht/?price=200000-400000",
			"https://www.funda.nl/koop/amsterdam/p2/",
		},
	}
	s := newTestScraper(&fakeClient{}, newFakeRepo(), &fakeBus{}, cfg)

	regions := s.regions()
	if len(regions) != 2 || regions[0] != "amsterdam" || regions[1] != "utrecht" {
		t.Fatalf("regions = %v", regions)
	}
}
