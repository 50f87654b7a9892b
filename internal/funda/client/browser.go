package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"valora_backend/internal/funda/hydration"
	"valora_backend/internal/funda/parse"
	"valora_backend/internal/funda/ratelimit"
	"valora_backend/platform/apperr"
	"valora_backend/platform/logger"

	"github.com/chromedp/chromedp"
)

const (
	challengePollInterval = time.Second
	challengeMaxWait      = 30 * time.Second

	// listingMarkerSelector is the stable anchor the site renders for each
	// listing address; its presence means the challenge has cleared.
	listingMarkerSelector = "[data-testid='listingDetailsAddress']"

	navigationTimeout = 45 * time.Second
)

// chromeBinaries are tried in order when no explicit executable path is
// configured.
var chromeBinaries = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
}

// Browser is the browser-automation strategy. The site's search and
// detail pages sit behind a JavaScript bot challenge that plain HTTP
// cannot pass; a real renderer with a realistic fingerprint can. The
// summary, contact and fiber APIs are not challenge-protected, so those
// calls delegate to the direct strategy.
type Browser struct {
	limiter  *ratelimit.Limiter
	direct   *Direct
	log      *logger.Logger
	execPath string

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewBrowser creates the browser strategy. The allocator starts lazily on
// first use so processes that never hit a challenge pay no startup cost.
func NewBrowser(limiter *ratelimit.Limiter, direct *Direct, execPath string, log *logger.Logger) *Browser {
	return &Browser{
		limiter:  limiter,
		direct:   direct,
		log:      log,
		execPath: execPath,
	}
}

// Close tears down the browser allocator if one was started.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCtx = nil
		b.allocCancel = nil
	}
}

// allocator returns the shared exec allocator, starting it on first call.
func (b *Browser) allocator() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.allocCtx != nil {
		return b.allocCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "nl-NL"),
		chromedp.UserAgent(browserUserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Env("TZ=Europe/Amsterdam"),
	)

	binary := b.execPath
	if binary == "" {
		binary = findChromeBinary()
	}
	if binary != "" {
		opts = append(opts, chromedp.ExecPath(binary))
		b.log.Info("browser strategy using executable", "path", binary)
	} else {
		b.log.Info("browser strategy using default executable lookup")
	}

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return b.allocCtx, nil
}

// findChromeBinary locates a system browser executable on PATH.
func findChromeBinary() string {
	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// newTab opens a fresh tab context against the shared allocator.
func (b *Browser) newTab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	allocCtx, err := b.allocator()
	if err != nil {
		return nil, nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	timeoutCtx, cancelTimeout := context.WithTimeout(tabCtx, navigationTimeout)

	stop := func() {
		cancelTimeout()
		cancelTab()
	}
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-timeoutCtx.Done():
		}
	}()
	return timeoutCtx, stop, nil
}

// domSearchRow is the shape the in-page extraction script returns per
// listing.
type domSearchRow struct {
	Href    string `json:"href"`
	Address string `json:"address"`
	Price   string `json:"price"`
}

// searchRowsScript collects one row per listing anchor. The price lives
// in a nearby container, so the script walks a few parents up looking for
// a euro amount.
const searchRowsScript = `(() => {
	const rows = [];
	for (const link of document.querySelectorAll("[data-testid='listingDetailsAddress']")) {
		const row = { href: link.getAttribute("href") || "", address: (link.textContent || "").trim(), price: "" };
		let container = link;
		for (let i = 0; i < 6 && container; i++) {
			const match = (container.innerText || "").match(/€\s*[\d.,]+(?:\s*(?:k\.k\.|v\.o\.n\.))?/);
			if (match) { row.price = match[0]; break; }
			container = container.parentElement;
		}
		if (row.href) rows.push(row);
	}
	return rows;
})()`

// SearchListings renders one search-result page and extracts listing rows
// from the DOM.
func (b *Browser) SearchListings(ctx context.Context, region, offeringType string, page int, price PriceRange) (*SearchResult, error) {
	if err := b.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	url := searchPageURL(region, offeringType, page, price)

	tabCtx, cancel, err := b.newTab(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	if err := b.navigate(tabCtx, url); err != nil {
		return nil, err
	}

	var rows []domSearchRow
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(searchRowsScript, &rows)); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "search page extraction failed", err)
	}

	result := &SearchResult{FriendlyURL: url}
	for _, row := range rows {
		globalID, ok := parse.GlobalID(row.Href)
		if !ok {
			continue
		}
		result.Listings = append(result.Listings, SearchSummary{
			GlobalID:  globalID,
			PriceText: row.Price,
			DetailURL: row.Href,
			Address:   row.Address,
		})
	}

	b.log.Debug("browser search page extracted", "region", region, "page", page, "listings", len(result.Listings))
	return result, nil
}

// searchPageURL builds the public search page URL the renderer visits.
func searchPageURL(region, offeringType string, page int, price PriceRange) string {
	segment := "koop"
	if strings.EqualFold(offeringType, "rent") || strings.EqualFold(offeringType, "huur") {
		segment = "huur"
	}

	url := fmt.Sprintf("https://www.funda.nl/%s/%s/", segment, strings.ToLower(region))
	if page > 1 {
		url += fmt.Sprintf("p%d/", page)
	}
	if price.Min > 0 || price.Max != nil {
		max := ""
		if price.Max != nil {
			max = fmt.Sprintf("%d", *price.Max)
		}
		url += fmt.Sprintf("?price=%d-%s", price.Min, max)
	}
	return url
}

// characteristicsScript collects all dt/dd pairs from the characteristic
// categories as a flat object.
const characteristicsScript = `(() => {
	const out = {};
	const collect = (root) => {
		for (const dt of root.querySelectorAll("dt")) {
			const dd = dt.nextElementSibling;
			if (dd && dd.tagName === "DD") {
				const key = (dt.textContent || "").trim();
				const value = (dd.textContent || "").trim();
				if (key && value && !(key in out)) out[key] = value;
			}
		}
	};
	for (const cat of document.querySelectorAll("[data-testid^='category-']")) collect(cat);
	for (const dl of document.querySelectorAll("dl")) collect(dl);
	return out;
})()`

const descriptionScript = `(() => {
	const h2 = Array.from(document.querySelectorAll("h2")).find(h => (h.textContent || "").includes("Omschrijving"));
	if (!h2) return "";
	const container = h2.parentElement && h2.parentElement.querySelector("div");
	return container ? (container.textContent || "").trim() : "";
})()`

const photoIDsScript = `(() => {
	const script = document.getElementById("__NUXT_DATA__");
	if (!script) return [];
	const matches = (script.textContent || "").match(/"\d{3}\/\d{3}\/\d{3}"/g);
	if (!matches) return [];
	return [...new Set(matches.map(m => m.replace(/"/g, "")))];
})()`

// FetchListingDetails renders a detail page and extracts rich data: DOM
// characteristics first, the inlined hydration payload as fallback.
func (b *Browser) FetchListingDetails(ctx context.Context, detailURL string) (*RichListingData, error) {
	if err := b.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	target := parse.AbsoluteURL(detailURL)

	tabCtx, cancel, err := b.newTab(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	if err := b.navigate(tabCtx, target); err != nil {
		return nil, err
	}

	var (
		characteristics map[string]string
		description     string
		photoIDs        []string
	)
	err = chromedp.Run(tabCtx,
		chromedp.Evaluate(characteristicsScript, &characteristics),
		chromedp.Evaluate(descriptionScript, &description),
		chromedp.Evaluate(photoIDsScript, &photoIDs),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "detail page extraction failed", err)
	}

	if len(characteristics) > 0 || description != "" || len(photoIDs) > 0 {
		return buildRichData(characteristics, description, photoIDs), nil
	}

	// The DOM gave nothing usable; fall back to the raw hydration payload.
	var pageHTML string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &pageHTML)); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "detail page read failed", err)
	}
	return richDataFromHTML(b.direct.extractor, pageHTML)
}

// buildRichData reassembles a hydration-shaped payload from DOM-extracted
// characteristics, grouping labels by their Dutch category keywords.
func buildRichData(characteristics map[string]string, description string, photoIDs []string) *RichListingData {
	var layout, dimensions, energy, construction []FeatureItem

	for key, value := range characteristics {
		item := FeatureItem{Label: key, Value: value}
		lower := strings.ToLower(key)
		switch {
		case strings.Contains(lower, "kamer") || strings.Contains(lower, "verdiep") ||
			strings.Contains(lower, "garage") || strings.Contains(lower, "balkon") ||
			strings.Contains(lower, "tuin"):
			layout = append(layout, item)
		case strings.Contains(lower, "wonen") || strings.Contains(lower, "perceel") ||
			strings.Contains(lower, "inhoud") || strings.Contains(value, "m²"):
			dimensions = append(dimensions, item)
		case strings.Contains(lower, "energie") || strings.Contains(lower, "isolatie") ||
			strings.Contains(lower, "verwarming") || strings.Contains(lower, "cv"):
			energy = append(energy, item)
		default:
			construction = append(construction, item)
		}
	}

	data := &RichListingData{
		Features: &FeatureGroups{
			Layout:       featureGroupOrNil("Indeling", layout),
			Dimensions:   featureGroupOrNil("Afmetingen", dimensions),
			Energy:       featureGroupOrNil("Energie", energy),
			Construction: featureGroupOrNil("Bouw", construction),
		},
	}
	if description != "" {
		data.Description = &Description{Content: description}
	}
	if len(photoIDs) > 0 {
		media := &Media{}
		for _, id := range photoIDs {
			media.Items = append(media.Items, MediaItem{ID: id, Type: 1})
		}
		data.Media = media
	}
	return data
}

func featureGroupOrNil(title string, items []FeatureItem) *FeatureGroup {
	if len(items) == 0 {
		return nil
	}
	return &FeatureGroup{Title: title, Items: items}
}

// richDataFromHTML runs the hydration extractor over rendered page HTML.
func richDataFromHTML(extractor *hydration.Extractor, pageHTML string) (*RichListingData, error) {
	raw, ok := extractor.Extract(pageHTML)
	if !ok {
		return nil, nil
	}
	var payload RichListingData
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil
	}
	return &payload, nil
}

// navigate loads a URL with retry and waits out a bot challenge when one
// appears.
func (b *Browser) navigate(tabCtx context.Context, url string) error {
	err := withRetry(tabCtx, func() error {
		if err := chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.Sleep(2*time.Second),
		); err != nil {
			return apperr.Wrap(apperr.KindUnavailable, "navigation failed", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var title string
	if err := chromedp.Run(tabCtx, chromedp.Title(&title)); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "title read failed", err)
	}
	if !isChallengeTitleText(title) {
		return nil
	}

	b.log.Info("bot challenge detected, waiting for resolution", "url", url)
	if b.waitForChallenge(tabCtx) {
		return nil
	}
	return apperr.Blocked("bot challenge did not resolve within " + challengeMaxWait.String())
}

// waitForChallenge polls until the challenge title clears or listing
// markers appear, bounded by challengeMaxWait.
func (b *Browser) waitForChallenge(tabCtx context.Context) bool {
	deadline := time.Now().Add(challengeMaxWait)

	for time.Now().Before(deadline) {
		select {
		case <-tabCtx.Done():
			return false
		case <-time.After(challengePollInterval):
		}

		var title string
		if err := chromedp.Run(tabCtx, chromedp.Title(&title)); err != nil {
			return false
		}
		if !isChallengeTitleText(title) {
			return true
		}

		var markerCount int
		script := fmt.Sprintf("document.querySelectorAll(%q).length", listingMarkerSelector)
		if err := chromedp.Run(tabCtx, chromedp.Evaluate(script, &markerCount)); err == nil && markerCount > 0 {
			return true
		}
	}
	return false
}

func isChallengeTitleText(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "bijna op de pagina") ||
		strings.Contains(lower, "challenge") ||
		strings.Contains(lower, "even geduld")
}

// FetchListingSummary delegates to the direct strategy; the summary API
// is not challenge-protected.
func (b *Browser) FetchListingSummary(ctx context.Context, globalID int64) (*ListingSummary, error) {
	return b.direct.FetchListingSummary(ctx, globalID)
}

// FetchContactDetails delegates to the direct strategy.
func (b *Browser) FetchContactDetails(ctx context.Context, globalID int64) (*ContactDetails, error) {
	return b.direct.FetchContactDetails(ctx, globalID)
}

// FetchFiberAvailability delegates to the direct strategy.
func (b *Browser) FetchFiberAvailability(ctx context.Context, postalCode string) (*FiberAvailability, error) {
	return b.direct.FetchFiberAvailability(ctx, postalCode)
}

var _ Client = (*Browser)(nil)
