// Package woz looks up official property valuations from the public
// WOZ-waardeloket.
package woz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"valora_backend/internal/enrichment/cache"
	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/logger"
)

const (
	defaultHomeURL = "https://www.wozwaardeloket.nl/"
	defaultAPIBase = "https://api.kadaster.nl/lvwoz/wozwaardeloket-api/v1"

	valuationCacheTTL = 12 * time.Hour

	lookerUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client resolves a property to its most recent WOZ valuation. The
// loket requires a session cookie from the main page before its API
// accepts requests, so the client carries a cookie jar.
type Client struct {
	httpClient *http.Client
	homeURL    string
	apiBase    string
	cache      *cache.TTL[*domain.WozValuation]
	log        *logger.Logger
}

// New creates a WOZ valuation client.
func New(log *logger.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second, Jar: jar},
		homeURL:    defaultHomeURL,
		apiBase:    defaultAPIBase,
		cache:      cache.NewTTL[*domain.WozValuation](),
		log:        log.WithSource("woz"),
	}
}

type suggestResponse struct {
	Docs []struct {
		AdresseerbaarObjectID *int64 `json:"adresseerbaarObjectId"`
	} `json:"docs"`
}

type valuationResponse struct {
	WozWaarden []struct {
		Peildatum           string `json:"peildatum"`
		VastgesteldeWaarde  int    `json:"vastgesteldeWaarde"`
	} `json:"wozWaarden"`
}

// Get returns the latest valuation for the address, or nil when the
// property cannot be found. objectID, when known (from the cadastral
// register), skips the suggest roundtrip.
func (c *Client) Get(ctx context.Context, street string, number int, suffix, city, objectID string) (*domain.WozValuation, error) {
	cacheKey := fmt.Sprintf("woz:%s:%s:%d%s", city, street, number, suffix)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	if err := c.initSession(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("session init failed", "error", err)
	}

	targetID, err := c.resolveObjectID(ctx, street, number, suffix, city, objectID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.SourceError("woz", "suggest", err)
		return nil, nil
	}
	if targetID == 0 {
		c.log.Warn("no valuation object found for address")
		return nil, nil
	}

	valuation, err := c.latestValuation(ctx, targetID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.SourceError("woz", "valuation", err)
		return nil, nil
	}
	if valuation == nil {
		return nil, nil
	}

	c.cache.Set(cacheKey, valuation, valuationCacheTTL)
	return valuation, nil
}

// initSession fetches the loket main page so its session cookie lands in
// the jar.
func (c *Client) initSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.homeURL, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) resolveObjectID(ctx context.Context, street string, number int, suffix, city, objectID string) (int64, error) {
	if objectID != "" {
		if parsed, err := strconv.ParseInt(objectID, 10, 64); err == nil {
			return parsed, nil
		}
	}

	// "{city} {street} {number}" matches more reliably than putting
	// the city last.
	query := strings.TrimSpace(fmt.Sprintf("%s %s %d%s", city, street, number, suffix))
	endpoint := fmt.Sprintf("%s/suggest?q=%s", c.apiBase, url.QueryEscape(query))

	var payload suggestResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return 0, err
	}

	for _, doc := range payload.Docs {
		if doc.AdresseerbaarObjectID != nil {
			return *doc.AdresseerbaarObjectID, nil
		}
	}
	return 0, nil
}

func (c *Client) latestValuation(ctx context.Context, targetID int64) (*domain.WozValuation, error) {
	endpoint := fmt.Sprintf("%s/wozwaarde/nummeraanduiding/%d", c.apiBase, targetID)

	var payload valuationResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	if len(payload.WozWaarden) == 0 {
		return nil, nil
	}

	values := payload.WozWaarden
	sort.Slice(values, func(i, j int) bool {
		return values[i].Peildatum > values[j].Peildatum
	})

	latest := values[0]
	referenceDate, err := time.Parse("2006-01-02", latest.Peildatum)
	if err != nil {
		return nil, fmt.Errorf("parse reference date %q: %w", latest.Peildatum, err)
	}

	return &domain.WozValuation{
		Value:         latest.VastgesteldeWaarde,
		ReferenceDate: referenceDate,
		Source:        "WOZ-waardeloket",
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// addHeaders mimics the loket frontend; the API rejects requests without
// the origin headers.
func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("Origin", "https://www.wozwaardeloket.nl")
	req.Header.Set("Referer", "https://www.wozwaardeloket.nl/")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", lookerUserAgent)
}
