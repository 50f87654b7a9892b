package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"valora_backend/internal/funda/hydration"
	"valora_backend/internal/funda/ratelimit"
	"valora_backend/platform/apperr"
	"valora_backend/platform/logger"
)

const (
	searchEndpoint   = "https://search-topposition.funda.io/v2.0/search"
	summaryEndpoint  = "https://listing-detail-summary.funda.io/api/v1/listing/nl/%d"
	contactsEndpoint = "https://contacts-bff.funda.io/api/v3/listings/%d/contact-details?website=1"
	fiberEndpoint    = "https://kpnopticfiber.funda.io/api/v1/%s"

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxDetailBodyBytes bounds detail-page reads; hydration payloads sit
	// well under this.
	maxDetailBodyBytes = 8 << 20
)

// Direct is the HTTP strategy against the site's internal JSON APIs.
// All calls pass through the shared rate limiter.
type Direct struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	extractor  *hydration.Extractor
	log        *logger.Logger

	searchURL string
}

// NewDirect creates the direct HTTP acquisition strategy.
func NewDirect(limiter *ratelimit.Limiter, log *logger.Logger) *Direct {
	return &Direct{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		extractor:  hydration.NewExtractor(log),
		log:        log,
		searchURL:  searchEndpoint,
	}
}

// wire types for the topposition search API

type searchRequest struct {
	AggregationType []string           `json:"AggregationType"`
	CultureInfo     string             `json:"CultureInfo"`
	GeoInformation  string             `json:"GeoInformation"`
	OfferingType    []string           `json:"OfferingType"`
	Page            int                `json:"Page"`
	Price           *searchPriceFilter `json:"Price,omitempty"`
	Zoning          []string           `json:"Zoning"`
}

type searchPriceFilter struct {
	LowerBound     int    `json:"LowerBound"`
	PriceRangeType string `json:"PriceRangeType"`
	UpperBound     *int   `json:"UpperBound,omitempty"`
}

type searchResponse struct {
	FriendlyURL string          `json:"friendlyUrl"`
	Listings    []searchListing `json:"listings"`
}

type searchListing struct {
	GlobalID  int64          `json:"globalId"`
	Price     string         `json:"price"`
	AgentName string         `json:"agentName"`
	URL       string         `json:"listingUrl"`
	Image     *searchImage   `json:"image"`
	Address   *searchAddress `json:"address"`
	Labels    []string       `json:"labels"`
	IsProject bool           `json:"isProject"`
}

type searchImage struct {
	Default string `json:"default"`
	Size720 string `json:"720"`
}

type searchAddress struct {
	ListingAddress string `json:"listingAddress"`
	City           string `json:"city"`
}

// SearchListings queries one search-result page for a region.
func (d *Direct) SearchListings(ctx context.Context, region, offeringType string, page int, price PriceRange) (*SearchResult, error) {
	if err := d.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	body := searchRequest{
		AggregationType: []string{"listing"},
		CultureInfo:     "nl",
		GeoInformation:  strings.ToLower(region),
		OfferingType:    []string{offeringType},
		Page:            page,
		Price: &searchPriceFilter{
			LowerBound: price.Min,
			// The API accepts SalePrice bounds for rent searches too.
			PriceRangeType: "SalePrice",
			UpperBound:     price.Max,
		},
		Zoning: []string{"residential"},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "encode search request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.searchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	d.setBrowserHeaders(req)

	var wire searchResponse
	if err := d.doJSON(req, &wire); err != nil {
		return nil, err
	}

	result := &SearchResult{FriendlyURL: wire.FriendlyURL}
	for _, item := range wire.Listings {
		summary := SearchSummary{
			GlobalID:  item.GlobalID,
			PriceText: item.Price,
			DetailURL: item.URL,
			AgentName: item.AgentName,
			Labels:    item.Labels,
			IsProject: item.IsProject,
		}
		if item.Address != nil {
			summary.Address = item.Address.ListingAddress
			summary.City = item.Address.City
		}
		if item.Image != nil {
			summary.ImageURL = item.Image.Size720
			if summary.ImageURL == "" {
				summary.ImageURL = item.Image.Default
			}
		}
		result.Listings = append(result.Listings, summary)
	}

	d.log.Debug("search page fetched", "region", region, "page", page, "listings", len(result.Listings))
	return result, nil
}

// wire types for the detail-summary API

type summaryResponse struct {
	Identifiers *struct {
		GlobalID int64  `json:"globalId"`
		TinyID   string `json:"tinyId"`
	} `json:"identifiers"`
	Price *struct {
		SellingPrice string `json:"sellingPrice"`
	} `json:"price"`
	Address *struct {
		Title      string `json:"title"`
		SubTitle   string `json:"subTitle"`
		City       string `json:"city"`
		PostalCode string `json:"postCode"`
	} `json:"address"`
	FastView *struct {
		LivingArea  string `json:"livingArea"`
		Bedrooms    string `json:"numberOfBedrooms"`
		EnergyLabel string `json:"energyLabel"`
	} `json:"fastView"`
	Brokers []struct {
		Name string `json:"name"`
	} `json:"brokers"`
	PublicationDate *time.Time `json:"publicationDate"`
	IsSoldOrRented  bool       `json:"isSoldOrRented"`
	Tracking        *struct {
		Values *struct {
			AskingPrice *int   `json:"listing_askingprice"`
			Status      string `json:"listing_status"`
			Type        string `json:"listing_type"`
			PostalCode  string `json:"listing_postal_code"`
		} `json:"values"`
	} `json:"tracking"`
}

// FetchListingSummary fetches the detail-summary payload for a listing.
func (d *Direct) FetchListingSummary(ctx context.Context, globalID int64) (*ListingSummary, error) {
	if err := d.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(summaryEndpoint, globalID), nil)
	if err != nil {
		return nil, err
	}
	d.setBrowserHeaders(req)

	var wire summaryResponse
	if err := d.doJSON(req, &wire); err != nil {
		return nil, err
	}

	summary := &ListingSummary{
		GlobalID:        globalID,
		PublicationDate: wire.PublicationDate,
		IsSoldOrRented:  wire.IsSoldOrRented,
	}
	if wire.Identifiers != nil {
		summary.TinyID = wire.Identifiers.TinyID
	}
	if wire.Price != nil {
		summary.SellingPrice = wire.Price.SellingPrice
	}
	if wire.Address != nil {
		summary.Street = wire.Address.Title
		summary.PostalCodeCity = wire.Address.SubTitle
		summary.City = wire.Address.City
		summary.PostalCode = wire.Address.PostalCode
	}
	if wire.FastView != nil {
		summary.LivingArea = wire.FastView.LivingArea
		summary.Bedrooms = wire.FastView.Bedrooms
		summary.EnergyLabel = wire.FastView.EnergyLabel
	}
	for _, b := range wire.Brokers {
		if b.Name != "" {
			summary.BrokerNames = append(summary.BrokerNames, b.Name)
		}
	}
	if wire.Tracking != nil && wire.Tracking.Values != nil {
		summary.AskingPrice = wire.Tracking.Values.AskingPrice
		summary.ListingStatus = wire.Tracking.Values.Status
		summary.ListingType = wire.Tracking.Values.Type
		if summary.PostalCode == "" {
			summary.PostalCode = wire.Tracking.Values.PostalCode
		}
	}

	return summary, nil
}

// wire types for the contacts API

type contactsResponse struct {
	ID            string `json:"id"`
	ListingID     int64  `json:"listingId"`
	TinyID        string `json:"tinyId"`
	ListingStatus string `json:"listingStatus"`
	ContactBlocks []struct {
		ID              int    `json:"id"`
		DisplayName     string `json:"displayName"`
		LogoURL         string `json:"logoUrl"`
		PhoneNumber     string `json:"phoneNumber"`
		AssociationCode string `json:"associationCode"`
	} `json:"contactBlockDetails"`
}

// FetchContactDetails fetches broker contact details for a listing.
func (d *Direct) FetchContactDetails(ctx context.Context, globalID int64) (*ContactDetails, error) {
	if err := d.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(contactsEndpoint, globalID), nil)
	if err != nil {
		return nil, err
	}
	d.setBrowserHeaders(req)

	var wire contactsResponse
	if err := d.doJSON(req, &wire); err != nil {
		return nil, err
	}

	details := &ContactDetails{
		ListingID:     wire.ListingID,
		TinyID:        wire.TinyID,
		ListingStatus: wire.ListingStatus,
	}
	if len(wire.ContactBlocks) > 0 {
		primary := wire.ContactBlocks[0]
		details.BrokerOfficeID = primary.ID
		details.DisplayName = primary.DisplayName
		details.LogoURL = primary.LogoURL
		details.PhoneNumber = primary.PhoneNumber
		details.AssociationCode = primary.AssociationCode
	}

	return details, nil
}

// FetchFiberAvailability checks optic-fiber availability for a postal code.
func (d *Direct) FetchFiberAvailability(ctx context.Context, postalCode string) (*FiberAvailability, error) {
	if err := d.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	compact := strings.ToUpper(strings.ReplaceAll(postalCode, " ", ""))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(fiberEndpoint, compact), nil)
	if err != nil {
		return nil, err
	}
	d.setBrowserHeaders(req)

	var wire FiberAvailability
	if err := d.doJSON(req, &wire); err != nil {
		return nil, err
	}
	return &wire, nil
}

// FetchListingDetails fetches a detail page and extracts its hydration
// payload. A challenge page surfaces as a blocked error so the caller can
// fall back to the browser strategy.
func (d *Direct) FetchListingDetails(ctx context.Context, detailURL string) (*RichListingData, error) {
	if err := d.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailURL, nil)
	if err != nil {
		return nil, err
	}
	d.setBrowserHeaders(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "detail page request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperr.Blocked(fmt.Sprintf("detail page returned status %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.Unavailable(fmt.Sprintf("detail page returned status %d", resp.StatusCode))
	}

	html, err := io.ReadAll(io.LimitReader(resp.Body, maxDetailBodyBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "read detail page", err)
	}

	if hydration.IsChallengeTitle(string(html)) {
		return nil, apperr.Blocked("detail page served a bot challenge")
	}

	raw, ok := d.extractor.Extract(string(html))
	if !ok {
		// Absence of rich data is expected, not a retryable failure.
		d.log.Debug("no hydration payload in detail page", "url", detailURL)
		return nil, nil
	}

	var payload RichListingData
	if err := json.Unmarshal(raw, &payload); err != nil {
		d.log.Debug("hydration payload did not match expected shape", "url", detailURL, "error", err)
		return nil, nil
	}
	return &payload, nil
}

func (d *Direct) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "nl-NL,nl;q=0.9,en;q=0.8")
	req.Header.Set("Origin", "https://www.funda.nl")
	req.Header.Set("Referer", "https://www.funda.nl/")
}

// doJSON executes the request and decodes a JSON body. Non-2xx statuses
// and malformed JSON both surface as retryable transport errors.
func (d *Direct) doJSON(req *http.Request, out interface{}) error {
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Unavailable(fmt.Sprintf("%s returned status %d", req.URL.Host, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "invalid JSON response", err)
	}
	return nil
}

var _ Client = (*Direct)(nil)
