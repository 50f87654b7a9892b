// Package overpass counts points of interest around a location using the
// OpenStreetMap Overpass API.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"valora_backend/internal/enrichment/cache"
	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/config"
	"valora_backend/platform/geo"
	"valora_backend/platform/logger"
)

// bucketCount is the number of amenity categories the diversity score
// divides over.
const bucketCount = 6

// Client queries the Overpass interpreter endpoint.
type Client struct {
	httpClient *http.Client
	cfg        config.EnrichmentConfig
	cache      *cache.TTL[*domain.AmenityStats]
	log        *logger.Logger
	now        func() time.Time
}

// New creates an Overpass client.
func New(cfg config.EnrichmentConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cfg:        cfg,
		cache:      cache.NewTTL[*domain.AmenityStats](),
		log:        log.WithSource("overpass"),
		now:        time.Now,
	}
}

type response struct {
	Elements []Element `json:"elements"`
}

// Element is one node/way/relation from an Overpass result.
type Element struct {
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *center           `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Coordinates returns the element's point: its own position for nodes,
// the centroid for ways and relations.
func (e Element) Coordinates() (lat, lon float64, ok bool) {
	if e.Lat != nil && e.Lon != nil {
		return *e.Lat, *e.Lon, true
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon, true
	}
	return 0, 0, false
}

// Categorize maps an element's tags to one of the six amenity buckets,
// or "" when none applies.
func Categorize(tags map[string]string) string {
	switch tags["amenity"] {
	case "school":
		return "school"
	case "hospital", "clinic", "doctors", "pharmacy":
		return "healthcare"
	case "charging_station":
		return "charging_station"
	}
	if tags["shop"] == "supermarket" {
		return "supermarket"
	}
	if tags["leisure"] == "park" {
		return "park"
	}
	if tags["highway"] == "bus_stop" || tags["railway"] == "station" {
		return "transit"
	}
	return ""
}

// Get counts nearby amenities by category within radiusMeters.
func (c *Client) Get(ctx context.Context, loc domain.ResolvedLocation, radiusMeters int) (*domain.AmenityStats, error) {
	cacheKey := fmt.Sprintf("overpass:%.5f:%.5f:%d", loc.Latitude, loc.Longitude, radiusMeters)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	elements, err := c.fetch(ctx, buildQuery(loc.Latitude, loc.Longitude, radiusMeters))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.SourceError("overpass", "amenities", err)
		return nil, nil
	}

	stats := Tally(elements, loc.Latitude, loc.Longitude)
	stats.RetrievedAt = c.now().UTC()

	c.cache.Set(cacheKey, stats, c.cfg.GetAmenityCacheTTL())
	return stats, nil
}

// Tally folds a result set into per-bucket counts, the nearest-amenity
// distance and the diversity score.
func Tally(elements []Element, lat, lon float64) *domain.AmenityStats {
	stats := &domain.AmenityStats{}

	for _, element := range elements {
		elemLat, elemLon, ok := element.Coordinates()
		if !ok {
			continue
		}

		distance := geo.DistanceMeters(lat, lon, elemLat, elemLon)
		if stats.NearestAmenityDistanceMeters == nil || distance < *stats.NearestAmenityDistanceMeters {
			d := distance
			stats.NearestAmenityDistanceMeters = &d
		}

		switch Categorize(element.Tags) {
		case "school":
			stats.SchoolCount++
		case "supermarket":
			stats.SupermarketCount++
		case "park":
			stats.ParkCount++
		case "healthcare":
			stats.HealthcareCount++
		case "transit":
			stats.TransitStopCount++
		case "charging_station":
			stats.ChargingStationCount++
		}
	}

	populated := 0
	for _, count := range []int{
		stats.SchoolCount, stats.SupermarketCount, stats.ParkCount,
		stats.HealthcareCount, stats.TransitStopCount, stats.ChargingStationCount,
	} {
		if count > 0 {
			populated++
		}
	}
	stats.DiversityScore = float64(populated) / bucketCount * 100

	return stats
}

// buildQuery assembles the Overpass QL query. "out center tags" keeps
// the payload small: centroids only, no full way geometry.
func buildQuery(lat, lon float64, radiusMeters int) string {
	latStr := strconv.FormatFloat(lat, 'f', -1, 64)
	lonStr := strconv.FormatFloat(lon, 'f', -1, 64)
	around := fmt.Sprintf("around:%d,%s,%s", radiusMeters, latStr, lonStr)

	var sb strings.Builder
	sb.WriteString("[out:json][timeout:25];(")
	for _, filter := range []string{
		"[amenity=school]",
		"[shop=supermarket]",
		"[leisure=park]",
		`[amenity~"hospital|clinic|doctors|pharmacy"]`,
		"[highway=bus_stop]",
		"[railway=station]",
		"[amenity=charging_station]",
	} {
		fmt.Fprintf(&sb, "nwr(%s)%s;", around, filter)
	}
	sb.WriteString(");out center tags;")
	return sb.String()
}

func (c *Client) fetch(ctx context.Context, query string) ([]Element, error) {
	endpoint := strings.TrimRight(c.cfg.GetOverpassBaseURL(), "/") + "/api/interpreter"
	form := url.Values{"data": {query}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass interpreter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overpass interpreter: status %d", resp.StatusCode)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	return payload.Elements, nil
}
