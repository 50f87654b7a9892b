// Package pdok queries the PDOK WFS feature services for soil composition
// and building footprints. Both lookups are point-in-polygon intersections
// on RD grid coordinates.
package pdok

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"valora_backend/internal/enrichment/cache"
	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/logger"
)

const (
	soilEndpoint     = "https://service.pdok.nl/bzk/bro-bodemkaart/wfs/v1_0"
	buildingEndpoint = "https://service.pdok.nl/lv/bag/wfs/v2_0"

	// Soil maps and building footprints change on geological and
	// construction timescales; a day of caching is conservative.
	featureCacheTTL = 24 * time.Hour
)

// SoilClient classifies foundation risk from the national soil map.
type SoilClient struct {
	httpClient *http.Client
	endpoint   string
	cache      *cache.TTL[*domain.FoundationRisk]
	log        *logger.Logger
	now        func() time.Time
}

// NewSoilClient creates a soil-map client.
func NewSoilClient(log *logger.Logger) *SoilClient {
	return &SoilClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		endpoint:   soilEndpoint,
		cache:      cache.NewTTL[*domain.FoundationRisk](),
		log:        log.WithSource("pdok-soil"),
		now:        time.Now,
	}
}

// Get returns the foundation risk at the location's RD point, or nil
// when the location has no RD coordinates or the map has no feature there.
func (c *SoilClient) Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.FoundationRisk, error) {
	if loc.RdX == nil || loc.RdY == nil {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("soil:%v:%v", *loc.RdX, *loc.RdY)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	props, err := intersectFeature(ctx, c.httpClient, c.endpoint, "bodemkaart", *loc.RdX, *loc.RdY)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.SourceError("pdok", "soil", err)
		return nil, nil
	}
	if props == nil {
		c.cache.Set(cacheKey, nil, featureCacheTTL)
		return nil, nil
	}

	soilGroup := stringProp(props, "bodemhoofdgroep")
	if soilGroup == "" {
		return nil, nil
	}

	risk, description := classifySoil(soilGroup)
	result := &domain.FoundationRisk{
		RiskLevel:   risk,
		SoilType:    soilGroup,
		Description: description,
		RetrievedAt: c.now().UTC(),
	}

	c.cache.Set(cacheKey, result, featureCacheTTL)
	return result, nil
}

func classifySoil(soilGroup string) (risk, description string) {
	switch strings.ToLower(soilGroup) {
	case "veen":
		return "High", "Peat soil carries a high risk of subsidence and foundation issues."
	case "klei":
		return "Medium", "Clay soil can be stable but may compress over time."
	case "zand":
		return "Low", "Sand is generally stable and good for foundations."
	case "leem":
		return "Low", "Loam is generally stable."
	default:
		return "Unknown", "Soil type: " + soilGroup
	}
}

// intersectFeature runs a WFS GetFeature with an INTERSECTS point filter
// and returns the first feature's properties, or nil when nothing
// intersects.
func intersectFeature(ctx context.Context, client *http.Client, endpoint, typeName string, x, y float64) (map[string]json.RawMessage, error) {
	xStr := strconv.FormatFloat(x, 'f', -1, 64)
	yStr := strconv.FormatFloat(y, 'f', -1, 64)
	requestURL := fmt.Sprintf(
		"%s?service=WFS&version=2.0.0&request=GetFeature&typeName=%s&outputFormat=application/json&cql_filter=INTERSECTS(geometrie,POINT(%s%%20%s))",
		endpoint, typeName, xStr, yStr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build wfs request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wfs %s: %w", typeName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wfs %s: status %d", typeName, resp.StatusCode)
	}

	var payload struct {
		Features []struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode wfs %s: %w", typeName, err)
	}
	if len(payload.Features) == 0 {
		return nil, nil
	}
	return payload.Features[0].Properties, nil
}

func stringProp(props map[string]json.RawMessage, key string) string {
	raw, ok := props[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func floatProp(props map[string]json.RawMessage, key string) *float64 {
	raw, ok := props[key]
	if !ok {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &parsed
		}
	}
	return nil
}
