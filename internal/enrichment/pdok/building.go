package pdok

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"valora_backend/internal/enrichment/cache"
	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/logger"
)

// Rooftop-solar heuristic constants. These define the scoring contract:
// 40% of the footprint is assumed usable, one panel occupies ~2 m² with
// spacing and yields ~300 kWh/year.
const (
	usableRoofFraction = 0.4
	areaPerPanelM2     = 2.0
	kwhPerPanelPerYear = 300.0

	highPotentialKwh   = 3500.0
	mediumPotentialKwh = 2000.0

	// Buildings older than this risk monument status or a weak roof;
	// a High estimate is downgraded one tier.
	oldBuildingYear = 1930
)

// BuildingClient estimates rooftop solar potential from the cadastral
// building register.
type BuildingClient struct {
	httpClient *http.Client
	endpoint   string
	cache      *cache.TTL[*domain.SolarPotential]
	log        *logger.Logger
	now        func() time.Time
}

// NewBuildingClient creates a building-register client.
func NewBuildingClient(log *logger.Logger) *BuildingClient {
	return &BuildingClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		endpoint:   buildingEndpoint,
		cache:      cache.NewTTL[*domain.SolarPotential](),
		log:        log.WithSource("pdok-building"),
		now:        time.Now,
	}
}

// Get estimates the solar potential of the building at the location's RD
// point, or nil when no building intersects or the footprint is unusable.
func (c *BuildingClient) Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.SolarPotential, error) {
	if loc.RdX == nil || loc.RdY == nil {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("building:%v:%v", *loc.RdX, *loc.RdY)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	props, err := intersectFeature(ctx, c.httpClient, c.endpoint, "bag:pand", *loc.RdX, *loc.RdY)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.SourceError("pdok", "building", err)
		return nil, nil
	}
	if props == nil {
		c.cache.Set(cacheKey, nil, featureCacheTTL)
		return nil, nil
	}

	area := floatProp(props, "oppervlakte")
	if area == nil || *area <= 0 {
		return nil, nil
	}
	year := floatProp(props, "bouwjaar")

	result := EstimateSolar(*area, year)
	result.RetrievedAt = c.now().UTC()

	c.cache.Set(cacheKey, result, featureCacheTTL)
	return result, nil
}

// EstimateSolar applies the rooftop heuristic to a building footprint.
func EstimateSolar(footprintM2 float64, buildYear *float64) *domain.SolarPotential {
	usable := footprintM2 * usableRoofFraction
	panels := int(usable / areaPerPanelM2)
	kwh := float64(panels) * kwhPerPanelPerYear

	potential := "Low"
	switch {
	case kwh > highPotentialKwh:
		potential = "High"
	case kwh > mediumPotentialKwh:
		potential = "Medium"
	}
	if buildYear != nil && *buildYear < oldBuildingYear && potential == "High" {
		potential = "Medium"
	}

	return &domain.SolarPotential{
		Potential:              potential,
		RoofAreaM2:             footprintM2,
		InstallablePanels:      panels,
		EstimatedGenerationKwh: math.Round(kwh),
	}
}
