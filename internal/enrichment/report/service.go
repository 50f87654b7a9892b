// Package report assembles per-address context reports from the
// individual enrichment sources and scores them.
package report

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"valora_backend/internal/enrichment/cache"
	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/apperr"
	"valora_backend/platform/config"
	"valora_backend/platform/logger"
)

const (
	minRadiusMeters = 200
	maxRadiusMeters = 5000

	// Cache version; bump whenever the metric set or scoring changes so
	// stale reports don't linger for a TTL.
	cacheVersion = "v3"
)

// AddressResolver geocodes a free-form address query.
type AddressResolver interface {
	Resolve(ctx context.Context, input string) (*domain.ResolvedLocation, error)
}

// StatsSource provides neighborhood key figures.
type StatsSource interface {
	Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.NeighborhoodStats, error)
}

// CrimeSource provides registered-crime rates.
type CrimeSource interface {
	Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.CrimeStats, error)
}

// DemographicsSource provides age and household composition.
type DemographicsSource interface {
	Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.Demographics, error)
}

// AmenitySource counts points of interest around a location.
type AmenitySource interface {
	Get(ctx context.Context, loc domain.ResolvedLocation, radiusMeters int) (*domain.AmenityStats, error)
}

// AirQualitySource provides the nearest station's latest readings.
type AirQualitySource interface {
	Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.AirQualitySnapshot, error)
}

// Service builds context reports. Source failures degrade the report
// (missing categories, warnings) rather than failing it; only an
// unresolvable address is an error.
type Service struct {
	resolver     AddressResolver
	stats        StatsSource
	crime        CrimeSource
	demographics DemographicsSource
	amenities    AmenitySource
	air          AirQualitySource

	cache *cache.JSON
	cfg   config.EnrichmentConfig
	log   *logger.Logger
}

// NewService wires a report service from its sources.
func NewService(
	resolver AddressResolver,
	stats StatsSource,
	crime CrimeSource,
	demographics DemographicsSource,
	amenities AmenitySource,
	air AirQualitySource,
	reportCache *cache.JSON,
	cfg config.EnrichmentConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		resolver:     resolver,
		stats:        stats,
		crime:        crime,
		demographics: demographics,
		amenities:    amenities,
		air:          air,
		cache:        reportCache,
		cfg:          cfg,
		log:          log.WithSource("context-report"),
	}
}

// Build resolves the address and assembles its context report. A radius
// of 0 uses the configured default; out-of-range radii are clamped and
// noted in the report warnings.
func (s *Service) Build(ctx context.Context, query string, radiusMeters int) (*domain.ContextReport, error) {
	if query == "" {
		return nil, apperr.Validation("address query is required")
	}

	var warnings []string
	if radiusMeters <= 0 {
		radiusMeters = s.cfg.GetDefaultRadiusMeters()
	}
	if clamped := clampRadius(radiusMeters); clamped != radiusMeters {
		warnings = append(warnings, fmt.Sprintf(
			"Search radius adjusted from %d to %d meters (allowed range %d-%d).",
			radiusMeters, clamped, minRadiusMeters, maxRadiusMeters))
		radiusMeters = clamped
	}

	loc, err := s.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, apperr.Validation("could not resolve address: " + query)
	}

	cacheKey := fmt.Sprintf("context-report:%s:%.5f_%.5f:%d", cacheVersion, loc.Latitude, loc.Longitude, radiusMeters)
	var cached domain.ContextReport
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	started := time.Now()
	sources, err := s.fetchSources(ctx, *loc, radiusMeters)
	if err != nil {
		return nil, err
	}

	report := s.assemble(*loc, sources, warnings)

	if err := s.cache.Set(ctx, cacheKey, report, s.cfg.GetReportCacheTTL()); err != nil {
		s.log.Warn("report cache write failed", "error", err)
	}

	s.log.Info("context report built",
		"address", loc.DisplayAddress,
		"radius_m", radiusMeters,
		"composite", report.CompositeScore,
		"duration_ms", time.Since(started).Milliseconds())
	return report, nil
}

type sourceData struct {
	stats        *domain.NeighborhoodStats
	crime        *domain.CrimeStats
	demographics *domain.Demographics
	amenities    *domain.AmenityStats
	air          *domain.AirQualitySnapshot
}

// fetchSources queries all sources concurrently. Sources swallow their
// own upstream failures, so an error here means the context was
// cancelled.
func (s *Service) fetchSources(ctx context.Context, loc domain.ResolvedLocation, radiusMeters int) (*sourceData, error) {
	var data sourceData

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.stats, err = s.stats.Get(ctx, loc)
		return err
	})
	g.Go(func() (err error) {
		data.crime, err = s.crime.Get(ctx, loc)
		return err
	})
	g.Go(func() (err error) {
		data.demographics, err = s.demographics.Get(ctx, loc)
		return err
	})
	g.Go(func() (err error) {
		data.amenities, err = s.amenities.Get(ctx, loc, radiusMeters)
		return err
	})
	g.Go(func() (err error) {
		data.air, err = s.air.Get(ctx, loc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch report sources: %w", err)
	}
	return &data, nil
}

func (s *Service) assemble(loc domain.ResolvedLocation, data *sourceData, warnings []string) *domain.ContextReport {
	report := &domain.ContextReport{
		Location: loc,

		SocialMetrics:       socialMetrics(data.stats),
		SafetyMetrics:       safetyMetrics(data.crime),
		DemographicsMetrics: demographicsMetrics(data.demographics),
		HousingMetrics:      housingMetrics(data.stats),
		MobilityMetrics:     mobilityMetrics(data.stats),
		AmenityMetrics:      amenityMetrics(data.amenities, data.stats),
		EnvironmentMetrics:  environmentMetrics(data.air),

		Warnings: warnings,
	}

	if data.stats == nil {
		report.Warnings = append(report.Warnings, "CBS neighborhood indicators were unavailable; social score is partial.")
	}
	if data.crime == nil {
		report.Warnings = append(report.Warnings, "CBS crime figures were unavailable; safety score is partial.")
	}
	if data.demographics == nil {
		report.Warnings = append(report.Warnings, "CBS demographics were unavailable; demographics are partial.")
	}
	if data.amenities == nil {
		report.Warnings = append(report.Warnings, "OSM amenities were unavailable; amenity score is partial.")
	}
	if data.air == nil {
		report.Warnings = append(report.Warnings, "Air quality source was unavailable; environment score is partial.")
	}

	report.CategoryScores = map[string]float64{}
	addCategoryScore(report.CategoryScores, "social", report.SocialMetrics)
	addCategoryScore(report.CategoryScores, "safety", report.SafetyMetrics)
	addCategoryScore(report.CategoryScores, "demographics", report.DemographicsMetrics)
	addCategoryScore(report.CategoryScores, "housing", report.HousingMetrics)
	addCategoryScore(report.CategoryScores, "mobility", report.MobilityMetrics)
	addCategoryScore(report.CategoryScores, "amenities", report.AmenityMetrics)
	addCategoryScore(report.CategoryScores, "environment", report.EnvironmentMetrics)

	report.CompositeScore = compositeScore(report.CategoryScores)
	report.Sources = attributions(data)
	return report
}

// addCategoryScore records the unweighted mean of the category's scored
// metrics; categories with no scored metric are left out entirely.
func addCategoryScore(scores map[string]float64, name string, metrics []domain.ContextMetric) {
	var sum float64
	var n int
	for _, m := range metrics {
		if m.Score != nil {
			sum += *m.Score
			n++
		}
	}
	if n > 0 {
		scores[name] = round1(sum / float64(n))
	}
}

// compositeScore weights the social, amenity and environment category
// scores, renormalizing the weights over whichever of the three are
// present. With none present the composite is 0.
func compositeScore(scores map[string]float64) float64 {
	weights := []struct {
		category string
		weight   float64
	}{
		{"social", weightSocial},
		{"amenities", weightAmenities},
		{"environment", weightEnvironment},
	}

	var weighted, total float64
	for _, w := range weights {
		if score, ok := scores[w.category]; ok {
			weighted += score * w.weight
			total += w.weight
		}
	}
	if total == 0 {
		return 0
	}
	return round1(weighted / total)
}

func attributions(data *sourceData) []domain.SourceAttribution {
	var out []domain.SourceAttribution
	if data.stats != nil {
		out = append(out, domain.SourceAttribution{
			Name: "CBS StatLine - Kerncijfers wijken en buurten", URL: "https://opendata.cbs.nl",
			License: "CC BY 4.0", RetrievedAt: data.stats.RetrievedAt,
		})
	}
	if data.crime != nil {
		out = append(out, domain.SourceAttribution{
			Name: "CBS/Politie - Geregistreerde criminaliteit", URL: "https://opendata.cbs.nl",
			License: "CC BY 4.0", RetrievedAt: data.crime.RetrievedAt,
		})
	}
	if data.amenities != nil {
		out = append(out, domain.SourceAttribution{
			Name: "OpenStreetMap contributors", URL: "https://www.openstreetmap.org",
			License: "ODbL", RetrievedAt: data.amenities.RetrievedAt,
		})
	}
	if data.air != nil {
		out = append(out, domain.SourceAttribution{
			Name: "Luchtmeetnet", URL: "https://www.luchtmeetnet.nl",
			License: "CC BY 4.0", RetrievedAt: data.air.RetrievedAt,
		})
	}
	return out
}

func clampRadius(radiusMeters int) int {
	if radiusMeters < minRadiusMeters {
		return minRadiusMeters
	}
	if radiusMeters > maxRadiusMeters {
		return maxRadiusMeters
	}
	return radiusMeters
}
