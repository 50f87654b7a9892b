package cbs

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"valora_backend/internal/enrichment/cache"
	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/config"
	"valora_backend/platform/logger"
)

const crimeTable = "83765NED"

const crimeSelect = "WijkenEnBuurten,AantalInwoners_5,TotaalDiefstalUitWoningSchuurED_106,VernielingMisdrijfTegenOpenbareOrde_107,GeweldsEnSeksueleMisdrijven_108"

// CrimeClient reads registered crime counts and converts them to rates
// per 1000 residents.
type CrimeClient struct {
	httpClient *http.Client
	cfg        config.EnrichmentConfig
	cache      *cache.TTL[*domain.CrimeStats]
	log        *logger.Logger
	now        func() time.Time
}

// NewCrimeClient creates a crime statistics client.
func NewCrimeClient(cfg config.EnrichmentConfig, log *logger.Logger) *CrimeClient {
	return &CrimeClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cfg:        cfg,
		cache:      cache.NewTTL[*domain.CrimeStats](),
		log:        log.WithSource("cbs-crime"),
		now:        time.Now,
	}
}

type crimeRow struct {
	WijkenEnBuurten string     `json:"WijkenEnBuurten"`
	AantalInwoners  FlexNumber `json:"AantalInwoners_5"`
	Diefstal        FlexNumber `json:"TotaalDiefstalUitWoningSchuurED_106"`
	Vernieling      FlexNumber `json:"VernielingMisdrijfTegenOpenbareOrde_107"`
	Gewelds         FlexNumber `json:"GeweldsEnSeksueleMisdrijven_108"`
}

// Get resolves crime rates for a location through the candidate-code
// fallback chain.
func (c *CrimeClient) Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.CrimeStats, error) {
	for _, code := range loc.CandidateCodes() {
		stats, err := c.forCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if stats != nil {
			return stats, nil
		}
	}
	return nil, nil
}

func (c *CrimeClient) forCode(ctx context.Context, regionCode string) (*domain.CrimeStats, error) {
	cacheKey := "cbs-crime:" + strings.TrimSpace(regionCode)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	row, err := fetchRow[crimeRow](ctx, c.httpClient, c.cfg.GetCBSODataBaseURL(), crimeTable, regionCode, crimeSelect)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.SourceError("cbs", "crime", err)
		return nil, nil
	}
	if row == nil {
		c.cache.Set(cacheKey, nil, c.cfg.GetStatsCacheTTL())
		return nil, nil
	}

	residents := row.AantalInwoners.Int()
	theftRate := ratePer1000(row.Diefstal.Int(), residents)
	vandalismRate := ratePer1000(row.Vernieling.Int(), residents)
	violentRate := ratePer1000(row.Gewelds.Int(), residents)

	var totalRate *int
	if theftRate != nil || vandalismRate != nil || violentRate != nil {
		total := deref(theftRate) + deref(vandalismRate) + deref(violentRate)
		totalRate = &total
	}

	stats := &domain.CrimeStats{
		TotalCrimesPer1000:  totalRate,
		BurglaryPer1000:     theftRate,
		ViolentCrimePer1000: violentRate,
		TheftPer1000:        theftRate,
		VandalismPer1000:    vandalismRate,
		RetrievedAt:         c.now().UTC(),
	}

	c.cache.Set(cacheKey, stats, c.cfg.GetStatsCacheTTL())
	return stats, nil
}

// ratePer1000 converts an absolute count to a per-1000-residents rate,
// rounding half away from zero. Without a usable resident count the raw
// count passes through unchanged.
func ratePer1000(count, residents *int) *int {
	if count == nil {
		return nil
	}
	if residents == nil || *residents <= 0 {
		v := *count
		return &v
	}
	rate := int(math.Round(float64(*count) * 1000 / float64(*residents)))
	return &rate
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
