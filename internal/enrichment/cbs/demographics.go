package cbs

import (
	"context"
	"net/http"
	"time"

	"valora_backend/internal/enrichment/cache"
	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/config"
	"valora_backend/platform/logger"
)

// The demographics view lives in the same table as the crime counts; the
// two clients select disjoint columns.
const demoTable = "83765NED"

const demoSelect = "WijkenEnBuurten,k_0Tot15Jaar_8,k_15Tot25Jaar_9,k_25Tot45Jaar_10,k_45Tot65Jaar_11,k_65JaarOfOuder_12," +
	"GemiddeldeHuishoudensgrootte_32,Koopwoningen_40,Eenpersoonshuishoudens_29,HuishoudensMetKinderen_31"

// DemographicsClient reads age distribution and household composition.
type DemographicsClient struct {
	httpClient *http.Client
	cfg        config.EnrichmentConfig
	cache      *cache.TTL[*domain.Demographics]
	log        *logger.Logger
	now        func() time.Time
}

// NewDemographicsClient creates a demographics client.
func NewDemographicsClient(cfg config.EnrichmentConfig, log *logger.Logger) *DemographicsClient {
	return &DemographicsClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cfg:        cfg,
		cache:      cache.NewTTL[*domain.Demographics](),
		log:        log.WithSource("cbs-demographics"),
		now:        time.Now,
	}
}

type demoRow struct {
	Jonger15           FlexNumber `json:"k_0Tot15Jaar_8"`
	Van15Tot25         FlexNumber `json:"k_15Tot25Jaar_9"`
	Van25Tot45         FlexNumber `json:"k_25Tot45Jaar_10"`
	Van45Tot65         FlexNumber `json:"k_45Tot65Jaar_11"`
	Ouder65            FlexNumber `json:"k_65JaarOfOuder_12"`
	Huishoudensgrootte FlexNumber `json:"GemiddeldeHuishoudensgrootte_32"`
	Koopwoningen       FlexNumber `json:"Koopwoningen_40"`
	Eenpersoons        FlexNumber `json:"Eenpersoonshuishoudens_29"`
	MetKinderen        FlexNumber `json:"HuishoudensMetKinderen_31"`
}

// Get resolves demographics for a location through the candidate-code
// fallback chain.
func (c *DemographicsClient) Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.Demographics, error) {
	for _, code := range loc.CandidateCodes() {
		demo, err := c.forCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if demo != nil {
			return demo, nil
		}
	}
	return nil, nil
}

func (c *DemographicsClient) forCode(ctx context.Context, regionCode string) (*domain.Demographics, error) {
	cacheKey := "cbs-demo:" + regionCode
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	row, err := fetchRow[demoRow](ctx, c.httpClient, c.cfg.GetCBSODataBaseURL(), demoTable, regionCode, demoSelect)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.SourceError("cbs", "demographics", err)
		return nil, nil
	}
	if row == nil {
		c.cache.Set(cacheKey, nil, c.cfg.GetStatsCacheTTL())
		return nil, nil
	}

	demo := &domain.Demographics{
		PercentAge0To14:         row.Jonger15.Int(),
		PercentAge15To24:        row.Van15Tot25.Int(),
		PercentAge25To44:        row.Van25Tot45.Int(),
		PercentAge45To64:        row.Van45Tot65.Int(),
		PercentAge65Plus:        row.Ouder65.Int(),
		AverageHouseholdSize:    row.Huishoudensgrootte.Float(),
		PercentOwnerOccupied:    row.Koopwoningen.Int(),
		PercentSingleHouseholds: row.Eenpersoons.Int(),
		PercentFamilyHouseholds: row.MetKinderen.Int(),
		RetrievedAt:             c.now().UTC(),
	}

	c.cache.Set(cacheKey, demo, c.cfg.GetStatsCacheTTL())
	return demo, nil
}
