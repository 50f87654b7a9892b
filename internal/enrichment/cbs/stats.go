package cbs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"valora_backend/internal/enrichment/cache"
	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/config"
	"valora_backend/platform/logger"
)

const statsTable = "85618NED"

// statsSelect lists every column the key-figures row carries into the
// report: population, income, education, housing stock, mobility and
// walkability distances.
const statsSelect = "WijkenEnBuurten,SoortRegio_2,AantalInwoners_5,Bevolkingsdichtheid_34,GemiddeldeWOZWaardeVanWoningen_36,HuishoudensMetEenLaagInkomen_73," +
	"Mannen_6,Vrouwen_7,k_0Tot15Jaar_8,k_15Tot25Jaar_9,k_25Tot45Jaar_10,k_45Tot65Jaar_11,k_65JaarOfOuder_12," +
	"Eenpersoonshuishoudens_30,HuishoudensZonderKinderen_31,HuishoudensMetKinderen_32,GemiddeldeHuishoudensgrootte_33," +
	"MateVanStedelijkheid_125," +
	"GemiddeldInkomenPerInkomensontvanger_80,GemiddeldInkomenPerInwoner_81," +
	"BasisonderwijsVmboMbo1_70,HavoVwoMbo24_71,HboWo_72," +
	"Koopwoningen_41,HuurwoningenTotaal_42,InBezitWoningcorporatie_43,InBezitOverigeVerhuurders_44," +
	"BouwjaarVoor2000_46,BouwjaarVanaf2000_47,PercentageMeergezinswoning_38," +
	"PersonenautoSPerHuishouden_112,PersonenautoSNaarOppervlakte_113,PersonenautoSTotaal_109," +
	"AfstandTotHuisartsenpraktijk_115,AfstandTotGroteSupermarkt_116,AfstandTotKinderdagverblijf_117,AfstandTotSchool_118,ScholenBinnen3Km_119"

// StatsClient reads the neighborhood key-figures table.
type StatsClient struct {
	httpClient *http.Client
	cfg        config.EnrichmentConfig
	cache      *cache.TTL[*domain.NeighborhoodStats]
	log        *logger.Logger
	now        func() time.Time
}

// NewStatsClient creates a key-figures client.
func NewStatsClient(cfg config.EnrichmentConfig, log *logger.Logger) *StatsClient {
	return &StatsClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cfg:        cfg,
		cache:      cache.NewTTL[*domain.NeighborhoodStats](),
		log:        log.WithSource("cbs"),
		now:        time.Now,
	}
}

type statsRow struct {
	WijkenEnBuurten string `json:"WijkenEnBuurten"`
	SoortRegio      string `json:"SoortRegio_2"`

	AantalInwoners       FlexNumber `json:"AantalInwoners_5"`
	Bevolkingsdichtheid  FlexNumber `json:"Bevolkingsdichtheid_34"`
	GemiddeldeWOZWaarde  FlexNumber `json:"GemiddeldeWOZWaardeVanWoningen_36"`
	HuishoudensLaagInkom FlexNumber `json:"HuishoudensMetEenLaagInkomen_73"`

	Mannen               FlexNumber `json:"Mannen_6"`
	Vrouwen              FlexNumber `json:"Vrouwen_7"`
	Jonger15             FlexNumber `json:"k_0Tot15Jaar_8"`
	Van15Tot25           FlexNumber `json:"k_15Tot25Jaar_9"`
	Van25Tot45           FlexNumber `json:"k_25Tot45Jaar_10"`
	Van45Tot65           FlexNumber `json:"k_45Tot65Jaar_11"`
	Ouder65              FlexNumber `json:"k_65JaarOfOuder_12"`
	Eenpersoons          FlexNumber `json:"Eenpersoonshuishoudens_30"`
	ZonderKinderen       FlexNumber `json:"HuishoudensZonderKinderen_31"`
	MetKinderen          FlexNumber `json:"HuishoudensMetKinderen_32"`
	Huishoudensgrootte   FlexNumber `json:"GemiddeldeHuishoudensgrootte_33"`
	Stedelijkheid        *string    `json:"MateVanStedelijkheid_125"`
	InkomenPerOntvanger  FlexNumber `json:"GemiddeldInkomenPerInkomensontvanger_80"`
	InkomenPerInwoner    FlexNumber `json:"GemiddeldInkomenPerInwoner_81"`
	OpleidingLaag        FlexNumber `json:"BasisonderwijsVmboMbo1_70"`
	OpleidingMiddel      FlexNumber `json:"HavoVwoMbo24_71"`
	OpleidingHoog        FlexNumber `json:"HboWo_72"`
	Koopwoningen         FlexNumber `json:"Koopwoningen_41"`
	Huurwoningen         FlexNumber `json:"HuurwoningenTotaal_42"`
	Woningcorporatie     FlexNumber `json:"InBezitWoningcorporatie_43"`
	OverigeVerhuurders   FlexNumber `json:"InBezitOverigeVerhuurders_44"`
	BouwjaarVoor2000     FlexNumber `json:"BouwjaarVoor2000_46"`
	BouwjaarVanaf2000    FlexNumber `json:"BouwjaarVanaf2000_47"`
	Meergezinswoning     FlexNumber `json:"PercentageMeergezinswoning_38"`
	AutosPerHuishouden   FlexNumber `json:"PersonenautoSPerHuishouden_112"`
	AutosNaarOppervlakte FlexNumber `json:"PersonenautoSNaarOppervlakte_113"`
	AutosTotaal          FlexNumber `json:"PersonenautoSTotaal_109"`
	AfstandHuisarts      FlexNumber `json:"AfstandTotHuisartsenpraktijk_115"`
	AfstandSupermarkt    FlexNumber `json:"AfstandTotGroteSupermarkt_116"`
	AfstandKinderdag     FlexNumber `json:"AfstandTotKinderdagverblijf_117"`
	AfstandSchool        FlexNumber `json:"AfstandTotSchool_118"`
	ScholenBinnen3Km     FlexNumber `json:"ScholenBinnen3Km_119"`
}

// Get resolves the key figures for a location, trying candidate region
// codes from neighborhood down to municipality until one yields a row.
func (c *StatsClient) Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.NeighborhoodStats, error) {
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

func (c *StatsClient) forCode(ctx context.Context, regionCode string) (*domain.NeighborhoodStats, error) {
	cacheKey := "cbs:" + regionCode
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	row, err := fetchRow[statsRow](ctx, c.httpClient, c.cfg.GetCBSODataBaseURL(), statsTable, regionCode, statsSelect)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.SourceError("cbs", "stats", err)
		return nil, nil
	}
	if row == nil {
		c.cache.Set(cacheKey, nil, c.cfg.GetStatsCacheTTL())
		return nil, nil
	}

	stats := &domain.NeighborhoodStats{
		RegionCode:                 fallbackCode(row.WijkenEnBuurten, regionCode),
		RegionType:                 strings.TrimSpace(row.SoortRegio),
		Residents:                  row.AantalInwoners.Int(),
		PopulationDensity:          row.Bevolkingsdichtheid.Int(),
		AverageWozValueKeur:        row.GemiddeldeWOZWaarde.Float(),
		LowIncomeHouseholdsPercent: row.HuishoudensLaagInkom.Float(),
		Men:                        row.Mannen.Int(),
		Women:                      row.Vrouwen.Int(),
		Age0To15:                   row.Jonger15.Int(),
		Age15To25:                  row.Van15Tot25.Int(),
		Age25To45:                  row.Van25Tot45.Int(),
		Age45To65:                  row.Van45Tot65.Int(),
		Age65Plus:                  row.Ouder65.Int(),
		SingleHouseholds:           row.Eenpersoons.Int(),
		HouseholdsWithoutChildren:  row.ZonderKinderen.Int(),
		HouseholdsWithChildren:     row.MetKinderen.Int(),
		AverageHouseholdSize:       row.Huishoudensgrootte.Float(),
		AverageIncomePerRecipient:  row.InkomenPerOntvanger.Float(),
		AverageIncomePerInhabitant: row.InkomenPerInwoner.Float(),
		EducationLow:               row.OpleidingLaag.Int(),
		EducationMedium:            row.OpleidingMiddel.Int(),
		EducationHigh:              row.OpleidingHoog.Int(),
		PercentageOwnerOccupied:    row.Koopwoningen.Int(),
		PercentageRental:           row.Huurwoningen.Int(),
		PercentageSocialHousing:    row.Woningcorporatie.Int(),
		PercentagePrivateRental:    row.OverigeVerhuurders.Int(),
		PercentagePre2000:          row.BouwjaarVoor2000.Int(),
		PercentagePost2000:         row.BouwjaarVanaf2000.Int(),
		PercentageMultiFamily:      row.Meergezinswoning.Int(),
		CarsPerHousehold:           row.AutosPerHuishouden.Float(),
		CarDensity:                 row.AutosNaarOppervlakte.Int(),
		TotalCars:                  row.AutosTotaal.Int(),
		DistanceToGp:               row.AfstandHuisarts.Float(),
		DistanceToSupermarket:      row.AfstandSupermarkt.Float(),
		DistanceToDaycare:          row.AfstandKinderdag.Float(),
		DistanceToSchool:           row.AfstandSchool.Float(),
		SchoolsWithin3km:           row.ScholenBinnen3Km.Float(),
		RetrievedAt:                c.now().UTC(),
	}
	if row.Stedelijkheid != nil {
		stats.Urbanity = strings.TrimSpace(*row.Stedelijkheid)
	}

	c.cache.Set(cacheKey, stats, c.cfg.GetStatsCacheTTL())
	return stats, nil
}

// fetchRow queries one TypedDataSet row filtered on the exact (padded)
// region code. A missing row is (nil, nil): the caller falls through to
// the next candidate.
func fetchRow[T any](ctx context.Context, client *http.Client, baseURL, table, regionCode, selectFields string) (*T, error) {
	endpoint := fmt.Sprintf("%s/%s/TypedDataSet?$filter=WijkenEnBuurten%%20eq%%20'%s'&$top=1&$select=%s",
		strings.TrimRight(baseURL, "/"), table, url.QueryEscape(regionCode), selectFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build statline request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("statline %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("statline %s: status %d", table, resp.StatusCode)
	}

	var payload struct {
		Value []T `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode statline %s: %w", table, err)
	}
	if len(payload.Value) == 0 {
		return nil, nil
	}
	return &payload.Value[0], nil
}

func fallbackCode(code, fallback string) string {
	if trimmed := strings.TrimSpace(code); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(fallback)
}
