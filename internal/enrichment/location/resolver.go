// Package location resolves free-text addresses (or listing URLs) to
// coordinates and administrative codes via the PDOK locatieserver.
package location

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
	"valora_backend/internal/funda/parse"
	"valora_backend/platform/config"
	"valora_backend/platform/logger"
)

// Resolver geocodes free-text input against the locatieserver free
// endpoint, restricted to address-type documents. Both positive and
// negative results are cached so repeated bad input stays cheap.
type Resolver struct {
	httpClient *http.Client
	cfg        config.EnrichmentConfig
	cache      *cache.TTL[*domain.ResolvedLocation]
	log        *logger.Logger
}

// New creates a location resolver.
func New(cfg config.EnrichmentConfig, log *logger.Logger) *Resolver {
	return &Resolver{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cfg:        cfg,
		cache:      cache.NewTTL[*domain.ResolvedLocation](),
		log:        log.WithSource("locatieserver"),
	}
}

type freeResponse struct {
	Response struct {
		Docs []freeDoc `json:"docs"`
	} `json:"response"`
}

type freeDoc struct {
	Weergavenaam string `json:"weergavenaam"`
	CentroideLL  string `json:"centroide_ll"`
	CentroideRD  string `json:"centroide_rd"`
	Gemeentecode string `json:"gemeentecode"`
	Gemeentenaam string `json:"gemeentenaam"`
	Wijkcode     string `json:"wijkcode"`
	Wijknaam     string `json:"wijknaam"`
	Buurtcode    string `json:"buurtcode"`
	Buurtnaam    string `json:"buurtnaam"`
	Postcode     string `json:"postcode"`
}

// Resolve geocodes the input. It returns nil (not an error) when the input
// is empty, nothing matches, or the upstream call fails; only cancellation
// propagates.
func (r *Resolver) Resolve(ctx context.Context, input string) (*domain.ResolvedLocation, error) {
	normalized := parse.NormalizeAddressInput(input)
	if normalized == "" {
		return nil, nil
	}

	cacheKey := "pdok-resolve:" + normalized
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached, nil
	}

	// fq=type:adres keeps out bare street and place-name documents.
	endpoint := fmt.Sprintf("%s/free?q=%s&fq=type:adres&rows=1",
		strings.TrimRight(r.cfg.GetLocatieserverBaseURL(), "/"),
		url.QueryEscape(normalized))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build resolve request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.SourceError("locatieserver", "resolve", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Warn("resolve failed", "status", resp.StatusCode)
		return nil, nil
	}

	var payload freeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		r.log.SourceError("locatieserver", "decode", err)
		return nil, nil
	}

	if len(payload.Response.Docs) == 0 {
		r.cache.Set(cacheKey, nil, r.cfg.GetLocationCacheTTL())
		return nil, nil
	}

	doc := payload.Response.Docs[0]
	lonLat, ok := ParseWktPoint(doc.CentroideLL)
	if !ok {
		r.log.Warn("resolve document had no usable coordinates")
		return nil, nil
	}

	location := &domain.ResolvedLocation{
		Query:            input,
		DisplayAddress:   firstNonEmpty(doc.Weergavenaam, normalized),
		Latitude:         lonLat.Y,
		Longitude:        lonLat.X,
		MunicipalityCode: prefixCode(doc.Gemeentecode, "GM"),
		MunicipalityName: doc.Gemeentenaam,
		DistrictCode:     doc.Wijkcode,
		DistrictName:     doc.Wijknaam,
		NeighborhoodCode: doc.Buurtcode,
		NeighborhoodName: doc.Buurtnaam,
		PostalCode:       doc.Postcode,
	}
	if rd, ok := ParseWktPoint(doc.CentroideRD); ok {
		x, y := rd.X, rd.Y
		location.RdX, location.RdY = &x, &y
	}

	r.cache.Set(cacheKey, location, r.cfg.GetLocationCacheTTL())
	return location, nil
}

// Point is a parsed WKT coordinate pair: X first (longitude or RD x).
type Point struct {
	X float64
	Y float64
}

// ParseWktPoint parses "POINT(x y)" geometry text.
func ParseWktPoint(wkt string) (Point, bool) {
	trimmed := strings.TrimSpace(wkt)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "POINT") {
		return Point{}, false
	}

	open := strings.IndexByte(trimmed, '(')
	end := strings.IndexByte(trimmed, ')')
	if open < 0 || end <= open {
		return Point{}, false
	}

	fields := strings.Fields(trimmed[open+1 : end])
	if len(fields) != 2 {
		return Point{}, false
	}

	x, errX := strconv.ParseFloat(fields[0], 64)
	y, errY := strconv.ParseFloat(fields[1], 64)
	if errX != nil || errY != nil {
		return Point{}, false
	}
	return Point{X: x, Y: y}, true
}

func prefixCode(code, prefix string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToUpper(trimmed), prefix) {
		return strings.ToUpper(trimmed)
	}
	return prefix + trimmed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
