// Package luchtmeetnet reads air-quality measurements from the Dutch
// national measuring network's open API.
package luchtmeetnet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"valora_backend/internal/enrichment/cache"
	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/config"
	"valora_backend/platform/geo"
	"valora_backend/platform/logger"
)

const (
	// The station list is paginated; the network has well under 15
	// pages worth of stations, so this bounds a runaway loop.
	maxStationPages = 15

	// stationDetailConcurrency bounds the parallel detail fetches
	// during the one-off station discovery.
	stationDetailConcurrency = 5

	stationListTTL = 24 * time.Hour
)

// Station is a measuring station with its position.
type Station struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// Client finds the nearest station to a location and reads its latest
// particulate and gas measurements.
type Client struct {
	httpClient    *http.Client
	cfg           config.EnrichmentConfig
	snapshotCache *cache.TTL[*domain.AirQualitySnapshot]
	stationCache  *cache.TTL[[]Station]
	log           *logger.Logger
	now           func() time.Time
}

// New creates an air-quality client.
func New(cfg config.EnrichmentConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 20 * time.Second},
		cfg:           cfg,
		snapshotCache: cache.NewTTL[*domain.AirQualitySnapshot](),
		stationCache:  cache.NewTTL[[]Station](),
		log:           log.WithSource("luchtmeetnet"),
		now:           time.Now,
	}
}

type stationListResponse struct {
	Data []struct {
		Number string `json:"number"`
	} `json:"data"`
	Pagination struct {
		LastPage int `json:"last_page"`
	} `json:"pagination"`
}

type stationDetailResponse struct {
	Data struct {
		Location string `json:"location"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"data"`
}

type measurementResponse struct {
	Data []measurement `json:"data"`
}

type measurement struct {
	Formula           string  `json:"formula"`
	Value             float64 `json:"value"`
	TimestampMeasured string  `json:"timestamp_measured"`
}

// Get returns the latest snapshot from the station nearest to loc, or
// nil when no station or no supported measurement is available.
func (c *Client) Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.AirQualitySnapshot, error) {
	cacheKey := fmt.Sprintf("lucht:%.4f:%.4f", loc.Latitude, loc.Longitude)
	if cached, ok := c.snapshotCache.Get(cacheKey); ok {
		return cached, nil
	}

	station, distance, ok, err := c.nearestStation(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	measurements, err := c.latestMeasurements(ctx, station.ID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.SourceError("luchtmeetnet", "measurements", err)
		return nil, nil
	}

	snapshot := &domain.AirQualitySnapshot{
		StationID:             station.ID,
		StationName:           station.Name,
		StationDistanceMeters: distance,
		Pm25:                  latestValue(measurements, "PM25"),
		Pm10:                  latestValue(measurements, "PM10"),
		No2:                   latestValue(measurements, "NO2"),
		O3:                    latestValue(measurements, "O3"),
		RetrievedAt:           c.now().UTC(),
	}
	if snapshot.Pm25 == nil && snapshot.Pm10 == nil && snapshot.No2 == nil && snapshot.O3 == nil {
		c.log.Warn("station reported no supported formulas", "station", station.ID)
		return nil, nil
	}
	snapshot.MeasuredAt = latestTimestamp(measurements)

	c.snapshotCache.Set(cacheKey, snapshot, c.cfg.GetAirQualityCacheTTL())
	return snapshot, nil
}

func latestValue(measurements []measurement, formula string) *float64 {
	for _, m := range measurements {
		if m.Formula == formula {
			v := m.Value
			return &v
		}
	}
	return nil
}

// latestTimestamp parses the measurement time of the first supported
// formula, in preference order.
func latestTimestamp(measurements []measurement) *time.Time {
	for _, formula := range []string{"PM25", "PM10", "NO2", "O3"} {
		for _, m := range measurements {
			if m.Formula != formula {
				continue
			}
			parsed, err := time.Parse(time.RFC3339, m.TimestampMeasured)
			if err != nil {
				return nil
			}
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

func (c *Client) nearestStation(ctx context.Context, lat, lon float64) (Station, float64, bool, error) {
	stations, err := c.allStations(ctx)
	if err != nil {
		return Station{}, 0, false, err
	}
	if len(stations) == 0 {
		return Station{}, 0, false, nil
	}

	var nearest Station
	minDistance := -1.0
	for _, station := range stations {
		distance := geo.DistanceMeters(lat, lon, station.Lat, station.Lon)
		if minDistance < 0 || distance < minDistance {
			minDistance = distance
			nearest = station
		}
	}
	return nearest, minDistance, true, nil
}

// allStations discovers every station with coordinates. The full list is
// cached for a day; discovery costs one request per list page plus one
// per station.
func (c *Client) allStations(ctx context.Context) ([]Station, error) {
	const cacheKey = "lucht:all-stations"
	if cached, ok := c.stationCache.Get(cacheKey); ok {
		return cached, nil
	}

	ids, err := c.stationIDs(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		stations []Station
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(stationDetailConcurrency)

	for _, id := range ids {
		group.Go(func() error {
			station, ok := c.stationDetail(groupCtx, id)
			if !ok {
				return nil
			}
			mu.Lock()
			stations = append(stations, station)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	c.log.Info("station discovery complete", "stations", len(stations))
	if len(stations) > 0 {
		c.stationCache.Set(cacheKey, stations, stationListTTL)
	}
	return stations, nil
}

func (c *Client) stationIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string

	for page := 1; page <= maxStationPages; page++ {
		endpoint := fmt.Sprintf("%s/open_api/stations?page=%d", c.baseURL(), page)

		var payload stationListResponse
		if err := c.getJSON(ctx, endpoint, &payload); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.SourceError("luchtmeetnet", "station list", err)
			continue
		}

		for _, station := range payload.Data {
			if station.Number == "" {
				continue
			}
			if _, dup := seen[station.Number]; dup {
				continue
			}
			seen[station.Number] = struct{}{}
			ids = append(ids, station.Number)
		}

		if payload.Pagination.LastPage > 0 && page >= payload.Pagination.LastPage {
			break
		}
		if len(payload.Data) == 0 {
			break
		}
	}
	return ids, nil
}

func (c *Client) stationDetail(ctx context.Context, id string) (Station, bool) {
	endpoint := fmt.Sprintf("%s/open_api/stations/%s", c.baseURL(), url.PathEscape(id))

	var payload stationDetailResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		c.log.SourceError("luchtmeetnet", "station detail", err)
		return Station{}, false
	}

	coords := payload.Data.Geometry.Coordinates
	if len(coords) < 2 {
		return Station{}, false
	}

	name := payload.Data.Location
	if name == "" {
		name = id
	}
	return Station{ID: id, Name: name, Lat: coords[1], Lon: coords[0]}, true
}

func (c *Client) latestMeasurements(ctx context.Context, stationID string) ([]measurement, error) {
	endpoint := fmt.Sprintf("%s/open_api/stations/%s/measurements?order_by=timestamp_measured&order_direction=desc&page=1",
		c.baseURL(), url.PathEscape(stationID))

	var payload measurementResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) baseURL() string {
	return strings.TrimRight(c.cfg.GetLuchtmeetnetBaseURL(), "/")
}
