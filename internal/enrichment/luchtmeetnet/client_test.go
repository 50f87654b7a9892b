package luchtmeetnet

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/logger"
)

type fakeConfig struct {
	baseURL string
}

func (f fakeConfig) GetLocatieserverBaseURL() string      { return "" }
func (f fakeConfig) GetCBSODataBaseURL() string           { return "" }
func (f fakeConfig) GetOverpassBaseURL() string           { return "" }
func (f fakeConfig) GetLuchtmeetnetBaseURL() string       { return f.baseURL }
func (f fakeConfig) GetLocationCacheTTL() time.Duration   { return time.Hour }
func (f fakeConfig) GetStatsCacheTTL() time.Duration      { return time.Hour }
func (f fakeConfig) GetAmenityCacheTTL() time.Duration    { return time.Hour }
func (f fakeConfig) GetAirQualityCacheTTL() time.Duration { return time.Hour }
func (f fakeConfig) GetReportCacheTTL() time.Duration     { return time.Hour }
func (f fakeConfig) GetDefaultRadiusMeters() int          { return 1000 }

// newNetwork serves a two-station network: NL01 in Amsterdam, NL02 in
// Rotterdam. Only NL01 has measurements.
func newNetwork(t *testing.T, measurementCalls *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case path == "/open_api/stations":
			fmt.Fprint(w, `{"data":[{"number":"NL01"},{"number":"NL02"}],"pagination":{"last_page":1}}`)
		case strings.HasSuffix(path, "/NL01/measurements"):
			*measurementCalls = append(*measurementCalls, "NL01")
			fmt.Fprint(w, `{"data":[
				{"formula":"PM25","value":8.2,"timestamp_measured":"2026-08-28T10:00:00+00:00"},
				{"formula":"PM10","value":14.1,"timestamp_measured":"2026-08-28T10:00:00+00:00"},
				{"formula":"NO2","value":21.0,"timestamp_measured":"2026-08-28T10:00:00+00:00"}
			]}`)
		case strings.HasSuffix(path, "/stations/NL01"):
			fmt.Fprint(w, `{"data":{"location":"Amsterdam-Vondelpark","geometry":{"coordinates":[4.8700,52.3600]}}}`)
		case strings.HasSuffix(path, "/stations/NL02"):
			fmt.Fprint(w, `{"data":{"location":"Rotterdam-Centrum","geometry":{"coordinates":[4.4800,51.9200]}}}`)
		default:
			t.Errorf("unexpected path %s", path)
			http.NotFound(w, r)
		}
	}))
}

func TestGet_NearestStationSnapshot(t *testing.T) {
	var measurementCalls []string
	srv := newNetwork(t, &measurementCalls)
	defer srv.Close()

	c := New(fakeConfig{baseURL: srv.URL}, logger.New("test"))
	loc := domain.ResolvedLocation{Latitude: 52.37, Longitude: 4.89} // Amsterdam

	snapshot, err := c.Get(context.Background(), loc)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snapshot == nil {
		t.Fatal("expected a snapshot")
	}
	if snapshot.StationID != "NL01" {
		t.Fatalf("StationID = %q, want NL01 (nearest)", snapshot.StationID)
	}
	if snapshot.StationName != "Amsterdam-Vondelpark" {
		t.Fatalf("StationName = %q", snapshot.StationName)
	}
	if snapshot.Pm25 == nil || *snapshot.Pm25 != 8.2 {
		t.Fatalf("Pm25 = %v", snapshot.Pm25)
	}
	if snapshot.Pm10 == nil || *snapshot.Pm10 != 14.1 {
		t.Fatalf("Pm10 = %v", snapshot.Pm10)
	}
	if snapshot.O3 != nil {
		t.Fatalf("O3 = %v, want nil", snapshot.O3)
	}
	if snapshot.MeasuredAt == nil || !snapshot.MeasuredAt.Equal(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("MeasuredAt = %v", snapshot.MeasuredAt)
	}
	if snapshot.StationDistanceMeters <= 0 || snapshot.StationDistanceMeters > 5000 {
		t.Fatalf("StationDistanceMeters = %v", snapshot.StationDistanceMeters)
	}
}

func TestGet_SnapshotCached(t *testing.T) {
	var measurementCalls []string
	srv := newNetwork(t, &measurementCalls)
	defer srv.Close()

	c := New(fakeConfig{baseURL: srv.URL}, logger.New("test"))
	loc := domain.ResolvedLocation{Latitude: 52.37, Longitude: 4.89}

	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), loc); err != nil {
			t.Fatalf("Get #%d: %v", i, err)
		}
	}
	if len(measurementCalls) != 1 {
		t.Fatalf("measurements fetched %d times, want 1", len(measurementCalls))
	}
}

func TestStationIDs_StopsAtLastPage(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		fmt.Fprintf(w, `{"data":[{"number":"NL%s"}],"pagination":{"last_page":3}}`, page)
	}))
	defer srv.Close()

	c := New(fakeConfig{baseURL: srv.URL}, logger.New("test"))
	ids, err := c.stationIDs(context.Background())
	if err != nil {
		t.Fatalf("stationIDs: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("fetched pages %v, want 3 pages", pages)
	}
	if len(ids) != 3 {
		t.Fatalf("ids = %v", ids)
	}
}
