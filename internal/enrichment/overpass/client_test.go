package overpass

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/logger"
)

type fakeConfig struct {
	overpassURL string
}

func (f fakeConfig) GetLocatieserverBaseURL() string      { return "" }
func (f fakeConfig) GetCBSODataBaseURL() string           { return "" }
func (f fakeConfig) GetOverpassBaseURL() string           { return f.overpassURL }
func (f fakeConfig) GetLuchtmeetnetBaseURL() string       { return "" }
func (f fakeConfig) GetLocationCacheTTL() time.Duration   { return time.Hour }
func (f fakeConfig) GetStatsCacheTTL() time.Duration      { return time.Hour }
func (f fakeConfig) GetAmenityCacheTTL() time.Duration    { return time.Hour }
func (f fakeConfig) GetAirQualityCacheTTL() time.Duration { return time.Hour }
func (f fakeConfig) GetReportCacheTTL() time.Duration     { return time.Hour }
func (f fakeConfig) GetDefaultRadiusMeters() int          { return 1000 }

func TestCategorize(t *testing.T) {
	tests := []struct {
		tags map[string]string
		want string
	}{
		{map[string]string{"amenity": "school"}, "school"},
		{map[string]string{"amenity": "pharmacy"}, "healthcare"},
		{map[string]string{"amenity": "hospital"}, "healthcare"},
		{map[string]string{"amenity": "charging_station"}, "charging_station"},
		{map[string]string{"shop": "supermarket"}, "supermarket"},
		{map[string]string{"leisure": "park"}, "park"},
		{map[string]string{"highway": "bus_stop"}, "transit"},
		{map[string]string{"railway": "station"}, "transit"},
		{map[string]string{"amenity": "restaurant"}, ""},
		{map[string]string{}, ""},
	}
	for _, tt := range tests {
		if got := Categorize(tt.tags); got != tt.want {
			t.Fatalf("Categorize(%v) = %q, want %q", tt.tags, got, tt.want)
		}
	}
}

func TestTally_CountsBucketsAndDiversity(t *testing.T) {
	lat, lon := 52.37, 4.89
	near := func(dLat float64, tags map[string]string) Element {
		la := lat + dLat
		lo := lon
		return Element{Lat: &la, Lon: &lo, Tags: tags}
	}

	elements := []Element{
		near(0.001, map[string]string{"amenity": "school"}),
		near(0.002, map[string]string{"amenity": "school"}),
		near(0.003, map[string]string{"shop": "supermarket"}),
		near(0.004, map[string]string{"highway": "bus_stop"}),
		// A way with only a center, no node coordinates.
		{Center: &center{Lat: lat + 0.005, Lon: lon}, Tags: map[string]string{"leisure": "park"}},
		// Unmatched tags still count toward nearest-distance.
		near(0.0001, map[string]string{"amenity": "restaurant"}),
		// No coordinates at all: skipped entirely.
		{Tags: map[string]string{"amenity": "school"}},
	}

	stats := Tally(elements, lat, lon)

	if stats.SchoolCount != 2 || stats.SupermarketCount != 1 || stats.ParkCount != 1 || stats.TransitStopCount != 1 {
		t.Fatalf("counts = %+v", stats)
	}
	if stats.HealthcareCount != 0 || stats.ChargingStationCount != 0 {
		t.Fatalf("unexpected counts: %+v", stats)
	}

	// 4 of 6 buckets populated.
	want := 4.0 / 6.0 * 100
	if diff := stats.DiversityScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("DiversityScore = %v, want %v", stats.DiversityScore, want)
	}

	// The restaurant at 0.0001 degrees is the nearest element.
	if stats.NearestAmenityDistanceMeters == nil {
		t.Fatal("expected a nearest distance")
	}
	if *stats.NearestAmenityDistanceMeters > 20 {
		t.Fatalf("nearest distance = %v m, want ~11 m", *stats.NearestAmenityDistanceMeters)
	}
}

func TestGet_SendsQueryAndCaches(t *testing.T) {
	var calls int
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if err := r.ParseForm(); err == nil && r.PostForm.Get("data") != "" {
			gotQuery = r.PostForm.Get("data")
		} else {
			body, _ := io.ReadAll(r.Body)
			gotQuery = string(body)
		}
		fmt.Fprint(w, `{"elements":[{"id":1,"lat":52.371,"lon":4.891,"tags":{"amenity":"school"}}]}`)
	}))
	defer srv.Close()

	c := New(fakeConfig{overpassURL: srv.URL}, logger.New("test"))
	loc := domain.ResolvedLocation{Latitude: 52.37, Longitude: 4.89}

	stats, err := c.Get(context.Background(), loc, 1000)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stats == nil || stats.SchoolCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	for _, fragment := range []string{"[out:json][timeout:25]", "around:1000,52.37,4.89", "out center tags"} {
		if !strings.Contains(gotQuery, fragment) {
			t.Fatalf("query %q missing %q", gotQuery, fragment)
		}
	}

	if _, err := c.Get(context.Background(), loc, 1000); err != nil {
		t.Fatalf("cached Get: %v", err)
	}
	if calls != 1 {
		t.Fatalf("upstream called %d times, want 1", calls)
	}
}
