package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"valora_backend/platform/logger"
)

type fakeConfig struct {
	baseURL string
}

func (f fakeConfig) GetLocatieserverBaseURL() string      { return f.baseURL }
func (f fakeConfig) GetCBSODataBaseURL() string           { return "" }
func (f fakeConfig) GetOverpassBaseURL() string           { return "" }
func (f fakeConfig) GetLuchtmeetnetBaseURL() string       { return "" }
func (f fakeConfig) GetLocationCacheTTL() time.Duration   { return time.Hour }
func (f fakeConfig) GetStatsCacheTTL() time.Duration      { return time.Hour }
func (f fakeConfig) GetAmenityCacheTTL() time.Duration    { return time.Hour }
func (f fakeConfig) GetAirQualityCacheTTL() time.Duration { return time.Hour }
func (f fakeConfig) GetReportCacheTTL() time.Duration     { return time.Hour }
func (f fakeConfig) GetDefaultRadiusMeters() int          { return 1000 }

const damrakDoc = `{
  "response": {
    "docs": [
      {
        "weergavenaam": "Damrak 1, 1012LG Amsterdam",
        "centroide_ll": "POINT(4.89797 52.37765)",
        "centroide_rd": "POINT(121687.0 487812.0)",
        "gemeentecode": "0363",
        "gemeentenaam": "Amsterdam",
        "wijkcode": "WK036300",
        "wijknaam": "Centrum",
        "buurtcode": "BU03630000",
        "buurtnaam": "Burgwallen-Oude Zijde",
        "postcode": "1012LG"
      }
    ]
  }
}`

func TestResolve_ParsesDocumentAndCoordinates(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("fq"); got != "type:adres" {
			t.Errorf("fq = %q, want type:adres", got)
		}
		w.Write([]byte(damrakDoc))
	}))
	defer srv.Close()

	r := New(fakeConfig{baseURL: srv.URL}, logger.New("test"))

	loc, err := r.Resolve(context.Background(), "Damrak 1, Amsterdam")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if loc == nil {
		t.Fatal("expected a location")
	}
	if loc.Latitude != 52.37765 || loc.Longitude != 4.89797 {
		t.Fatalf("coordinates = %v, %v", loc.Latitude, loc.Longitude)
	}
	if loc.RdX == nil || *loc.RdX != 121687.0 {
		t.Fatalf("RdX = %v", loc.RdX)
	}
	if loc.MunicipalityCode != "GM0363" {
		t.Fatalf("MunicipalityCode = %q, want GM0363", loc.MunicipalityCode)
	}
	if loc.NeighborhoodCode != "BU03630000" {
		t.Fatalf("NeighborhoodCode = %q", loc.NeighborhoodCode)
	}

	// Second call for the same input must hit the cache.
	if _, err := r.Resolve(context.Background(), "Damrak 1, Amsterdam"); err != nil {
		t.Fatalf("cached Resolve: %v", err)
	}
	if calls != 1 {
		t.Fatalf("upstream called %d times, want 1", calls)
	}
}

func TestResolve_CachesNegativeResult(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"response":{"docs":[]}}`))
	}))
	defer srv.Close()

	r := New(fakeConfig{baseURL: srv.URL}, logger.New("test"))

	for i := 0; i < 3; i++ {
		loc, err := r.Resolve(context.Background(), "nergenshuizen 999")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if loc != nil {
			t.Fatalf("expected no match, got %+v", loc)
		}
	}
	if calls != 1 {
		t.Fatalf("negative result not cached: %d upstream calls", calls)
	}
}

func TestResolve_NormalizesListingURL(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(damrakDoc))
	}))
	defer srv.Close()

	r := New(fakeConfig{baseURL: srv.URL}, logger.New("test"))
	if _, err := r.Resolve(context.Background(), "https://www.funda.nl/koop/amsterdam/huis-424242-damrak-1/"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if gotQuery != "huis 424242 damrak 1" {
		t.Fatalf("normalized query = %q", gotQuery)
	}
}

func TestParseWktPoint(t *testing.T) {
	tests := []struct {
		in    string
		wantX float64
		wantY float64
		ok    bool
	}{
		{"POINT(4.89797 52.37765)", 4.89797, 52.37765, true},
		{"  point(121687 487812)  ", 121687, 487812, true},
		{"POLYGON((1 2))", 0, 0, false},
		{"POINT(abc def)", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseWktPoint(tt.in)
		if ok != tt.ok {
			t.Fatalf("ParseWktPoint(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if ok && (got.X != tt.wantX || got.Y != tt.wantY) {
			t.Fatalf("ParseWktPoint(%q) = %+v", tt.in, got)
		}
	}
}
