package pdok

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/logger"
)

func rdLocation(x, y float64) domain.ResolvedLocation {
	return domain.ResolvedLocation{RdX: &x, RdY: &y}
}

func TestClassifySoil(t *testing.T) {
	tests := []struct {
		soil string
		want string
	}{
		{"Veen", "High"},
		{"klei", "Medium"},
		{"zand", "Low"},
		{"leem", "Low"},
		{"moerig", "Unknown"},
	}
	for _, tt := range tests {
		risk, _ := classifySoil(tt.soil)
		if risk != tt.want {
			t.Fatalf("classifySoil(%q) = %q, want %q", tt.soil, risk, tt.want)
		}
	}
}

func TestSoilGet_IntersectsPoint(t *testing.T) {
	var gotFilter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("cql_filter")
		fmt.Fprint(w, `{"features":[{"properties":{"bodemhoofdgroep":"veen"}}]}`)
	}))
	defer srv.Close()

	c := NewSoilClient(logger.New("test"))
	c.endpoint = srv.URL

	risk, err := c.Get(context.Background(), rdLocation(121687, 487812))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if risk == nil || risk.RiskLevel != "High" || risk.SoilType != "veen" {
		t.Fatalf("risk = %+v", risk)
	}
	if !strings.Contains(gotFilter, "INTERSECTS(geometrie,POINT(121687 487812))") {
		t.Fatalf("cql_filter = %q", gotFilter)
	}
}

func TestSoilGet_NoRdCoordinates(t *testing.T) {
	c := NewSoilClient(logger.New("test"))
	risk, err := c.Get(context.Background(), domain.ResolvedLocation{Latitude: 52.3, Longitude: 4.8})
	if err != nil || risk != nil {
		t.Fatalf("Get = %+v, %v; want nil, nil", risk, err)
	}
}

func TestEstimateSolar(t *testing.T) {
	year := func(y float64) *float64 { return &y }

	tests := []struct {
		name      string
		footprint float64
		buildYear *float64
		want      string
		wantKwh   float64
	}{
		// 200 m² -> 80 usable -> 40 panels -> 12000 kWh.
		{"large modern roof", 200, year(1995), "High", 12000},
		// Pre-1930 drops High to Medium.
		{"large old roof", 200, year(1910), "Medium", 12000},
		// 60 m² -> 24 usable -> 12 panels -> 3600 kWh -> High.
		{"threshold high", 60, nil, "High", 3600},
		// 40 m² -> 16 usable -> 8 panels -> 2400 kWh -> Medium.
		{"medium roof", 40, nil, "Medium", 2400},
		// Old building only downgrades High, not Medium.
		{"old medium roof", 40, year(1900), "Medium", 2400},
		// 20 m² -> 8 usable -> 4 panels -> 1200 kWh -> Low.
		{"small roof", 20, nil, "Low", 1200},
	}
	for _, tt := range tests {
		got := EstimateSolar(tt.footprint, tt.buildYear)
		if got.Potential != tt.want {
			t.Fatalf("%s: potential = %q, want %q", tt.name, got.Potential, tt.want)
		}
		if got.EstimatedGenerationKwh != tt.wantKwh {
			t.Fatalf("%s: kWh = %v, want %v", tt.name, got.EstimatedGenerationKwh, tt.wantKwh)
		}
	}
}

func TestBuildingGet_MapsFeature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features":[{"properties":{"oppervlakte":150,"bouwjaar":"1925"}}]}`)
	}))
	defer srv.Close()

	c := NewBuildingClient(logger.New("test"))
	c.endpoint = srv.URL

	got, err := c.Get(context.Background(), rdLocation(121687, 487812))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected a solar estimate")
	}
	// 150 m² -> 60 usable -> 30 panels -> 9000 kWh, but 1925 build year
	// drops it to Medium.
	if got.Potential != "Medium" {
		t.Fatalf("Potential = %q", got.Potential)
	}
	if got.InstallablePanels != 30 {
		t.Fatalf("InstallablePanels = %d", got.InstallablePanels)
	}
}
