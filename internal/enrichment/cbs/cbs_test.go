package cbs

import (
	"context"
	"encoding/json"
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
	cbsURL string
}

func (f fakeConfig) GetLocatieserverBaseURL() string      { return "" }
func (f fakeConfig) GetCBSODataBaseURL() string           { return f.cbsURL }
func (f fakeConfig) GetOverpassBaseURL() string           { return "" }
func (f fakeConfig) GetLuchtmeetnetBaseURL() string       { return "" }
func (f fakeConfig) GetLocationCacheTTL() time.Duration   { return time.Hour }
func (f fakeConfig) GetStatsCacheTTL() time.Duration      { return time.Hour }
func (f fakeConfig) GetAmenityCacheTTL() time.Duration    { return time.Hour }
func (f fakeConfig) GetAirQualityCacheTTL() time.Duration { return time.Hour }
func (f fakeConfig) GetReportCacheTTL() time.Duration     { return time.Hour }
func (f fakeConfig) GetDefaultRadiusMeters() int          { return 1000 }

func TestFlexNumber(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{`12.5`, ptr(12.5)},
		{`"42"`, ptr(42.0)},
		{`"  7 "`, ptr(7.0)},
		{`null`, nil},
		{`"       ."`, nil},
		{`-99995`, nil},
		{`"-99997"`, nil},
		{`-5`, ptr(-5.0)},
	}
	for _, tt := range tests {
		var doc struct {
			V FlexNumber `json:"v"`
		}
		if err := json.Unmarshal([]byte(`{"v":`+tt.in+`}`), &doc); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		got := doc.V.Float()
		switch {
		case tt.want == nil && got != nil:
			t.Fatalf("FlexNumber(%s) = %v, want nil", tt.in, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Fatalf("FlexNumber(%s) = %v, want %v", tt.in, got, *tt.want)
		}
	}
}

func TestCandidateCodes_PaddedAndOrdered(t *testing.T) {
	loc := domain.ResolvedLocation{
		NeighborhoodCode: "BU03630000",
		DistrictCode:     "WK036300",
		MunicipalityCode: "GM0363",
	}
	got := loc.CandidateCodes()
	want := []string{"BU03630000", "WK036300  ", "GM0363    "}
	if len(got) != len(want) {
		t.Fatalf("CandidateCodes() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidate[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStatsGet_FallsBackAndShortCircuits(t *testing.T) {
	var queried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("$filter")
		queried = append(queried, filter)
		if strings.Contains(filter, "WK036300") {
			fmt.Fprint(w, `{"value":[{"WijkenEnBuurten":"WK036300  ","SoortRegio_2":"Wijk","AantalInwoners_5":12000,"Bevolkingsdichtheid_34":4500,"GemiddeldeWOZWaardeVanWoningen_36":420,"HuishoudensMetEenLaagInkomen_73":6.5}]}`)
			return
		}
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer srv.Close()

	c := NewStatsClient(fakeConfig{cbsURL: srv.URL}, logger.New("test"))
	loc := domain.ResolvedLocation{
		NeighborhoodCode: "BU03630000",
		DistrictCode:     "WK036300",
		MunicipalityCode: "GM0363",
	}

	stats, err := c.Get(context.Background(), loc)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stats == nil {
		t.Fatal("expected stats from district fallback")
	}
	if stats.RegionCode != "WK036300" {
		t.Fatalf("RegionCode = %q", stats.RegionCode)
	}
	if stats.Residents == nil || *stats.Residents != 12000 {
		t.Fatalf("Residents = %v", stats.Residents)
	}
	if stats.AverageWozValueKeur == nil || *stats.AverageWozValueKeur != 420 {
		t.Fatalf("AverageWozValueKeur = %v", stats.AverageWozValueKeur)
	}

	// Neighborhood miss, district hit, municipality never queried.
	if len(queried) != 2 {
		t.Fatalf("queried %d times (%v), want 2", len(queried), queried)
	}
	if strings.Contains(strings.Join(queried, " "), "GM0363") {
		t.Fatalf("municipality queried despite district hit: %v", queried)
	}

	// A repeat resolves from cache without further upstream calls.
	if _, err := c.Get(context.Background(), loc); err != nil {
		t.Fatalf("cached Get: %v", err)
	}
	if len(queried) != 2 {
		t.Fatalf("cache miss on repeat: %d calls", len(queried))
	}
}

func TestCrimeGet_RatesPer1000(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 2000 residents: 7 burglaries -> 3.5 -> 4 (half away from zero).
		fmt.Fprint(w, `{"value":[{"WijkenEnBuurten":"BU03630000","AantalInwoners_5":2000,"TotaalDiefstalUitWoningSchuurED_106":7,"VernielingMisdrijfTegenOpenbareOrde_107":10,"GeweldsEnSeksueleMisdrijven_108":4}]}`)
	}))
	defer srv.Close()

	c := NewCrimeClient(fakeConfig{cbsURL: srv.URL}, logger.New("test"))
	stats, err := c.Get(context.Background(), domain.ResolvedLocation{NeighborhoodCode: "BU03630000"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stats == nil {
		t.Fatal("expected crime stats")
	}
	if stats.BurglaryPer1000 == nil || *stats.BurglaryPer1000 != 4 {
		t.Fatalf("BurglaryPer1000 = %v, want 4", stats.BurglaryPer1000)
	}
	if stats.VandalismPer1000 == nil || *stats.VandalismPer1000 != 5 {
		t.Fatalf("VandalismPer1000 = %v, want 5", stats.VandalismPer1000)
	}
	if stats.ViolentCrimePer1000 == nil || *stats.ViolentCrimePer1000 != 2 {
		t.Fatalf("ViolentCrimePer1000 = %v, want 2", stats.ViolentCrimePer1000)
	}
	if stats.TotalCrimesPer1000 == nil || *stats.TotalCrimesPer1000 != 11 {
		t.Fatalf("TotalCrimesPer1000 = %v, want 11", stats.TotalCrimesPer1000)
	}
}

func TestCrimeGet_NoResidentsPassesCountsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[{"WijkenEnBuurten":"BU1","AantalInwoners_5":null,"TotaalDiefstalUitWoningSchuurED_106":3,"VernielingMisdrijfTegenOpenbareOrde_107":null,"GeweldsEnSeksueleMisdrijven_108":null}]}`)
	}))
	defer srv.Close()

	c := NewCrimeClient(fakeConfig{cbsURL: srv.URL}, logger.New("test"))
	stats, err := c.Get(context.Background(), domain.ResolvedLocation{NeighborhoodCode: "BU1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stats.BurglaryPer1000 == nil || *stats.BurglaryPer1000 != 3 {
		t.Fatalf("BurglaryPer1000 = %v, want raw count 3", stats.BurglaryPer1000)
	}
	if stats.TotalCrimesPer1000 == nil || *stats.TotalCrimesPer1000 != 3 {
		t.Fatalf("TotalCrimesPer1000 = %v, want 3", stats.TotalCrimesPer1000)
	}
}

func TestCrimeGet_CachesEmptyRows(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer srv.Close()

	c := NewCrimeClient(fakeConfig{cbsURL: srv.URL}, logger.New("test"))
	loc := domain.ResolvedLocation{NeighborhoodCode: "BU03630000"}

	for i := 0; i < 2; i++ {
		stats, err := c.Get(context.Background(), loc)
		if err != nil {
			t.Fatalf("Get #%d: %v", i+1, err)
		}
		if stats != nil {
			t.Fatalf("Get #%d returned stats for an empty dataset", i+1)
		}
	}

	// The miss is cached per candidate code, so the second lookup must
	// not hit the dataset again.
	if calls != 1 {
		t.Fatalf("upstream queried %d times, want 1", calls)
	}
}

func TestDemographicsGet_MapsRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[{"k_0Tot15Jaar_8":18,"k_15Tot25Jaar_9":11,"k_25Tot45Jaar_10":29,"k_45Tot65Jaar_11":26,"k_65JaarOfOuder_12":16,"GemiddeldeHuishoudensgrootte_32":"2.3","Koopwoningen_40":61,"Eenpersoonshuishoudens_29":33,"HuishoudensMetKinderen_31":36}]}`)
	}))
	defer srv.Close()

	c := NewDemographicsClient(fakeConfig{cbsURL: srv.URL}, logger.New("test"))
	demo, err := c.Get(context.Background(), domain.ResolvedLocation{MunicipalityCode: "GM0363"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if demo == nil {
		t.Fatal("expected demographics")
	}
	if demo.PercentAge0To14 == nil || *demo.PercentAge0To14 != 18 {
		t.Fatalf("PercentAge0To14 = %v", demo.PercentAge0To14)
	}
	if demo.AverageHouseholdSize == nil || *demo.AverageHouseholdSize != 2.3 {
		t.Fatalf("AverageHouseholdSize = %v", demo.AverageHouseholdSize)
	}
	if demo.PercentFamilyHouseholds == nil || *demo.PercentFamilyHouseholds != 36 {
		t.Fatalf("PercentFamilyHouseholds = %v", demo.PercentFamilyHouseholds)
	}
}

func ptr(v float64) *float64 { return &v }
