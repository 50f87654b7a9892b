package report

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"valora_backend/internal/enrichment/cache"
	"valora_backend/internal/enrichment/domain"
	"valora_backend/platform/apperr"
	"valora_backend/platform/logger"
)

type fakeConfig struct{}

func (fakeConfig) GetLocatieserverBaseURL() string      { return "" }
func (fakeConfig) GetCBSODataBaseURL() string           { return "" }
func (fakeConfig) GetOverpassBaseURL() string           { return "" }
func (fakeConfig) GetLuchtmeetnetBaseURL() string       { return "" }
func (fakeConfig) GetLocationCacheTTL() time.Duration   { return time.Hour }
func (fakeConfig) GetStatsCacheTTL() time.Duration      { return time.Hour }
func (fakeConfig) GetAmenityCacheTTL() time.Duration    { return time.Hour }
func (fakeConfig) GetAirQualityCacheTTL() time.Duration { return time.Hour }
func (fakeConfig) GetReportCacheTTL() time.Duration     { return time.Hour }
func (fakeConfig) GetDefaultRadiusMeters() int          { return 1000 }

type fakeResolver struct {
	loc *domain.ResolvedLocation
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) (*domain.ResolvedLocation, error) {
	return f.loc, nil
}

type fakeSources struct {
	stats        *domain.NeighborhoodStats
	crime        *domain.CrimeStats
	demographics *domain.Demographics
	amenities    *domain.AmenityStats
	air          *domain.AirQualitySnapshot

	statsCalls int
	lastRadius int
}

func (f *fakeSources) Get(_ context.Context, _ domain.ResolvedLocation) (*domain.NeighborhoodStats, error) {
	f.statsCalls++
	return f.stats, nil
}

type crimeSource struct{ f *fakeSources }

func (s crimeSource) Get(_ context.Context, _ domain.ResolvedLocation) (*domain.CrimeStats, error) {
	return s.f.crime, nil
}

type demoSource struct{ f *fakeSources }

func (s demoSource) Get(_ context.Context, _ domain.ResolvedLocation) (*domain.Demographics, error) {
	return s.f.demographics, nil
}

type amenitySource struct{ f *fakeSources }

func (s amenitySource) Get(_ context.Context, _ domain.ResolvedLocation, radiusMeters int) (*domain.AmenityStats, error) {
	s.f.lastRadius = radiusMeters
	return s.f.amenities, nil
}

type airSource struct{ f *fakeSources }

func (s airSource) Get(_ context.Context, _ domain.ResolvedLocation) (*domain.AirQualitySnapshot, error) {
	return s.f.air, nil
}

func newService(resolver AddressResolver, sources *fakeSources, reportCache *cache.JSON) *Service {
	log := logger.New("test")
	if reportCache == nil {
		reportCache = cache.NewJSON(nil, log)
	}
	return NewService(resolver, sources, crimeSource{sources}, demoSource{sources},
		amenitySource{sources}, airSource{sources}, reportCache, fakeConfig{}, log)
}

func amsterdamLocation() *domain.ResolvedLocation {
	return &domain.ResolvedLocation{
		Query:          "damrak 1 amsterdam",
		DisplayAddress: "Damrak 1, 1012LG Amsterdam",
		Latitude:       52.37759,
		Longitude:      4.89797,
	}
}

func ip(v int) *int          { return &v }
func fp(v float64) *float64  { return &v }

func TestBuild_CompositeRenormalizesOverPresentCategories(t *testing.T) {
	sources := &fakeSources{
		stats: &domain.NeighborhoodStats{
			Residents:                  ip(5000),
			PopulationDensity:          ip(3000),
			LowIncomeHouseholdsPercent: fp(5),
			AverageWozValueKeur:        fp(450),
		},
		air: &domain.AirQualitySnapshot{
			StationID:   "NL01",
			StationName: "Amsterdam-Vondelpark",
			Pm25:        fp(8),
		},
	}
	svc := newService(&fakeResolver{loc: amsterdamLocation()}, sources, nil)

	got, err := svc.Build(context.Background(), "damrak 1 amsterdam", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// density 3000 -> 100, low income 5% -> 60, woz 450k -> 100.
	if s := got.CategoryScores["social"]; s != 86.7 {
		t.Fatalf("social = %v, want 86.7", s)
	}
	if s := got.CategoryScores["environment"]; s != 85.0 {
		t.Fatalf("environment = %v, want 85", s)
	}
	if _, ok := got.CategoryScores["amenities"]; ok {
		t.Fatal("amenities should be absent")
	}

	// Weights 0.45 and 0.20 renormalized over the two present
	// categories: (86.7*0.45 + 85*0.20) / 0.65.
	if got.CompositeScore != 86.2 {
		t.Fatalf("CompositeScore = %v, want 86.2", got.CompositeScore)
	}

	wantWarnings := 3 // crime, demographics, amenities... air present, stats present
	if len(got.Warnings) != wantWarnings {
		t.Fatalf("Warnings = %v, want %d entries", got.Warnings, wantWarnings)
	}
}

func TestBuild_AllSourcesDown(t *testing.T) {
	svc := newService(&fakeResolver{loc: amsterdamLocation()}, &fakeSources{}, nil)

	got, err := svc.Build(context.Background(), "damrak 1 amsterdam", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got.CompositeScore != 0 {
		t.Fatalf("CompositeScore = %v, want 0", got.CompositeScore)
	}
	if len(got.CategoryScores) != 0 {
		t.Fatalf("CategoryScores = %v, want empty", got.CategoryScores)
	}
	if len(got.Warnings) != 5 {
		t.Fatalf("Warnings = %v, want 5 entries", got.Warnings)
	}
}

func TestBuild_RadiusClamped(t *testing.T) {
	sources := &fakeSources{}
	svc := newService(&fakeResolver{loc: amsterdamLocation()}, sources, nil)

	got, err := svc.Build(context.Background(), "damrak 1 amsterdam", 50)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sources.lastRadius != minRadiusMeters {
		t.Fatalf("amenity radius = %d, want %d", sources.lastRadius, minRadiusMeters)
	}
	if len(got.Warnings) == 0 || got.Warnings[0] != "Search radius adjusted from 50 to 200 meters (allowed range 200-5000)." {
		t.Fatalf("Warnings = %v", got.Warnings)
	}
}

func TestBuild_EmptyQueryIsValidationError(t *testing.T) {
	svc := newService(&fakeResolver{}, &fakeSources{}, nil)

	if _, err := svc.Build(context.Background(), "", 0); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestBuild_UnresolvableAddressIsValidationError(t *testing.T) {
	svc := newService(&fakeResolver{loc: nil}, &fakeSources{}, nil)

	if _, err := svc.Build(context.Background(), "nergensstraat 99", 0); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestBuild_CachesAssembledReport(t *testing.T) {
	mr := miniredis.RunT(t)
	log := logger.New("test")
	reportCache := cache.NewJSON(redis.NewClient(&redis.Options{Addr: mr.Addr()}), log)

	sources := &fakeSources{
		stats: &domain.NeighborhoodStats{PopulationDensity: ip(2000)},
	}
	svc := newService(&fakeResolver{loc: amsterdamLocation()}, sources, reportCache)

	first, err := svc.Build(context.Background(), "damrak 1 amsterdam", 0)
	if err != nil {
		t.Fatalf("Build #1: %v", err)
	}
	second, err := svc.Build(context.Background(), "damrak 1 amsterdam", 0)
	if err != nil {
		t.Fatalf("Build #2: %v", err)
	}

	if sources.statsCalls != 1 {
		t.Fatalf("stats fetched %d times, want 1", sources.statsCalls)
	}
	if first.CompositeScore != second.CompositeScore {
		t.Fatalf("cached composite %v != fresh %v", second.CompositeScore, first.CompositeScore)
	}
	if len(second.SocialMetrics) != len(first.SocialMetrics) {
		t.Fatalf("cached metrics differ: %d vs %d", len(second.SocialMetrics), len(first.SocialMetrics))
	}
}

func TestScoringBreakpoints(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"density sparse", scoreDensity(400), 65},
		{"density suburban", scoreDensity(1500), 85},
		{"density urban", scoreDensity(3500), 100},
		{"density dense", scoreDensity(6000), 70},
		{"density very dense", scoreDensity(9000), 50},
		{"low income none", scoreLowIncome(0), 100},
		{"low income high", scoreLowIncome(15), 0},
		{"woz floor", scoreWoz(150), 0},
		{"woz ceiling", scoreWoz(500), 100},
		{"total crime low", scoreTotalCrime(20), 100},
		{"total crime extreme", scoreTotalCrime(120), 15},
		{"burglary low", scoreBurglary(2), 100},
		{"violent high", scoreViolentCrime(12), 25},
		{"amenity count mid", scoreAmenityCount(6), 24},
		{"amenity count saturates", scoreAmenityCount(30), 100},
		{"proximity near", scoreAmenityProximity(250), 100},
		{"proximity far", scoreAmenityProximity(2500), 25},
		{"pm25 clean", scorePm25(4), 100},
		{"pm25 dirty", scorePm25(40), 10},
		{"pm10 good", scorePm10(20), 85},
		{"pm10 unhealthy", scorePm10(55), 30},
		{"no2 moderate", scoreNo2(35), 70},
		{"no2 extreme", scoreNo2(90), 15},
		{"o3 clean", scoreO3(50), 100},
		{"o3 poor", scoreO3(140), 50},
		{"owner occupied mid", scoreOwnerOccupied(60), 75},
		{"owner occupied saturates", scoreOwnerOccupied(90), 100},
		{"private rental thin", scorePrivateRental(8), 70},
		{"private rental balanced", scorePrivateRental(30), 100},
		{"private rental dominant", scorePrivateRental(55), 60},
		{"supermarket optimal", scoreProximity(0.8, 1.0, 2.5), 100},
		{"supermarket acceptable", scoreProximity(2.0, 1.0, 2.5), 70},
		{"gp far", scoreProximity(4.0, 1.5, 3.0), 40},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestScoreFamilyFriendly(t *testing.T) {
	tests := []struct {
		name      string
		family    *float64
		age0To14  *float64
		household *float64
		want      *float64
	}{
		{"all neutral", fp(20), fp(15), fp(2), fp(50)},
		{"family boost only", fp(30), nil, nil, fp(65)},
		{"children only", nil, fp(20), nil, fp(60)},
		{"household only", nil, nil, fp(3), fp(65)},
		{"all missing", nil, nil, nil, nil},
	}
	for _, tt := range tests {
		got := scoreFamilyFriendly(tt.family, tt.age0To14, tt.household)
		switch {
		case got == nil && tt.want == nil:
		case got == nil || tt.want == nil || *got != *tt.want:
			t.Fatalf("%s: scoreFamilyFriendly = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestScoreBuildMix(t *testing.T) {
	if got := scoreBuildMix(nil, nil); got != nil {
		t.Fatalf("both missing: got %v, want nil", *got)
	}
	if got := scoreBuildMix(ip(60), nil); got == nil || *got != 70 {
		t.Fatalf("one side missing: got %v, want 70", got)
	}
	if got := scoreBuildMix(ip(50), ip(50)); got == nil || *got != 100 {
		t.Fatalf("balanced: got %v, want 100", got)
	}
	if got := scoreBuildMix(ip(90), ip(10)); got == nil || *got != 40 {
		t.Fatalf("lopsided clamps at floor: got %v, want 40", got)
	}
}
