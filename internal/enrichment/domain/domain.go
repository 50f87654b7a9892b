// Package domain defines the enrichment value types: resolved locations,
// per-source snapshots and the assembled context report.
package domain

import (
	"strings"
	"time"
)

// ResolvedLocation is a geocoded Dutch address with its administrative
// hierarchy. Coordinates are carried in both WGS84 (lat/lon) and the
// national RD grid (x/y); the latter is required by the WFS services.
type ResolvedLocation struct {
	Query            string   `json:"query"`
	DisplayAddress   string   `json:"displayAddress"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	RdX              *float64 `json:"rdX,omitempty"`
	RdY              *float64 `json:"rdY,omitempty"`
	MunicipalityCode string   `json:"municipalityCode,omitempty"`
	MunicipalityName string   `json:"municipalityName,omitempty"`
	DistrictCode     string   `json:"districtCode,omitempty"`
	DistrictName     string   `json:"districtName,omitempty"`
	NeighborhoodCode string   `json:"neighborhoodCode,omitempty"`
	NeighborhoodName string   `json:"neighborhoodName,omitempty"`
	PostalCode       string   `json:"postalCode,omitempty"`
}

// CandidateCodes returns the region codes to try against the statistical
// tables, most specific first, each padded to the table's code width.
func (l ResolvedLocation) CandidateCodes() []string {
	var codes []string
	for _, code := range []string{l.NeighborhoodCode, l.DistrictCode, l.MunicipalityCode} {
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if len(trimmed) < 10 {
			trimmed += strings.Repeat(" ", 10-len(trimmed))
		}
		codes = append(codes, trimmed)
	}
	return codes
}

// NeighborhoodStats holds the key-figures row of one administrative region.
type NeighborhoodStats struct {
	RegionCode                 string   `json:"regionCode"`
	RegionType                 string   `json:"regionType"`
	Residents                  *int     `json:"residents,omitempty"`
	PopulationDensity          *int     `json:"populationDensity,omitempty"`
	AverageWozValueKeur        *float64 `json:"averageWozValueKeur,omitempty"`
	LowIncomeHouseholdsPercent *float64 `json:"lowIncomeHouseholdsPercent,omitempty"`

	Men                       *int     `json:"men,omitempty"`
	Women                     *int     `json:"women,omitempty"`
	Age0To15                  *int     `json:"age0To15,omitempty"`
	Age15To25                 *int     `json:"age15To25,omitempty"`
	Age25To45                 *int     `json:"age25To45,omitempty"`
	Age45To65                 *int     `json:"age45To65,omitempty"`
	Age65Plus                 *int     `json:"age65Plus,omitempty"`
	SingleHouseholds          *int     `json:"singleHouseholds,omitempty"`
	HouseholdsWithoutChildren *int     `json:"householdsWithoutChildren,omitempty"`
	HouseholdsWithChildren    *int     `json:"householdsWithChildren,omitempty"`
	AverageHouseholdSize      *float64 `json:"averageHouseholdSize,omitempty"`
	Urbanity                  string   `json:"urbanity,omitempty"`

	AverageIncomePerRecipient  *float64 `json:"averageIncomePerRecipient,omitempty"`
	AverageIncomePerInhabitant *float64 `json:"averageIncomePerInhabitant,omitempty"`
	EducationLow               *int     `json:"educationLow,omitempty"`
	EducationMedium            *int     `json:"educationMedium,omitempty"`
	EducationHigh              *int     `json:"educationHigh,omitempty"`

	PercentageOwnerOccupied *int `json:"percentageOwnerOccupied,omitempty"`
	PercentageRental        *int `json:"percentageRental,omitempty"`
	PercentageSocialHousing *int `json:"percentageSocialHousing,omitempty"`
	PercentagePrivateRental *int `json:"percentagePrivateRental,omitempty"`
	PercentagePre2000       *int `json:"percentagePre2000,omitempty"`
	PercentagePost2000      *int `json:"percentagePost2000,omitempty"`
	PercentageMultiFamily   *int `json:"percentageMultiFamily,omitempty"`

	CarsPerHousehold *float64 `json:"carsPerHousehold,omitempty"`
	CarDensity       *int     `json:"carDensity,omitempty"`
	TotalCars        *int     `json:"totalCars,omitempty"`

	DistanceToGp          *float64 `json:"distanceToGp,omitempty"`
	DistanceToSupermarket *float64 `json:"distanceToSupermarket,omitempty"`
	DistanceToDaycare     *float64 `json:"distanceToDaycare,omitempty"`
	DistanceToSchool      *float64 `json:"distanceToSchool,omitempty"`
	SchoolsWithin3km      *float64 `json:"schoolsWithin3km,omitempty"`

	RetrievedAt time.Time `json:"retrievedAt"`
}

// CrimeStats holds registered-crime rates per 1000 residents.
type CrimeStats struct {
	TotalCrimesPer1000  *int      `json:"totalCrimesPer1000,omitempty"`
	BurglaryPer1000     *int      `json:"burglaryPer1000,omitempty"`
	ViolentCrimePer1000 *int      `json:"violentCrimePer1000,omitempty"`
	TheftPer1000        *int      `json:"theftPer1000,omitempty"`
	VandalismPer1000    *int      `json:"vandalismPer1000,omitempty"`
	RetrievedAt         time.Time `json:"retrievedAt"`
}

// Demographics holds the age and household composition of a region.
type Demographics struct {
	PercentAge0To14         *int      `json:"percentAge0To14,omitempty"`
	PercentAge15To24        *int      `json:"percentAge15To24,omitempty"`
	PercentAge25To44        *int      `json:"percentAge25To44,omitempty"`
	PercentAge45To64        *int      `json:"percentAge45To64,omitempty"`
	PercentAge65Plus        *int      `json:"percentAge65Plus,omitempty"`
	AverageHouseholdSize    *float64  `json:"averageHouseholdSize,omitempty"`
	PercentOwnerOccupied    *int      `json:"percentOwnerOccupied,omitempty"`
	PercentSingleHouseholds *int      `json:"percentSingleHouseholds,omitempty"`
	PercentFamilyHouseholds *int      `json:"percentFamilyHouseholds,omitempty"`
	RetrievedAt             time.Time `json:"retrievedAt"`
}

// AmenityStats counts nearby points of interest by category.
type AmenityStats struct {
	SchoolCount                  int       `json:"schoolCount"`
	SupermarketCount             int       `json:"supermarketCount"`
	ParkCount                    int       `json:"parkCount"`
	HealthcareCount              int       `json:"healthcareCount"`
	TransitStopCount             int       `json:"transitStopCount"`
	ChargingStationCount         int       `json:"chargingStationCount"`
	NearestAmenityDistanceMeters *float64  `json:"nearestAmenityDistanceMeters,omitempty"`
	DiversityScore               float64   `json:"diversityScore"`
	RetrievedAt                  time.Time `json:"retrievedAt"`
}

// AirQualitySnapshot is the latest reading of the nearest measuring station.
type AirQualitySnapshot struct {
	StationID             string     `json:"stationId"`
	StationName           string     `json:"stationName"`
	StationDistanceMeters float64    `json:"stationDistanceMeters"`
	Pm25                  *float64   `json:"pm25,omitempty"`
	Pm10                  *float64   `json:"pm10,omitempty"`
	No2                   *float64   `json:"no2,omitempty"`
	O3                    *float64   `json:"o3,omitempty"`
	MeasuredAt            *time.Time `json:"measuredAt,omitempty"`
	RetrievedAt           time.Time  `json:"retrievedAt"`
}

// FoundationRisk classifies subsidence risk by the dominant soil group.
type FoundationRisk struct {
	RiskLevel   string    `json:"riskLevel"`
	SoilType    string    `json:"soilType"`
	Description string    `json:"description"`
	RetrievedAt time.Time `json:"retrievedAt"`
}

// SolarPotential is a rough rooftop-solar estimate from the building
// footprint. Heuristic, not a physical simulation.
type SolarPotential struct {
	Potential              string    `json:"potential"`
	RoofAreaM2             float64   `json:"roofAreaM2"`
	InstallablePanels      int       `json:"installablePanels"`
	EstimatedGenerationKwh float64   `json:"estimatedGenerationKwh"`
	RetrievedAt            time.Time `json:"retrievedAt"`
}

// WozValuation is the most recent official property valuation.
type WozValuation struct {
	Value         int       `json:"value"`
	ReferenceDate time.Time `json:"referenceDate"`
	Source        string    `json:"source"`
}

// ContextMetric is one normalized report line: a raw value with unit, an
// optional 0-100 score and a source label.
type ContextMetric struct {
	Key    string   `json:"key"`
	Label  string   `json:"label"`
	Value  *float64 `json:"value,omitempty"`
	Unit   string   `json:"unit,omitempty"`
	Score  *float64 `json:"score,omitempty"`
	Source string   `json:"source"`
	Note   string   `json:"note,omitempty"`
}

// SourceAttribution records which upstream dataset contributed to a report.
type SourceAttribution struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	License     string    `json:"license"`
	RetrievedAt time.Time `json:"retrievedAt"`
}

// ContextReport is the per-location livability aggregate.
type ContextReport struct {
	Location ResolvedLocation `json:"location"`

	SocialMetrics       []ContextMetric `json:"socialMetrics"`
	SafetyMetrics       []ContextMetric `json:"safetyMetrics"`
	DemographicsMetrics []ContextMetric `json:"demographicsMetrics"`
	HousingMetrics      []ContextMetric `json:"housingMetrics"`
	MobilityMetrics     []ContextMetric `json:"mobilityMetrics"`
	AmenityMetrics      []ContextMetric `json:"amenityMetrics"`
	EnvironmentMetrics  []ContextMetric `json:"environmentMetrics"`

	CompositeScore float64            `json:"compositeScore"`
	CategoryScores map[string]float64 `json:"categoryScores"`

	Sources  []SourceAttribution `json:"sources"`
	Warnings []string            `json:"warnings"`
}
