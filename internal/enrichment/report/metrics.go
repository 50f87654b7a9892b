package report

import "valora_backend/internal/enrichment/domain"

const (
	sourceCBS          = "CBS"
	sourceCrime        = "CBS/Politie"
	sourceOSM          = "OpenStreetMap"
	sourceLuchtmeetnet = "Luchtmeetnet"
	sourceComposite    = "Composite"
)

func intVal(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func scored(score float64) *float64 {
	return &score
}

// metric builds a report line; value and score may be nil for
// informational rows.
func metric(key, label string, value *float64, unit string, score *float64, source string) domain.ContextMetric {
	return domain.ContextMetric{Key: key, Label: label, Value: value, Unit: unit, Score: score, Source: source}
}

func socialMetrics(stats *domain.NeighborhoodStats) []domain.ContextMetric {
	if stats == nil {
		return nil
	}
	var out []domain.ContextMetric

	out = append(out, metric("residents", "Residents", intVal(stats.Residents), "", nil, sourceCBS))

	if v := intVal(stats.PopulationDensity); v != nil {
		out = append(out, metric("population_density", "Population density", v, "per km²", scored(scoreDensity(*v)), sourceCBS))
	}
	if v := stats.LowIncomeHouseholdsPercent; v != nil {
		out = append(out, metric("low_income_households", "Low-income households", v, "%", scored(scoreLowIncome(*v)), sourceCBS))
	}
	if v := stats.AverageWozValueKeur; v != nil {
		out = append(out, metric("average_woz", "Average WOZ value", v, "k€", scored(scoreWoz(*v)), sourceCBS))
	}
	return out
}

func safetyMetrics(crime *domain.CrimeStats) []domain.ContextMetric {
	if crime == nil {
		return nil
	}
	var out []domain.ContextMetric

	if v := intVal(crime.TotalCrimesPer1000); v != nil {
		out = append(out, metric("total_crimes", "Registered crimes", v, "per 1000 residents", scored(scoreTotalCrime(*v)), sourceCrime))
	}
	if v := intVal(crime.BurglaryPer1000); v != nil {
		out = append(out, metric("burglary", "Burglaries", v, "per 1000 residents", scored(scoreBurglary(*v)), sourceCrime))
	}
	if v := intVal(crime.ViolentCrimePer1000); v != nil {
		out = append(out, metric("violent_crime", "Violent crimes", v, "per 1000 residents", scored(scoreViolentCrime(*v)), sourceCrime))
	}
	out = append(out,
		metric("theft", "Thefts", intVal(crime.TheftPer1000), "per 1000 residents", nil, sourceCrime),
		metric("vandalism", "Vandalism", intVal(crime.VandalismPer1000), "per 1000 residents", nil, sourceCrime),
	)
	return out
}

func demographicsMetrics(demo *domain.Demographics) []domain.ContextMetric {
	if demo == nil {
		return nil
	}
	out := []domain.ContextMetric{
		metric("age_0_14", "Age 0-14", intVal(demo.PercentAge0To14), "%", nil, sourceCBS),
		metric("age_15_24", "Age 15-24", intVal(demo.PercentAge15To24), "%", nil, sourceCBS),
		metric("age_25_44", "Age 25-44", intVal(demo.PercentAge25To44), "%", nil, sourceCBS),
		metric("age_45_64", "Age 45-64", intVal(demo.PercentAge45To64), "%", nil, sourceCBS),
		metric("age_65_plus", "Age 65+", intVal(demo.PercentAge65Plus), "%", nil, sourceCBS),
		metric("avg_household_size", "Average household size", demo.AverageHouseholdSize, "persons", nil, sourceCBS),
		metric("owner_occupied", "Owner-occupied homes", intVal(demo.PercentOwnerOccupied), "%", nil, sourceCBS),
		metric("single_households", "Single-person households", intVal(demo.PercentSingleHouseholds), "%", nil, sourceCBS),
	}

	if score := scoreFamilyFriendly(intVal(demo.PercentFamilyHouseholds), intVal(demo.PercentAge0To14), demo.AverageHouseholdSize); score != nil {
		out = append(out, metric("family_friendly", "Family friendliness", score, "index", score, sourceCBS))
	}
	return out
}

func housingMetrics(stats *domain.NeighborhoodStats) []domain.ContextMetric {
	if stats == nil {
		return nil
	}

	owner := intVal(stats.PercentageOwnerOccupied)
	var ownerScore *float64
	if owner != nil {
		ownerScore = scored(scoreOwnerOccupied(*owner))
	}
	privateRental := intVal(stats.PercentagePrivateRental)
	var privateRentalScore *float64
	if privateRental != nil {
		privateRentalScore = scored(scorePrivateRental(*privateRental))
	}
	buildMix := scoreBuildMix(stats.PercentagePre2000, stats.PercentagePost2000)

	return []domain.ContextMetric{
		metric("housing_owner", "Owner-occupied", owner, "%", ownerScore, sourceCBS),
		metric("housing_rental", "Rental", intVal(stats.PercentageRental), "%", nil, sourceCBS),
		metric("housing_social", "Social housing", intVal(stats.PercentageSocialHousing), "%", nil, sourceCBS),
		metric("housing_private_rental", "Private rental", privateRental, "%", privateRentalScore, sourceCBS),
		metric("housing_pre2000", "Built before 2000", intVal(stats.PercentagePre2000), "%", nil, sourceCBS),
		metric("housing_post2000", "Built 2000 or later", intVal(stats.PercentagePost2000), "%", nil, sourceCBS),
		metric("housing_build_mix", "Build-year mix", intVal(stats.PercentagePost2000), "%", buildMix, sourceComposite),
		metric("housing_multifamily", "Multi-family buildings", intVal(stats.PercentageMultiFamily), "%", nil, sourceCBS),
	}
}

func mobilityMetrics(stats *domain.NeighborhoodStats) []domain.ContextMetric {
	if stats == nil {
		return nil
	}
	return []domain.ContextMetric{
		metric("mobility_cars_household", "Cars per household", stats.CarsPerHousehold, "", nil, sourceCBS),
		metric("mobility_car_density", "Car density", intVal(stats.CarDensity), "per km²", nil, sourceCBS),
		metric("mobility_total_cars", "Total cars", intVal(stats.TotalCars), "", nil, sourceCBS),
	}
}

func amenityMetrics(amenities *domain.AmenityStats, stats *domain.NeighborhoodStats) []domain.ContextMetric {
	var out []domain.ContextMetric

	if amenities != nil {
		total := amenities.SchoolCount + amenities.SupermarketCount + amenities.ParkCount +
			amenities.HealthcareCount + amenities.TransitStopCount + amenities.ChargingStationCount

		school := float64(amenities.SchoolCount)
		supermarket := float64(amenities.SupermarketCount)
		park := float64(amenities.ParkCount)
		healthcare := float64(amenities.HealthcareCount)
		transit := float64(amenities.TransitStopCount)
		charging := float64(amenities.ChargingStationCount)
		diversity := amenities.DiversityScore

		out = append(out,
			metric("schools", "Schools", &school, "", nil, sourceOSM),
			metric("supermarkets", "Supermarkets", &supermarket, "", nil, sourceOSM),
			metric("parks", "Parks", &park, "", nil, sourceOSM),
			metric("healthcare", "Healthcare", &healthcare, "", nil, sourceOSM),
			metric("transit_stops", "Transit stops", &transit, "", nil, sourceOSM),
			metric("charging_stations", "Charging stations", &charging, "", nil, sourceOSM),
			metric("amenity_diversity", "Amenity diversity", &diversity, "%", &diversity, sourceOSM),
		)
		if amenities.NearestAmenityDistanceMeters != nil {
			d := *amenities.NearestAmenityDistanceMeters
			out = append(out, metric("amenity_proximity", "Nearest amenity", &d, "m", scored(scoreAmenityProximity(d)), sourceOSM))
		}
		count := float64(total)
		out = append(out, metric("amenity_count_score", "Amenity count", &count, "", scored(scoreAmenityCount(total)), sourceOSM))
	}

	if stats != nil {
		if v := stats.DistanceToSupermarket; v != nil {
			out = append(out, metric("dist_supermarket", "Distance to supermarket", v, "km", scored(scoreProximity(*v, 1.0, 2.5)), sourceCBS))
		}
		if v := stats.DistanceToGp; v != nil {
			out = append(out, metric("dist_gp", "Distance to GP", v, "km", scored(scoreProximity(*v, 1.5, 3.0)), sourceCBS))
		}
		if v := stats.DistanceToSchool; v != nil {
			out = append(out, metric("dist_school", "Distance to school", v, "km", scored(scoreProximity(*v, 1.0, 3.0)), sourceCBS))
		}
		out = append(out,
			metric("dist_daycare", "Distance to daycare", stats.DistanceToDaycare, "km", nil, sourceCBS),
			metric("schools_3km", "Schools within 3 km", stats.SchoolsWithin3km, "", nil, sourceCBS),
		)
	}
	return out
}

func environmentMetrics(air *domain.AirQualitySnapshot) []domain.ContextMetric {
	if air == nil {
		return nil
	}
	var out []domain.ContextMetric

	if v := air.Pm25; v != nil {
		out = append(out, metric("pm25", "Fine particulate matter (PM2.5)", v, "µg/m³", scored(scorePm25(*v)), sourceLuchtmeetnet))
	}
	if v := air.Pm10; v != nil {
		out = append(out, metric("pm10", "Coarse particulate matter (PM10)", v, "µg/m³", scored(scorePm10(*v)), sourceLuchtmeetnet))
	}
	if v := air.No2; v != nil {
		out = append(out, metric("no2", "Nitrogen dioxide (NO2)", v, "µg/m³", scored(scoreNo2(*v)), sourceLuchtmeetnet))
	}
	if v := air.O3; v != nil {
		out = append(out, metric("o3", "Ozone (O3)", v, "µg/m³", scored(scoreO3(*v)), sourceLuchtmeetnet))
	}

	station := metric("air_station", "Measuring station", nil, "", nil, sourceLuchtmeetnet)
	station.Note = air.StationName
	distance := air.StationDistanceMeters
	out = append(out,
		station,
		metric("air_station_distance", "Station distance", &distance, "m", nil, sourceLuchtmeetnet),
	)
	return out
}
