package report

import "math"

// Category weights for the composite score. Only the three categories
// that proved predictive in backtesting are weighted; the remaining
// categories are reported but do not move the composite.
const (
	weightSocial      = 0.45
	weightAmenities   = 0.35
	weightEnvironment = 0.20
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// scoreDensity favors moderately urban neighborhoods: very sparse areas
// lack amenities, very dense ones trade away space and quiet.
func scoreDensity(perKm2 float64) float64 {
	switch {
	case perKm2 <= 500:
		return 65
	case perKm2 <= 1500:
		return 85
	case perKm2 <= 3500:
		return 100
	case perKm2 <= 7000:
		return 70
	default:
		return 50
	}
}

func scoreLowIncome(percent float64) float64 {
	return clamp(100-percent*8, 0, 100)
}

// scoreWoz maps the average property value (in thousands of euros) onto
// 0-100, saturating at 450k.
func scoreWoz(keur float64) float64 {
	return clamp((keur-150)/3, 0, 100)
}

func scoreTotalCrime(per1000 float64) float64 {
	switch {
	case per1000 <= 20:
		return 100
	case per1000 <= 35:
		return 85
	case per1000 <= 50:
		return 70
	case per1000 <= 75:
		return 50
	case per1000 <= 100:
		return 30
	default:
		return 15
	}
}

func scoreBurglary(per1000 float64) float64 {
	switch {
	case per1000 <= 2:
		return 100
	case per1000 <= 5:
		return 80
	case per1000 <= 10:
		return 60
	case per1000 <= 15:
		return 40
	default:
		return 20
	}
}

func scoreViolentCrime(per1000 float64) float64 {
	switch {
	case per1000 <= 2:
		return 100
	case per1000 <= 5:
		return 75
	case per1000 <= 10:
		return 50
	default:
		return 25
	}
}

// scoreFamilyFriendly combines family-household share, share of young
// children and household size around neutral baselines of 20%, 15% and
// 2.0 persons. Missing components leave the baseline untouched; with no
// components at all there is no score.
func scoreFamilyFriendly(familyPercent, age0To14Percent, householdSize *float64) *float64 {
	if familyPercent == nil && age0To14Percent == nil && householdSize == nil {
		return nil
	}
	score := 50.0
	if familyPercent != nil {
		score += (*familyPercent - 20) * 1.5
	}
	if age0To14Percent != nil {
		score += (*age0To14Percent - 15) * 2
	}
	if householdSize != nil {
		score += (*householdSize - 2) * 15
	}
	return scored(clamp(score, 0, 100))
}

// scoreAmenityCount grades the amenity volume in the radius: 25 total
// amenities saturate the score.
func scoreAmenityCount(total int) float64 {
	return clamp(float64(total)*4, 0, 100)
}

func scoreAmenityProximity(meters float64) float64 {
	switch {
	case meters <= 250:
		return 100
	case meters <= 500:
		return 85
	case meters <= 1000:
		return 70
	case meters <= 1500:
		return 55
	case meters <= 2000:
		return 40
	default:
		return 25
	}
}

func scorePm25(ugm3 float64) float64 {
	switch {
	case ugm3 <= 5:
		return 100
	case ugm3 <= 10:
		return 85
	case ugm3 <= 15:
		return 70
	case ugm3 <= 25:
		return 50
	case ugm3 <= 35:
		return 25
	default:
		return 10
	}
}

func scorePm10(ugm3 float64) float64 {
	switch {
	case ugm3 <= 15:
		return 100
	case ugm3 <= 25:
		return 85
	case ugm3 <= 35:
		return 70
	case ugm3 <= 45:
		return 50
	case ugm3 <= 60:
		return 30
	default:
		return 15
	}
}

func scoreNo2(ugm3 float64) float64 {
	switch {
	case ugm3 <= 20:
		return 100
	case ugm3 <= 30:
		return 85
	case ugm3 <= 40:
		return 70
	case ugm3 <= 60:
		return 50
	case ugm3 <= 80:
		return 30
	default:
		return 15
	}
}

func scoreO3(ugm3 float64) float64 {
	switch {
	case ugm3 <= 60:
		return 100
	case ugm3 <= 90:
		return 85
	case ugm3 <= 120:
		return 70
	case ugm3 <= 150:
		return 50
	case ugm3 <= 180:
		return 30
	default:
		return 15
	}
}

func scoreOwnerOccupied(percent float64) float64 {
	return clamp(percent*1.25, 0, 100)
}

// scorePrivateRental rewards a healthy private-rental share: a thin
// market scores below a balanced one, a dominant one below that.
func scorePrivateRental(percent float64) float64 {
	switch {
	case percent <= 10:
		return 70
	case percent <= 20:
		return 85
	case percent <= 35:
		return 100
	case percent <= 50:
		return 80
	default:
		return 60
	}
}

// scoreBuildMix grades the balance between pre- and post-2000 housing
// stock. With only one side known the mix is scored neutral.
func scoreBuildMix(pre2000, post2000 *int) *float64 {
	if pre2000 == nil && post2000 == nil {
		return nil
	}
	if pre2000 == nil || post2000 == nil {
		return scored(70)
	}
	delta := math.Abs(float64(*pre2000 - *post2000))
	return scored(clamp(100-delta*1.2, 40, 100))
}

// scoreProximity grades a travel distance in kilometers against an
// optimal and an acceptable threshold.
func scoreProximity(km, optimalKm, acceptableKm float64) float64 {
	switch {
	case km <= optimalKm:
		return 100
	case km <= acceptableKm:
		return 70
	default:
		return 40
	}
}
