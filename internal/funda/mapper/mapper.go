// Package mapper converts the raw acquisition payloads into listing
// records. All merge functions are non-destructive: a field is only
// overwritten when the incoming payload actually carries a value, so a
// partial fetch never erases previously enriched data.
package mapper

import (
	"strings"
	"unicode"

	"valora_backend/internal/funda/client"
	"valora_backend/internal/funda/domain"
	"valora_backend/internal/funda/parse"

	"github.com/nyaruka/phonenumbers"
)

// featureKey constants are the Dutch labels the source uses in its
// characteristic trees.
const (
	keyLivingArea  = "Wonen"
	keyPlotArea    = "Perceel"
	keyBalcony     = "Gebouwgebonden buitenruimte"
	keyStorage     = "Externe bergruimte"
	keyVolume      = "Inhoud"
	keyRooms       = "Aantal kamers"
	keyBathrooms   = "Aantal badkamers"
	keyEnergyLabel = "Energielabel"
	keyYearBuilt   = "Bouwjaar"
	keyVve         = "Bijdrage VvE"
	keyBoiler      = "CV-ketel"
)

// FromSearchSummary builds a new listing from one search-page row. The
// search page carries only headline data; everything else stays nil until
// a detail fetch fills it.
func FromSearchSummary(s client.SearchSummary, region string) domain.Listing {
	listing := domain.Listing{
		ExternalID: s.GlobalID,
		URL:        parse.AbsoluteURL(s.DetailURL),
		Region:     region,
		Address:    s.Address,
		City:       s.City,
		Status:     domain.StatusUnknown,
	}
	if s.PriceText != "" {
		text := s.PriceText
		listing.PriceText = &text
		if price, ok := parse.Price(s.PriceText); ok {
			listing.Price = &price
		}
	}
	if s.AgentName != "" {
		agent := s.AgentName
		listing.AgentName = &agent
	}
	if s.ImageURL != "" {
		listing.MediaURLs = []string{s.ImageURL}
	}
	return listing
}

// ApplySummary merges the detail-summary payload into the listing.
func ApplySummary(listing *domain.Listing, s *client.ListingSummary) {
	if s == nil {
		return
	}
	if s.Street != "" {
		listing.Address = s.Street
	}
	if s.City != "" {
		listing.City = s.City
	}
	if s.PostalCode != "" {
		code := s.PostalCode
		listing.PostalCode = &code
	}
	if s.SellingPrice != "" {
		text := s.SellingPrice
		listing.PriceText = &text
		if price, ok := parse.Price(s.SellingPrice); ok {
			listing.Price = &price
		}
	}
	if s.LivingArea != "" {
		if area, ok := parse.Area(s.LivingArea); ok {
			listing.LivingAreaM2 = &area
		}
	}
	if s.Bedrooms != "" {
		if n, ok := parse.Bedrooms(s.Bedrooms); ok {
			listing.Bedrooms = &n
		}
	}
	if s.EnergyLabel != "" {
		label := strings.TrimSpace(s.EnergyLabel)
		listing.EnergyLabel = &label
	}
	if len(s.BrokerNames) > 0 && s.BrokerNames[0] != "" {
		agent := s.BrokerNames[0]
		listing.AgentName = &agent
	}
	if s.PublicationDate != nil {
		published := *s.PublicationDate
		listing.PublishedAt = &published
	}
	listing.Status = MapStatus(s.ListingStatus, s.IsSoldOrRented)
}

// MapStatus normalizes the source's sale status. The explicit status
// string wins when it is recognizable; otherwise the sold-or-rented flag
// decides between sold and unknown.
func MapStatus(raw string, isSoldOrRented bool) domain.Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "beschikbaar", "available":
		return domain.StatusAvailable
	case "verkocht", "sold":
		return domain.StatusSold
	case "verhuurd", "rented":
		return domain.StatusRented
	case "onder bod":
		return domain.StatusUnderOffer
	case "onder optie":
		return domain.StatusUnderOption
	}
	if isSoldOrRented {
		return domain.StatusSold
	}
	return domain.StatusUnknown
}

// ApplyRichPayload merges a hydration payload into the listing: the free
// text description, the flattened characteristic tree and the data points
// extracted from it, photo URLs and coordinates.
func ApplyRichPayload(listing *domain.Listing, data *client.RichListingData) {
	if data == nil {
		return
	}

	if data.Description != nil && data.Description.Content != "" {
		content := data.Description.Content
		listing.Description = &content
	}

	if data.Features != nil {
		// Measured areas are the most reliable source when present.
		if spec := propertySpecification(data); spec != nil {
			if spec.SelectedArea > 0 {
				area := float64(spec.SelectedArea)
				listing.LivingAreaM2 = &area
			}
			if spec.SelectedPlotArea > 0 {
				area := float64(spec.SelectedPlotArea)
				listing.PlotAreaM2 = &area
			}
		}

		features := map[string]string{}
		for _, group := range featureGroups(data.Features) {
			FlattenFeatures(group.Items, features)
		}
		if len(features) > 0 {
			listing.Features = features
		}

		applyFeatureMap(listing, features)
	}

	if data.Media != nil {
		var urls []string
		for _, item := range data.Media.Items {
			if item.ID != "" {
				urls = append(urls, client.PhotoURL(item.ID))
			}
		}
		if len(urls) > 0 {
			listing.MediaURLs = urls
		}
	}

	if data.Coordinates != nil {
		if data.Coordinates.Lat != nil {
			lat := *data.Coordinates.Lat
			listing.Latitude = &lat
		}
		if data.Coordinates.Lng != nil {
			lng := *data.Coordinates.Lng
			listing.Longitude = &lng
		}
	}
}

func propertySpecification(data *client.RichListingData) *client.PropertySpecification {
	if data.ObjectType == nil {
		return nil
	}
	return data.ObjectType.PropertySpecification
}

func featureGroups(groups *client.FeatureGroups) []*client.FeatureGroup {
	all := []*client.FeatureGroup{groups.Layout, groups.Dimensions, groups.Energy, groups.Construction}
	present := all[:0]
	for _, g := range all {
		if g != nil {
			present = append(present, g)
		}
	}
	return present
}

func applyFeatureMap(listing *domain.Listing, features map[string]string) {
	if listing.LivingAreaM2 == nil {
		if raw, ok := featureValue(features, keyLivingArea); ok {
			if area, parsed := parse.Area(raw); parsed {
				listing.LivingAreaM2 = &area
			}
		}
	}
	if listing.PlotAreaM2 == nil {
		if raw, ok := featureValue(features, keyPlotArea); ok {
			if area, parsed := parse.Area(raw); parsed {
				listing.PlotAreaM2 = &area
			}
		}
	}
	if raw, ok := featureValue(features, keyBalcony); ok {
		if area, parsed := parse.Area(raw); parsed {
			listing.BalconyAreaM2 = &area
		}
	}
	if raw, ok := featureValue(features, keyStorage); ok {
		if area, parsed := parse.Area(raw); parsed {
			listing.StorageAreaM2 = &area
		}
	}
	if raw, ok := featureValue(features, keyVolume); ok {
		if volume, parsed := parse.Area(raw); parsed {
			listing.VolumeM3 = &volume
		}
	}

	// Garden area takes the largest "tuin" entry carrying an m² value, so
	// "Achtertuin 120 m²" wins over "Voortuin 20 m²".
	for key, value := range features {
		if !strings.Contains(strings.ToLower(key), "tuin") || !strings.Contains(value, "m²") {
			continue
		}
		area, parsed := parse.Area(value)
		if !parsed {
			continue
		}
		if listing.GardenAreaM2 == nil || area > *listing.GardenAreaM2 {
			listing.GardenAreaM2 = &area
		}
	}

	if raw, ok := featureValue(features, keyRooms); ok {
		if n, parsed := parse.Bedrooms(raw); parsed {
			listing.Bedrooms = &n
		}
	}
	if raw, ok := featureValue(features, keyBathrooms); ok {
		if n, parsed := parse.Number(raw); parsed {
			listing.Bathrooms = &n
		}
	}
	if raw, ok := featureValue(features, keyEnergyLabel); ok {
		label := strings.TrimSpace(raw)
		listing.EnergyLabel = &label
	}
	if raw, ok := featureValue(features, keyYearBuilt); ok {
		if year, parsed := parse.Year(raw); parsed {
			listing.ConstructionYear = &year
		}
	}
	if raw, ok := featureValue(features, keyVve); ok {
		if cost, parsed := parse.Price(raw); parsed {
			listing.VveContribution = &cost
		}
	}
	if raw, ok := featureValue(features, keyBoiler); ok {
		brand, year, parsed := parse.Boiler(raw)
		if parsed {
			listing.BoilerBrand = &brand
			if year > 0 {
				listing.BoilerYear = &year
			}
		}
	}

	if id, ok := cadastralDesignation(features); ok {
		listing.CadastralID = &id
	}
}

// cadastralDesignation finds a cadastral parcel key in the flattened map.
// Those appear as value-less keys like "AMSTERDAM Q 1234" rather than as
// labeled fields, so a shape heuristic picks them out.
func cadastralDesignation(features map[string]string) (string, bool) {
	for key, value := range features {
		if len(key) <= 5 {
			continue
		}
		if strings.Contains(key, "kamers") || strings.Contains(key, "bouw") {
			continue
		}
		if !containsUpper(key) || !containsDigit(key) {
			continue
		}
		if value == "" || value == "Title" {
			return key, true
		}
	}
	return "", false
}

// ApplyContactDetails merges broker contact data into the listing. Phone
// numbers are normalized to E.164 assuming Dutch numbering when no
// country prefix is present.
func ApplyContactDetails(listing *domain.Listing, c *client.ContactDetails) {
	if c == nil {
		return
	}
	if c.BrokerOfficeID > 0 {
		id := c.BrokerOfficeID
		listing.BrokerOfficeID = &id
	}
	if c.DisplayName != "" {
		name := c.DisplayName
		listing.AgentName = &name
	}
	if c.LogoURL != "" {
		logo := c.LogoURL
		listing.BrokerLogoURL = &logo
	}
	if c.AssociationCode != "" {
		code := c.AssociationCode
		listing.BrokerAssociationCode = &code
	}
	if c.PhoneNumber != "" {
		phone := NormalizePhone(c.PhoneNumber)
		listing.BrokerPhone = &phone
	}
}

// NormalizePhone formats a broker phone number as E.164 with NL as the
// default region. Unparseable input is returned trimmed but untouched.
func NormalizePhone(raw string) string {
	parsed, err := phonenumbers.Parse(raw, "NL")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return strings.TrimSpace(raw)
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}

// ApplyFiber merges the optic-fiber availability result.
func ApplyFiber(listing *domain.Listing, f *client.FiberAvailability) {
	if f == nil {
		return
	}
	available := f.Available
	listing.FiberAvailable = &available
}

// Merge folds a freshly acquired listing into the stored one. Only fields
// the fresh crawl actually produced overwrite the target; absent fields
// leave earlier enrichment intact.
func Merge(target, source *domain.Listing) {
	if source.Address != "" {
		target.Address = source.Address
	}
	if source.City != "" {
		target.City = source.City
	}
	if source.URL != "" {
		target.URL = source.URL
	}
	if source.Region != "" {
		target.Region = source.Region
	}
	if source.Status != "" && source.Status != domain.StatusUnknown {
		target.Status = source.Status
	}

	mergeFloat(&target.Price, source.Price)
	mergeString(&target.PriceText, source.PriceText)
	mergeString(&target.PostalCode, source.PostalCode)
	mergeString(&target.PropertyType, source.PropertyType)
	mergeInt(&target.Bedrooms, source.Bedrooms)
	mergeInt(&target.Bathrooms, source.Bathrooms)
	mergeFloat(&target.LivingAreaM2, source.LivingAreaM2)
	mergeFloat(&target.PlotAreaM2, source.PlotAreaM2)
	mergeFloat(&target.VolumeM3, source.VolumeM3)
	mergeFloat(&target.GardenAreaM2, source.GardenAreaM2)
	mergeFloat(&target.BalconyAreaM2, source.BalconyAreaM2)
	mergeFloat(&target.StorageAreaM2, source.StorageAreaM2)
	mergeString(&target.EnergyLabel, source.EnergyLabel)
	mergeInt(&target.ConstructionYear, source.ConstructionYear)
	mergeFloat(&target.VveContribution, source.VveContribution)
	mergeString(&target.BoilerBrand, source.BoilerBrand)
	mergeInt(&target.BoilerYear, source.BoilerYear)
	mergeString(&target.CadastralID, source.CadastralID)
	mergeString(&target.Description, source.Description)
	mergeString(&target.AgentName, source.AgentName)
	mergeInt(&target.BrokerOfficeID, source.BrokerOfficeID)
	mergeString(&target.BrokerPhone, source.BrokerPhone)
	mergeString(&target.BrokerLogoURL, source.BrokerLogoURL)
	mergeString(&target.BrokerAssociationCode, source.BrokerAssociationCode)
	mergeFloat(&target.Latitude, source.Latitude)
	mergeFloat(&target.Longitude, source.Longitude)

	if source.FiberAvailable != nil {
		v := *source.FiberAvailable
		target.FiberAvailable = &v
	}
	if source.PublishedAt != nil {
		t := *source.PublishedAt
		target.PublishedAt = &t
	}
	if len(source.Features) > 0 {
		target.Features = source.Features
	}
	if len(source.MediaURLs) > 0 {
		target.MediaURLs = source.MediaURLs
	}
}

// FlattenFeatures walks a characteristic tree into a flat label→value
// map. The first occurrence of a label wins; grouping nodes without a
// value only contribute their children.
func FlattenFeatures(items []client.FeatureItem, out map[string]string) {
	for _, item := range items {
		label := strings.TrimSpace(item.Label)
		if label != "" && strings.TrimSpace(item.Value) != "" {
			if _, exists := out[label]; !exists {
				out[label] = strings.TrimSpace(item.Value)
			}
		}
		if label != "" && item.Value == "" {
			// Value-less nodes with a label are either grouping nodes or
			// cadastral designations; record the latter as empty entries.
			if len(item.Children) == 0 {
				if _, exists := out[label]; !exists {
					out[label] = ""
				}
			}
		}
		if len(item.Children) > 0 {
			FlattenFeatures(item.Children, out)
		}
	}
}

func featureValue(features map[string]string, key string) (string, bool) {
	if v, ok := features[key]; ok && v != "" {
		return v, true
	}
	for k, v := range features {
		if strings.EqualFold(k, key) && v != "" {
			return v, true
		}
	}
	return "", false
}

func containsUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func mergeString(dst **string, src *string) {
	if src != nil && *src != "" {
		v := *src
		*dst = &v
	}
}

func mergeInt(dst **int, src *int) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func mergeFloat(dst **float64, src *float64) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
