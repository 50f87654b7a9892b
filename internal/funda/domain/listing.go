// Package domain holds the listing entities shared by the acquisition
// pipeline, its repositories and the HTTP layer.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the normalized sale status of a listing.
type Status string

const (
	StatusAvailable   Status = "Available"
	StatusUnderOffer  Status = "UnderOffer"
	StatusUnderOption Status = "UnderOption"
	StatusSold        Status = "Sold"
	StatusRented      Status = "Rented"
	StatusUnknown     Status = "Unknown"
)

// Listing is one acquired property listing. Numeric and text fields are
// pointers so that a partial fetch can leave them untouched; the merge
// rules in the mapper never overwrite a non-nil value with nil.
type Listing struct {
	ID         uuid.UUID `json:"id"`
	ExternalID int64     `json:"externalId"`
	URL        string    `json:"url"`
	Region     string    `json:"region"`

	Address    string  `json:"address"`
	City       string  `json:"city"`
	PostalCode *string `json:"postalCode,omitempty"`

	Price        *float64 `json:"price,omitempty"`
	PriceText    *string  `json:"priceText,omitempty"`
	Status       Status   `json:"status"`
	PropertyType *string  `json:"propertyType,omitempty"`

	Bedrooms      *int     `json:"bedrooms,omitempty"`
	Bathrooms     *int     `json:"bathrooms,omitempty"`
	LivingAreaM2  *float64 `json:"livingAreaM2,omitempty"`
	PlotAreaM2    *float64 `json:"plotAreaM2,omitempty"`
	VolumeM3      *float64 `json:"volumeM3,omitempty"`
	GardenAreaM2  *float64 `json:"gardenAreaM2,omitempty"`
	BalconyAreaM2 *float64 `json:"balconyAreaM2,omitempty"`
	StorageAreaM2 *float64 `json:"storageAreaM2,omitempty"`

	EnergyLabel      *string  `json:"energyLabel,omitempty"`
	ConstructionYear *int     `json:"constructionYear,omitempty"`
	VveContribution  *float64 `json:"vveContribution,omitempty"`
	BoilerBrand      *string  `json:"boilerBrand,omitempty"`
	BoilerYear       *int     `json:"boilerYear,omitempty"`
	CadastralID      *string  `json:"cadastralId,omitempty"`

	Description *string           `json:"description,omitempty"`
	Features    map[string]string `json:"features,omitempty"`
	MediaURLs   []string          `json:"mediaUrls,omitempty"`

	AgentName             *string `json:"agentName,omitempty"`
	BrokerOfficeID        *int    `json:"brokerOfficeId,omitempty"`
	BrokerPhone           *string `json:"brokerPhone,omitempty"`
	BrokerLogoURL         *string `json:"brokerLogoUrl,omitempty"`
	BrokerAssociationCode *string `json:"brokerAssociationCode,omitempty"`

	FiberAvailable *bool    `json:"fiberAvailable,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`

	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	SoldAt      *time.Time `json:"soldAt,omitempty"`
	LastFetched time.Time  `json:"lastFetched"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PriceHistoryEntry records one observed price point for a listing.
type PriceHistoryEntry struct {
	ID         uuid.UUID `json:"id"`
	ListingID  uuid.UUID `json:"listingId"`
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recordedAt"`
}

// RegionCursor tracks incremental crawl progress for one region.
// NextBackfillPage resets to 1 when a backfill page comes back empty.
type RegionCursor struct {
	ID                 uuid.UUID  `json:"id"`
	Region             string     `json:"region"`
	NextBackfillPage   int        `json:"nextBackfillPage"`
	LastRecentScrape   *time.Time `json:"lastRecentScrape,omitempty"`
	LastBackfillScrape *time.Time `json:"lastBackfillScrape,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}
