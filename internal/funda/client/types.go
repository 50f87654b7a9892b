// Package client implements the two acquisition strategies against the
// source site: a direct HTTP client for its internal JSON APIs and a
// browser-automation fallback for challenge-protected pages.
package client

import (
	"context"
	"time"
)

// Client is the capability set both strategies implement. The crawl
// orchestrator depends only on this interface.
type Client interface {
	SearchListings(ctx context.Context, region, offeringType string, page int, price PriceRange) (*SearchResult, error)
	FetchListingDetails(ctx context.Context, detailURL string) (*RichListingData, error)
	FetchListingSummary(ctx context.Context, globalID int64) (*ListingSummary, error)
	FetchContactDetails(ctx context.Context, globalID int64) (*ContactDetails, error)
	FetchFiberAvailability(ctx context.Context, postalCode string) (*FiberAvailability, error)
}

// PriceRange bounds a search. A nil Max means unbounded.
type PriceRange struct {
	Min int
	Max *int
}

// SearchResult is the strategy-agnostic shape of one search page.
type SearchResult struct {
	FriendlyURL string          `json:"friendlyUrl"`
	Listings    []SearchSummary `json:"listings"`
}

// SearchSummary is one listing row from a search page, normalized so the
// orchestrator does not care which strategy produced it.
type SearchSummary struct {
	GlobalID  int64    `json:"globalId"`
	PriceText string   `json:"price"`
	DetailURL string   `json:"listingUrl"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	AgentName string   `json:"agentName"`
	ImageURL  string   `json:"imageUrl"`
	IsProject bool     `json:"isProject"`
	Labels    []string `json:"labels"`
}

// ListingSummary is the detail-summary API payload for one listing.
type ListingSummary struct {
	GlobalID        int64
	TinyID          string
	SellingPrice    string
	Street          string
	PostalCodeCity  string
	City            string
	PostalCode      string
	LivingArea      string
	Bedrooms        string
	EnergyLabel     string
	BrokerNames     []string
	PublicationDate *time.Time
	IsSoldOrRented  bool
	AskingPrice     *int
	ListingStatus   string
	ListingType     string
}

// ContactDetails is the broker contact payload for one listing.
type ContactDetails struct {
	ListingID       int64
	TinyID          string
	ListingStatus   string
	BrokerOfficeID  int
	DisplayName     string
	LogoURL         string
	PhoneNumber     string
	AssociationCode string
}

// FiberAvailability reports optic-fiber availability for a postal code.
type FiberAvailability struct {
	PostalCode string `json:"postalCode"`
	Available  bool   `json:"availability"`
	Message    string `json:"message"`
}

// RichListingData is the hydration payload extracted from a detail page.
type RichListingData struct {
	Features    *FeatureGroups `json:"features"`
	Media       *Media         `json:"media"`
	Description *Description   `json:"description"`
	ObjectType  *ObjectType    `json:"objectType"`
	Coordinates *Coordinates   `json:"coordinates"`
}

// FeatureGroups are the categorized characteristic trees of a listing.
type FeatureGroups struct {
	Layout       *FeatureGroup `json:"indeling"`
	Dimensions   *FeatureGroup `json:"afmetingen"`
	Energy       *FeatureGroup `json:"energie"`
	Construction *FeatureGroup `json:"bouw"`
}

// FeatureGroup is one category of characteristics.
type FeatureGroup struct {
	Title string        `json:"Title"`
	Items []FeatureItem `json:"KenmerkenList"`
}

// FeatureItem is a label/value node; grouping nodes carry children and may
// have no value of their own.
type FeatureItem struct {
	Label    string        `json:"Label"`
	Value    string        `json:"Value"`
	Children []FeatureItem `json:"KenmerkenList"`
}

// Media lists the listing's photo identifiers.
type Media struct {
	Items []MediaItem `json:"items"`
}

// MediaItem is one media entry; type 1 is a photo.
type MediaItem struct {
	ID   string `json:"id"`
	Type int    `json:"type"`
}

// Description is the free-text listing description.
type Description struct {
	Content string `json:"content"`
}

// ObjectType carries the measured areas of the property.
type ObjectType struct {
	PropertySpecification *PropertySpecification `json:"propertyspecification"`
}

// PropertySpecification holds usage and plot areas in m².
type PropertySpecification struct {
	SelectedArea     int `json:"selectedArea"`
	SelectedPlotArea int `json:"selectedPlotArea"`
}

// Coordinates is the listing's geographic position.
type Coordinates struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// PhotoURL builds the public CDN URL for a media item at 720px width.
func PhotoURL(mediaID string) string {
	return "https://cloud.funda.nl/valentina_media/" + mediaID + "_720.jpg"
}
