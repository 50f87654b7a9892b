// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"valora_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Listing Domain Events
// =============================================================================

// ListingDiscovered is published when a listing is stored for the first time.
type ListingDiscovered struct {
	BaseEvent
	ListingID  uuid.UUID `json:"listingId"`
	ExternalID int64     `json:"externalId"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	Price      *float64  `json:"price,omitempty"`
	DetailURL  string    `json:"detailUrl"`
}

func (e ListingDiscovered) EventName() string { return "listings.discovered" }

// ListingPriceChanged is published when a re-crawl observes a new price.
type ListingPriceChanged struct {
	BaseEvent
	ListingID  uuid.UUID `json:"listingId"`
	ExternalID int64     `json:"externalId"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	OldPrice   float64   `json:"oldPrice"`
	NewPrice   float64   `json:"newPrice"`
}

func (e ListingPriceChanged) EventName() string { return "listings.price_changed" }

// ListingStatusChanged is published when a listing's sale status changes.
type ListingStatusChanged struct {
	BaseEvent
	ListingID  uuid.UUID `json:"listingId"`
	ExternalID int64     `json:"externalId"`
	Address    string    `json:"address"`
	OldStatus  string    `json:"oldStatus"`
	NewStatus  string    `json:"newStatus"`
}

func (e ListingStatusChanged) EventName() string { return "listings.status_changed" }
