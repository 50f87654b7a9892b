// Package transport defines the request and response shapes of the
// enrichment HTTP API.
package transport

import (
	"valora_backend/internal/enrichment/domain"
	fundadomain "valora_backend/internal/funda/domain"
)

// ContextReportRequest asks for a livability report around an address.
type ContextReportRequest struct {
	Query  string `form:"q" validate:"required,min=3,max=200"`
	Radius int    `form:"radius" validate:"omitempty,min=1,max=50000"`
}

// ResolveRequest geocodes a free-form address query.
type ResolveRequest struct {
	Query string `form:"q" validate:"required,min=3,max=200"`
}

// ListingContextResponse combines a stored listing's context report with
// the property-level lookups that need the exact parcel.
type ListingContextResponse struct {
	Listing        fundadomain.Listing    `json:"listing"`
	Report         *domain.ContextReport  `json:"report,omitempty"`
	FoundationRisk *domain.FoundationRisk `json:"foundationRisk,omitempty"`
	SolarPotential *domain.SolarPotential `json:"solarPotential,omitempty"`
	WozValuation   *domain.WozValuation   `json:"wozValuation,omitempty"`
}
