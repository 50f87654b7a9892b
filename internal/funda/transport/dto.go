// Package transport defines the request and response shapes of the
// listing HTTP API.
package transport

import (
	"valora_backend/internal/funda/domain"
)

// ListListingsRequest filters the listing overview.
type ListListingsRequest struct {
	Region    string   `form:"region"`
	City      string   `form:"city"`
	Status    string   `form:"status" validate:"omitempty,oneof=Available UnderOffer UnderOption Sold Rented Unknown"`
	MinPrice  *float64 `form:"minPrice" validate:"omitempty,gte=0"`
	MaxPrice  *float64 `form:"maxPrice" validate:"omitempty,gte=0"`
	Search    string   `form:"search" validate:"omitempty,max=100"`
	SortBy    string   `form:"sortBy" validate:"omitempty,oneof=price publishedAt createdAt livingArea lastFetched"`
	SortOrder string   `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page      int      `form:"page" validate:"omitempty,min=1"`
	PageSize  int      `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ListListingsResponse pages the listing overview.
type ListListingsResponse struct {
	Items    []domain.Listing `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// ListingDetailResponse combines a listing with its price history.
type ListingDetailResponse struct {
	Listing      domain.Listing             `json:"listing"`
	PriceHistory []domain.PriceHistoryEntry `json:"priceHistory"`
}

// LimitedScrapeRequest triggers a bounded on-demand crawl.
type LimitedScrapeRequest struct {
	Region string `json:"region" validate:"required,min=2,max=64"`
	Limit  int    `json:"limit" validate:"required,min=1,max=100"`
}

// ScrapeProgressEvent is one server-sent progress update during an
// on-demand crawl.
type ScrapeProgressEvent struct {
	Message string `json:"message"`
}

// LimitedScrapeResult is the terminal event of an on-demand crawl.
type LimitedScrapeResult struct {
	Listings []domain.Listing `json:"listings"`
	Count    int              `json:"count"`
}
