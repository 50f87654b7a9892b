// Package handler exposes the listing acquisition API over HTTP.
package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"valora_backend/internal/funda/domain"
	"valora_backend/internal/funda/repository"
	"valora_backend/internal/funda/scraper"
	"valora_backend/internal/funda/transport"
	"valora_backend/platform/httpkit"
	"valora_backend/platform/logger"
	"valora_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid listing id"
)

// Handler handles HTTP requests for listings and crawls.
type Handler struct {
	repo    repository.Repository
	scraper *scraper.Scraper
	val     *validator.Validator
	log     *logger.Logger
}

// New creates a listing handler.
func New(repo repository.Repository, sc *scraper.Scraper, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{repo: repo, scraper: sc, val: val, log: log}
}

// ListListings returns the stored listings.
// GET /api/v1/listings
func (h *Handler) ListListings(c *gin.Context) {
	var req transport.ListListingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	params := repository.ListParams{
		Region:    req.Region,
		City:      req.City,
		Status:    domain.Status(req.Status),
		MinPrice:  req.MinPrice,
		MaxPrice:  req.MaxPrice,
		Search:    req.Search,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	listings, total, err := h.repo.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	httpkit.OK(c, transport.ListListingsResponse{
		Items:    listings,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetListing returns one listing with its price history.
// GET /api/v1/listings/:id
func (h *Handler) GetListing(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	listing, err := h.repo.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	history, err := h.repo.ListPriceHistory(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ListingDetailResponse{
		Listing:      listing,
		PriceHistory: history,
	})
}

// LimitedScrape runs a bounded on-demand crawl and streams progress as
// server-sent events, ending with the collected listings.
// POST /api/v1/scrape/limited
func (h *Handler) LimitedScrape(c *gin.Context) {
	var req transport.LimitedScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	progress := make(chan string, 16)
	type outcome struct {
		listings []domain.Listing
		err      error
	}
	done := make(chan outcome, 1)

	go func() {
		defer close(progress)
		listings, err := h.scraper.RunLimited(c.Request.Context(), req.Region, req.Limit, func(message string) {
			select {
			case progress <- message:
			case <-c.Request.Context().Done():
			}
		})
		done <- outcome{listings: listings, err: err}
	}()

	c.Stream(func(w io.Writer) bool {
		message, ok := <-progress
		if !ok {
			result := <-done
			if result.err != nil {
				h.log.Error("on-demand crawl failed", "region", req.Region, "error", result.err)
				c.SSEvent("error", transport.ScrapeProgressEvent{Message: result.err.Error()})
				return false
			}
			c.SSEvent("complete", transport.LimitedScrapeResult{
				Listings: result.listings,
				Count:    len(result.listings),
			})
			return false
		}
		c.SSEvent("progress", transport.ScrapeProgressEvent{Message: message})
		return true
	})
}
