// Package handler exposes the enrichment API over HTTP.
package handler

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"valora_backend/internal/enrichment/domain"
	"valora_backend/internal/enrichment/transport"
	fundadomain "valora_backend/internal/funda/domain"
	"valora_backend/platform/httpkit"
	"valora_backend/platform/logger"
	"valora_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid listing id"
	msgNoMatch          = "address not found"
)

// ReportBuilder assembles context reports.
type ReportBuilder interface {
	Build(ctx context.Context, query string, radiusMeters int) (*domain.ContextReport, error)
}

// AddressResolver geocodes a free-form query.
type AddressResolver interface {
	Resolve(ctx context.Context, input string) (*domain.ResolvedLocation, error)
}

// SoilSource classifies foundation risk at a resolved location.
type SoilSource interface {
	Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.FoundationRisk, error)
}

// SolarSource estimates rooftop solar potential at a resolved location.
type SolarSource interface {
	Get(ctx context.Context, loc domain.ResolvedLocation) (*domain.SolarPotential, error)
}

// WozSource looks up the official property valuation.
type WozSource interface {
	Get(ctx context.Context, street string, number int, suffix, city, objectID string) (*domain.WozValuation, error)
}

// ListingSource provides stored listings by id.
type ListingSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (fundadomain.Listing, error)
}

// Handler handles enrichment HTTP requests.
type Handler struct {
	reports  ReportBuilder
	resolver AddressResolver
	soil     SoilSource
	solar    SolarSource
	woz      WozSource
	listings ListingSource
	val      *validator.Validator
	log      *logger.Logger
}

// New creates an enrichment handler.
func New(reports ReportBuilder, resolver AddressResolver, soil SoilSource, solar SolarSource, woz WozSource, listings ListingSource, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{
		reports:  reports,
		resolver: resolver,
		soil:     soil,
		solar:    solar,
		woz:      woz,
		listings: listings,
		val:      val,
		log:      log,
	}
}

// ContextReport builds a livability report around an address.
// GET /api/v1/context-report?q=&radius=
func (h *Handler) ContextReport(c *gin.Context) {
	var req transport.ContextReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	report, err := h.reports.Build(c.Request.Context(), req.Query, req.Radius)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, report)
}

// Resolve geocodes an address query without building a report.
// GET /api/v1/resolve?q=
func (h *Handler) Resolve(c *gin.Context) {
	var req transport.ResolveRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	loc, err := h.resolver.Resolve(c.Request.Context(), req.Query)
	if httpkit.HandleError(c, err) {
		return
	}
	if loc == nil {
		httpkit.Error(c, http.StatusNotFound, msgNoMatch, nil)
		return
	}
	httpkit.OK(c, loc)
}

// ListingContext enriches a stored listing with its context report and
// the property-level lookups (foundation risk, solar potential, WOZ).
// GET /api/v1/listings/:id/context
func (h *Handler) ListingContext(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	listing, err := h.listings.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	query := strings.TrimSpace(listing.Address + " " + listing.City)
	report, err := h.reports.Build(c.Request.Context(), query, 0)
	if httpkit.HandleError(c, err) {
		return
	}

	response := transport.ListingContextResponse{
		Listing: listing,
		Report:  report,
	}

	ctx := c.Request.Context()
	if risk, err := h.soil.Get(ctx, report.Location); err == nil {
		response.FoundationRisk = risk
	}
	if solar, err := h.solar.Get(ctx, report.Location); err == nil {
		response.SolarPotential = solar
	}
	if street, number, suffix, ok := splitStreetAddress(listing.Address); ok {
		if valuation, err := h.woz.Get(ctx, street, number, suffix, listing.City, ""); err == nil {
			response.WozValuation = valuation
		}
	}

	httpkit.OK(c, response)
}

var streetAddressPattern = regexp.MustCompile(`^(.+?)\s+(\d+)\s*[-]?\s*([A-Za-z0-9]*)$`)

// splitStreetAddress splits "Keizersgracht 123-II" into street, house
// number and suffix.
func splitStreetAddress(address string) (street string, number int, suffix string, ok bool) {
	match := streetAddressPattern.FindStringSubmatch(strings.TrimSpace(address))
	if match == nil {
		return "", 0, "", false
	}
	number, err := strconv.Atoi(match[2])
	if err != nil {
		return "", 0, "", false
	}
	return match[1], number, match[3], true
}
