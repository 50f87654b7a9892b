// Package enrichment provides the location-context bounded context:
// geocoding, neighborhood statistics and the scored livability report.
package enrichment

import (
	"github.com/redis/go-redis/v9"

	"valora_backend/internal/enrichment/cache"
	"valora_backend/internal/enrichment/cbs"
	"valora_backend/internal/enrichment/handler"
	"valora_backend/internal/enrichment/location"
	"valora_backend/internal/enrichment/luchtmeetnet"
	"valora_backend/internal/enrichment/overpass"
	"valora_backend/internal/enrichment/pdok"
	"valora_backend/internal/enrichment/report"
	"valora_backend/internal/enrichment/woz"
	apphttp "valora_backend/internal/http"
	"valora_backend/platform/config"
	"valora_backend/platform/logger"
	"valora_backend/platform/validator"
)

// Module is the enrichment module implementing http.Module.
type Module struct {
	handler *handler.Handler
	reports *report.Service
}

// NewModule creates and wires the enrichment module. redisClient may be
// nil; reports are then rebuilt on every request.
func NewModule(redisClient *redis.Client, listings handler.ListingSource, cfg config.EnrichmentConfig, val *validator.Validator, log *logger.Logger) *Module {
	resolver := location.New(cfg, log)
	reports := report.NewService(
		resolver,
		cbs.NewStatsClient(cfg, log),
		cbs.NewCrimeClient(cfg, log),
		cbs.NewDemographicsClient(cfg, log),
		overpass.New(cfg, log),
		luchtmeetnet.New(cfg, log),
		cache.NewJSON(redisClient, log),
		cfg,
		log,
	)

	h := handler.New(
		reports,
		resolver,
		pdok.NewSoilClient(log),
		pdok.NewBuildingClient(log),
		woz.New(log),
		listings,
		val,
		log,
	)

	return &Module{handler: h, reports: reports}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "enrichment"
}

// Reports exposes the report service for sibling modules.
func (m *Module) Reports() *report.Service {
	return m.reports
}

// RegisterRoutes mounts the enrichment routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/context-report", m.handler.ContextReport)
	ctx.V1.GET("/resolve", m.handler.Resolve)
	ctx.V1.GET("/listings/:id/context", m.handler.ListingContext)
}

var _ apphttp.Module = (*Module)(nil)
