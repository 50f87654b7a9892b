// Package funda provides the listing acquisition bounded context.
package funda

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"valora_backend/internal/events"
	"valora_backend/internal/funda/client"
	"valora_backend/internal/funda/handler"
	"valora_backend/internal/funda/ratelimit"
	"valora_backend/internal/funda/repository"
	"valora_backend/internal/funda/scraper"
	apphttp "valora_backend/internal/http"
	"valora_backend/platform/config"
	"valora_backend/platform/logger"
	"valora_backend/platform/validator"
)

// Module is the listing acquisition module implementing http.Module.
type Module struct {
	handler *handler.Handler
	scraper *scraper.Scraper
	repo    repository.Repository
	browser *client.Browser
}

// NewModule creates and wires the acquisition module. All acquisition
// strategies share one rate limiter so the site never sees request
// bursts, whichever path a call takes.
func NewModule(pool *pgxpool.Pool, bus events.Bus, cfg config.ScrapeConfig, val *validator.Validator, log *logger.Logger) *Module {
	limiter := ratelimit.New(cfg.GetMinRequestInterval())
	direct := client.NewDirect(limiter, log)

	var acquisition client.Client = direct
	var browser *client.Browser
	if cfg.IsBrowserFallbackEnabled() {
		browser = client.NewBrowser(limiter, direct, cfg.GetBrowserExecPath(), log)
		acquisition = client.NewFallback(direct, browser, log)
	}

	repo := repository.New(pool)
	sc := scraper.New(acquisition, repo, bus, cfg, log)
	h := handler.New(repo, sc, val, log)

	return &Module{
		handler: h,
		scraper: sc,
		repo:    repo,
		browser: browser,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "funda"
}

// Scraper exposes the crawl orchestrator for the job scheduler.
func (m *Module) Scraper() *scraper.Scraper {
	return m.scraper
}

// Repository exposes the listing store for sibling modules.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// Close releases the browser allocator if one was started.
func (m *Module) Close(context.Context) {
	if m.browser != nil {
		m.browser.Close()
	}
}

// RegisterRoutes mounts the listing routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/listings", m.handler.ListListings)
	ctx.V1.GET("/listings/:id", m.handler.GetListing)

	ctx.Protected.POST("/scrape/limited", m.handler.LimitedScrape)
}

var _ apphttp.Module = (*Module)(nil)
