// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// ScrapeConfig provides settings for the acquisition pipeline.
type ScrapeConfig interface {
	GetSearchURLs() []string
	GetScrapeCallBudget() int
	GetRecentPagesPerRegion() int
	GetBackfillPagesPerRegion() int
	GetResultsPerPage() int
	GetMinRequestInterval() time.Duration
	GetListingDelay() time.Duration
	GetScrapeInterval() time.Duration
	GetBrowserExecPath() string
	IsBrowserFallbackEnabled() bool
}

// EnrichmentConfig provides settings for the context enrichment pipeline.
type EnrichmentConfig interface {
	GetLocatieserverBaseURL() string
	GetCBSODataBaseURL() string
	GetOverpassBaseURL() string
	GetLuchtmeetnetBaseURL() string
	GetLocationCacheTTL() time.Duration
	GetStatsCacheTTL() time.Duration
	GetAmenityCacheTTL() time.Duration
	GetAirQualityCacheTTL() time.Duration
	GetReportCacheTTL() time.Duration
	GetDefaultRadiusMeters() int
}

// MediaConfig provides settings for listing media archiving.
type MediaConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMediaBucket() string
	IsMediaArchiveEnabled() bool
}

// NotificationConfig provides settings for outbound email notifications.
type NotificationConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUser() string
	GetSMTPPassword() string
	GetEmailFromAddress() string
	GetNotifyAddress() string
	IsEmailEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	SearchURLs             []string
	ScrapeCallBudget       int
	RecentPagesPerRegion   int
	BackfillPagesPerRegion int
	ResultsPerPage         int
	MinRequestInterval     time.Duration
	ListingDelay           time.Duration
	ScrapeInterval         time.Duration
	BrowserExecPath        string
	BrowserFallback        bool

	LocatieserverBaseURL string
	CBSODataBaseURL      string
	OverpassBaseURL      string
	LuchtmeetnetBaseURL  string
	LocationCacheTTL     time.Duration
	StatsCacheTTL        time.Duration
	AmenityCacheTTL      time.Duration
	AirQualityCacheTTL   time.Duration
	ReportCacheTTL       time.Duration
	DefaultRadiusMeters  int

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool
	MediaBucket    string

	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	EmailFromAddress string
	NotifyAddress    string
	EmailEnabled     bool
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// ScrapeConfig implementation
func (c *Config) GetSearchURLs() []string                { return c.SearchURLs }
func (c *Config) GetScrapeCallBudget() int               { return c.ScrapeCallBudget }
func (c *Config) GetRecentPagesPerRegion() int           { return c.RecentPagesPerRegion }
func (c *Config) GetBackfillPagesPerRegion() int         { return c.BackfillPagesPerRegion }
func (c *Config) GetResultsPerPage() int                 { return c.ResultsPerPage }
func (c *Config) GetMinRequestInterval() time.Duration   { return c.MinRequestInterval }
func (c *Config) GetListingDelay() time.Duration         { return c.ListingDelay }
func (c *Config) GetScrapeInterval() time.Duration       { return c.ScrapeInterval }
func (c *Config) GetBrowserExecPath() string             { return c.BrowserExecPath }
func (c *Config) IsBrowserFallbackEnabled() bool         { return c.BrowserFallback }

// EnrichmentConfig implementation
func (c *Config) GetLocatieserverBaseURL() string      { return c.LocatieserverBaseURL }
func (c *Config) GetCBSODataBaseURL() string           { return c.CBSODataBaseURL }
func (c *Config) GetOverpassBaseURL() string           { return c.OverpassBaseURL }
func (c *Config) GetLuchtmeetnetBaseURL() string       { return c.LuchtmeetnetBaseURL }
func (c *Config) GetLocationCacheTTL() time.Duration   { return c.LocationCacheTTL }
func (c *Config) GetStatsCacheTTL() time.Duration      { return c.StatsCacheTTL }
func (c *Config) GetAmenityCacheTTL() time.Duration    { return c.AmenityCacheTTL }
func (c *Config) GetAirQualityCacheTTL() time.Duration { return c.AirQualityCacheTTL }
func (c *Config) GetReportCacheTTL() time.Duration     { return c.ReportCacheTTL }
func (c *Config) GetDefaultRadiusMeters() int          { return c.DefaultRadiusMeters }

// MediaConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMediaBucket() string    { return c.MediaBucket }
func (c *Config) IsMediaArchiveEnabled() bool {
	return c.MinIOEndpoint != "" && c.MediaBucket != ""
}

// NotificationConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUser() string         { return c.SMTPUser }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetNotifyAddress() string    { return c.NotifyAddress }
func (c *Config) IsEmailEnabled() bool {
	return c.EmailEnabled && c.SMTPHost != "" && c.EmailFromAddress != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		SearchURLs:             splitCSV(getEnv("FUNDA_SEARCH_URLS", "")),
		ScrapeCallBudget:       mustInt(getEnv("SCRAPE_CALL_BUDGET", "200")),
		RecentPagesPerRegion:   mustInt(getEnv("SCRAPE_RECENT_PAGES", "2")),
		BackfillPagesPerRegion: mustInt(getEnv("SCRAPE_BACKFILL_PAGES", "3")),
		ResultsPerPage:         mustInt(getEnv("SCRAPE_RESULTS_PER_PAGE", "15")),
		MinRequestInterval:     mustDuration(getEnv("SCRAPE_MIN_INTERVAL", "3s")),
		ListingDelay:           mustDuration(getEnv("SCRAPE_LISTING_DELAY", "500ms")),
		ScrapeInterval:         mustDuration(getEnv("SCRAPE_INTERVAL", "6h")),
		BrowserExecPath:        getEnv("BROWSER_EXEC_PATH", ""),
		BrowserFallback:        strings.EqualFold(getEnv("BROWSER_FALLBACK_ENABLED", "true"), "true"),

		LocatieserverBaseURL: getEnv("PDOK_LOCATIESERVER_URL", "https://api.pdok.nl/bzk/locatieserver/search/v3_1"),
		CBSODataBaseURL:      getEnv("CBS_ODATA_URL", "https://opendata.cbs.nl/ODataApi/odata"),
		OverpassBaseURL:      getEnv("OVERPASS_URL", "https://overpass-api.de"),
		LuchtmeetnetBaseURL:  getEnv("LUCHTMEETNET_URL", "https://api.luchtmeetnet.nl"),
		LocationCacheTTL:     mustDuration(getEnv("LOCATION_CACHE_TTL", "24h")),
		StatsCacheTTL:        mustDuration(getEnv("STATS_CACHE_TTL", "12h")),
		AmenityCacheTTL:      mustDuration(getEnv("AMENITY_CACHE_TTL", "6h")),
		AirQualityCacheTTL:   mustDuration(getEnv("AIR_QUALITY_CACHE_TTL", "30m")),
		ReportCacheTTL:       mustDuration(getEnv("REPORT_CACHE_TTL", "1h")),
		DefaultRadiusMeters:  mustInt(getEnv("REPORT_DEFAULT_RADIUS", "1000")),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:    strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MediaBucket:    getEnv("MINIO_BUCKET_LISTING_MEDIA", "listing-media"),

		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		NotifyAddress:    getEnv("NOTIFY_ADDRESS", ""),
		EmailEnabled:     strings.EqualFold(getEnv("EMAIL_ENABLED", "false"), "true"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ENABLED is true")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.ScrapeCallBudget < 1 {
		return nil, fmt.Errorf("SCRAPE_CALL_BUDGET must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
