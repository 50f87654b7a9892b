// Package repository persists listings, their price history and the
// per-region crawl cursors.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"valora_backend/internal/funda/domain"
	"valora_backend/platform/apperr"
)

const listingNotFoundMessage = "listing not found"

// ListParams filter and page the listing overview.
type ListParams struct {
	Region    string
	City      string
	Status    domain.Status
	MinPrice  *float64
	MaxPrice  *float64
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// Repository is the persistence capability the acquisition pipeline and
// the HTTP layer depend on.
type Repository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	Update(ctx context.Context, listing *domain.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Listing, error)
	GetByExternalID(ctx context.Context, externalID int64) (domain.Listing, error)
	List(ctx context.Context, params ListParams) ([]domain.Listing, int, error)

	AddPriceHistory(ctx context.Context, listingID uuid.UUID, price float64) error
	ListPriceHistory(ctx context.Context, listingID uuid.UUID) ([]domain.PriceHistoryEntry, error)

	GetRegionCursor(ctx context.Context, region string) (domain.RegionCursor, error)
	SaveRegionCursor(ctx context.Context, cursor *domain.RegionCursor) error
}

// Repo implements Repository on a pgx pool.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a listing repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const listingColumns = `
	id, external_id, url, region, address, city, postal_code,
	price, price_text, status, property_type,
	bedrooms, bathrooms, living_area_m2, plot_area_m2, volume_m3,
	garden_area_m2, balcony_area_m2, storage_area_m2,
	energy_label, construction_year, vve_contribution,
	boiler_brand, boiler_year, cadastral_id,
	description, features, media_urls,
	agent_name, broker_office_id, broker_phone, broker_logo_url, broker_association_code,
	fiber_available, latitude, longitude,
	published_at, sold_at, last_fetched, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(
		&l.ID, &l.ExternalID, &l.URL, &l.Region, &l.Address, &l.City, &l.PostalCode,
		&l.Price, &l.PriceText, &l.Status, &l.PropertyType,
		&l.Bedrooms, &l.Bathrooms, &l.LivingAreaM2, &l.PlotAreaM2, &l.VolumeM3,
		&l.GardenAreaM2, &l.BalconyAreaM2, &l.StorageAreaM2,
		&l.EnergyLabel, &l.ConstructionYear, &l.VveContribution,
		&l.BoilerBrand, &l.BoilerYear, &l.CadastralID,
		&l.Description, &l.Features, &l.MediaURLs,
		&l.AgentName, &l.BrokerOfficeID, &l.BrokerPhone, &l.BrokerLogoURL, &l.BrokerAssociationCode,
		&l.FiberAvailable, &l.Latitude, &l.Longitude,
		&l.PublishedAt, &l.SoldAt, &l.LastFetched, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// Create inserts a listing and fills its generated fields.
func (r *Repo) Create(ctx context.Context, listing *domain.Listing) error {
	query := `
		INSERT INTO listings (
			external_id, url, region, address, city, postal_code,
			price, price_text, status, property_type,
			bedrooms, bathrooms, living_area_m2, plot_area_m2, volume_m3,
			garden_area_m2, balcony_area_m2, storage_area_m2,
			energy_label, construction_year, vve_contribution,
			boiler_brand, boiler_year, cadastral_id,
			description, features, media_urls,
			agent_name, broker_office_id, broker_phone, broker_logo_url, broker_association_code,
			fiber_available, latitude, longitude,
			published_at, sold_at, last_fetched
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37, $38
		)
		RETURNING id, created_at, updated_at`

	if err := r.pool.QueryRow(ctx, query,
		listing.ExternalID, listing.URL, listing.Region, listing.Address, listing.City, listing.PostalCode,
		listing.Price, listing.PriceText, listing.Status, listing.PropertyType,
		listing.Bedrooms, listing.Bathrooms, listing.LivingAreaM2, listing.PlotAreaM2, listing.VolumeM3,
		listing.GardenAreaM2, listing.BalconyAreaM2, listing.StorageAreaM2,
		listing.EnergyLabel, listing.ConstructionYear, listing.VveContribution,
		listing.BoilerBrand, listing.BoilerYear, listing.CadastralID,
		listing.Description, listing.Features, listing.MediaURLs,
		listing.AgentName, listing.BrokerOfficeID, listing.BrokerPhone, listing.BrokerLogoURL, listing.BrokerAssociationCode,
		listing.FiberAvailable, listing.Latitude, listing.Longitude,
		listing.PublishedAt, listing.SoldAt, listing.LastFetched,
	).Scan(&listing.ID, &listing.CreatedAt, &listing.UpdatedAt); err != nil {
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

// Update overwrites a stored listing.
func (r *Repo) Update(ctx context.Context, listing *domain.Listing) error {
	query := `
		UPDATE listings SET
			url = $2, region = $3, address = $4, city = $5, postal_code = $6,
			price = $7, price_text = $8, status = $9, property_type = $10,
			bedrooms = $11, bathrooms = $12, living_area_m2 = $13, plot_area_m2 = $14, volume_m3 = $15,
			garden_area_m2 = $16, balcony_area_m2 = $17, storage_area_m2 = $18,
			energy_label = $19, construction_year = $20, vve_contribution = $21,
			boiler_brand = $22, boiler_year = $23, cadastral_id = $24,
			description = $25, features = $26, media_urls = $27,
			agent_name = $28, broker_office_id = $29, broker_phone = $30, broker_logo_url = $31, broker_association_code = $32,
			fiber_available = $33, latitude = $34, longitude = $35,
			published_at = $36, sold_at = $37, last_fetched = $38,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	if err := r.pool.QueryRow(ctx, query,
		listing.ID,
		listing.URL, listing.Region, listing.Address, listing.City, listing.PostalCode,
		listing.Price, listing.PriceText, listing.Status, listing.PropertyType,
		listing.Bedrooms, listing.Bathrooms, listing.LivingAreaM2, listing.PlotAreaM2, listing.VolumeM3,
		listing.GardenAreaM2, listing.BalconyAreaM2, listing.StorageAreaM2,
		listing.EnergyLabel, listing.ConstructionYear, listing.VveContribution,
		listing.BoilerBrand, listing.BoilerYear, listing.CadastralID,
		listing.Description, listing.Features, listing.MediaURLs,
		listing.AgentName, listing.BrokerOfficeID, listing.BrokerPhone, listing.BrokerLogoURL, listing.BrokerAssociationCode,
		listing.FiberAvailable, listing.Latitude, listing.Longitude,
		listing.PublishedAt, listing.SoldAt, listing.LastFetched,
	).Scan(&listing.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound(listingNotFoundMessage)
		}
		return fmt.Errorf("update listing: %w", err)
	}
	return nil
}

// GetByID retrieves one listing.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	listing, err := scanListing(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, apperr.NotFound(listingNotFoundMessage)
		}
		return domain.Listing{}, fmt.Errorf("get listing by id: %w", err)
	}
	return listing, nil
}

// GetByExternalID retrieves one listing by its source identifier.
func (r *Repo) GetByExternalID(ctx context.Context, externalID int64) (domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE external_id = $1`

	listing, err := scanListing(r.pool.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, apperr.NotFound(listingNotFoundMessage)
		}
		return domain.Listing{}, fmt.Errorf("get listing by external id: %w", err)
	}
	return listing, nil
}

// List returns listings matching the filters plus the total match count.
func (r *Repo) List(ctx context.Context, params ListParams) ([]domain.Listing, int, error) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}
	argIdx := 1

	if params.Region != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("region = $%d", argIdx))
		args = append(args, params.Region)
		argIdx++
	}
	if params.City != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("city ILIKE $%d", argIdx))
		args = append(args, params.City)
		argIdx++
	}
	if params.Status != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, params.Status)
		argIdx++
	}
	if params.MinPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price >= $%d", argIdx))
		args = append(args, *params.MinPrice)
		argIdx++
	}
	if params.MaxPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price <= $%d", argIdx))
		args = append(args, *params.MaxPrice)
		argIdx++
	}
	if params.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(address ILIKE $%d OR city ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+params.Search+"%")
		argIdx++
	}

	whereClause := strings.Join(whereClauses, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM listings WHERE %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	sortColumn := "last_fetched"
	switch params.SortBy {
	case "price":
		sortColumn = "price"
	case "publishedAt":
		sortColumn = "published_at"
	case "createdAt":
		sortColumn = "created_at"
	case "livingArea":
		sortColumn = "living_area_m2"
	}
	sortOrder := "DESC"
	if strings.EqualFold(params.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := fmt.Sprintf(
		"SELECT %s FROM listings WHERE %s ORDER BY %s %s NULLS LAST LIMIT $%d OFFSET $%d",
		listingColumns, whereClause, sortColumn, sortOrder, argIdx, argIdx+1,
	)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, total, nil
}

// AddPriceHistory records one observed price point.
func (r *Repo) AddPriceHistory(ctx context.Context, listingID uuid.UUID, price float64) error {
	query := `INSERT INTO listing_price_history (listing_id, price) VALUES ($1, $2)`
	if _, err := r.pool.Exec(ctx, query, listingID, price); err != nil {
		return fmt.Errorf("add price history: %w", err)
	}
	return nil
}

// ListPriceHistory returns the recorded price points of a listing, oldest
// first.
func (r *Repo) ListPriceHistory(ctx context.Context, listingID uuid.UUID) ([]domain.PriceHistoryEntry, error) {
	query := `
		SELECT id, listing_id, price, recorded_at
		FROM listing_price_history
		WHERE listing_id = $1
		ORDER BY recorded_at ASC`

	rows, err := r.pool.Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	defer rows.Close()

	var entries []domain.PriceHistoryEntry
	for rows.Next() {
		var entry domain.PriceHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.ListingID, &entry.Price, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan price history: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history: %w", err)
	}
	return entries, nil
}

// GetRegionCursor loads the crawl cursor for a region, creating the
// initial cursor when none exists yet.
func (r *Repo) GetRegionCursor(ctx context.Context, region string) (domain.RegionCursor, error) {
	query := `
		INSERT INTO region_cursors (region, next_backfill_page)
		VALUES ($1, 1)
		ON CONFLICT (region) DO UPDATE SET region = EXCLUDED.region
		RETURNING id, region, next_backfill_page, last_recent_scrape, last_backfill_scrape, created_at, updated_at`

	var cursor domain.RegionCursor
	if err := r.pool.QueryRow(ctx, query, region).Scan(
		&cursor.ID, &cursor.Region, &cursor.NextBackfillPage,
		&cursor.LastRecentScrape, &cursor.LastBackfillScrape,
		&cursor.CreatedAt, &cursor.UpdatedAt,
	); err != nil {
		return domain.RegionCursor{}, fmt.Errorf("get region cursor: %w", err)
	}
	return cursor, nil
}

// SaveRegionCursor persists cursor progress after a region pass.
func (r *Repo) SaveRegionCursor(ctx context.Context, cursor *domain.RegionCursor) error {
	query := `
		UPDATE region_cursors
		SET next_backfill_page = $2,
			last_recent_scrape = $3,
			last_backfill_scrape = $4,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	if err := r.pool.QueryRow(ctx, query,
		cursor.ID, cursor.NextBackfillPage, cursor.LastRecentScrape, cursor.LastBackfillScrape,
	).Scan(&cursor.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("region cursor not found")
		}
		return fmt.Errorf("save region cursor: %w", err)
	}
	return nil
}
