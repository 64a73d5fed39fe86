package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/otelcore/booking-backend/internal/models"
)

// CatalogItemRepository handles catalog item database operations
type CatalogItemRepository struct {
	db *sqlx.DB
}

// NewCatalogItemRepository creates a new CatalogItemRepository
func NewCatalogItemRepository(db *sqlx.DB) *CatalogItemRepository {
	return &CatalogItemRepository{db: db}
}

const catalogItemColumns = `
	id, organization_id, title, item_type, currency, base_price,
	min_pax, max_pax, min_nights, capacity_mode, max_per_day,
	allow_overbook, active, created_at, updated_at`

// Create inserts a new catalog item
func (r *CatalogItemRepository) Create(item *models.CatalogItem) error {
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt

	query := `
		INSERT INTO catalog_items (
			id, organization_id, title, item_type, currency, base_price,
			min_pax, max_pax, min_nights, capacity_mode, max_per_day,
			allow_overbook, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	_, err := r.db.Exec(query,
		item.ID, item.OrganizationID, item.Title, item.ItemType, item.Currency, item.BasePrice,
		item.MinPax, item.MaxPax, item.MinNights, item.CapacityMode, item.MaxPerDay,
		item.AllowOverbook, item.Active, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create catalog item: %w", err)
	}
	return nil
}

// GetByID retrieves an item scoped to an organization. Cross-tenant lookups
// fall through to sql.ErrNoRows so callers cannot tell "absent" from "not
// yours".
func (r *CatalogItemRepository) GetByID(orgID, itemID uuid.UUID) (*models.CatalogItem, error) {
	var item models.CatalogItem
	query := `SELECT ` + catalogItemColumns + ` FROM catalog_items WHERE id = $1 AND organization_id = $2`
	err := r.db.Get(&item, query, itemID, orgID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog item: %w", err)
	}
	return &item, nil
}

// ListByOrganization returns all items for an organization
func (r *CatalogItemRepository) ListByOrganization(orgID uuid.UUID, activeOnly bool) ([]models.CatalogItem, error) {
	query := `SELECT ` + catalogItemColumns + ` FROM catalog_items WHERE organization_id = $1`
	if activeOnly {
		query += ` AND active = true`
	}
	query += ` ORDER BY created_at DESC`

	var items []models.CatalogItem
	if err := r.db.Select(&items, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	return items, nil
}

// Update applies a partial update to an item
func (r *CatalogItemRepository) Update(orgID, itemID uuid.UUID, req *models.UpdateCatalogItemRequest) error {
	query := `
		UPDATE catalog_items SET
			title = COALESCE($3, title),
			base_price = COALESCE($4, base_price),
			min_pax = COALESCE($5, min_pax),
			max_pax = COALESCE($6, max_pax),
			min_nights = COALESCE($7, min_nights),
			max_per_day = COALESCE($8, max_per_day),
			active = COALESCE($9, active),
			updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`

	result, err := r.db.Exec(query, itemID, orgID,
		req.Title, req.BasePrice, req.MinPax, req.MaxPax, req.MinNights, req.MaxPerDay, req.Active)
	if err != nil {
		return fmt.Errorf("failed to update catalog item: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Deactivate marks an item inactive without removing it; existing bookings
// keep settling on their snapshots.
func (r *CatalogItemRepository) Deactivate(orgID, itemID uuid.UUID) error {
	query := `UPDATE catalog_items SET active = false, updated_at = NOW() WHERE id = $1 AND organization_id = $2`
	result, err := r.db.Exec(query, itemID, orgID)
	if err != nil {
		return fmt.Errorf("failed to deactivate catalog item: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}
