package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/otelcore/booking-backend/internal/models"
)

// QuoteRepository handles ephemeral quote storage
type QuoteRepository struct {
	db *sqlx.DB
}

// NewQuoteRepository creates a new QuoteRepository
func NewQuoteRepository(db *sqlx.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

const quoteColumns = `
	id, organization_id, catalog_item_id, status, start_date, end_date, nights,
	adults, children, currency, base_total, computed_total, coupon,
	expires_at, created_at`

// Create inserts a new quote
func (r *QuoteRepository) Create(quote *models.Quote) error {
	quote.ID = uuid.New()
	quote.Status = models.QuoteStatusActive
	quote.CreatedAt = time.Now()

	query := `
		INSERT INTO quotes (
			id, organization_id, catalog_item_id, status, start_date, end_date, nights,
			adults, children, currency, base_total, computed_total, coupon,
			expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	_, err := r.db.Exec(query,
		quote.ID, quote.OrganizationID, quote.CatalogItemID, quote.Status,
		quote.StartDate, quote.EndDate, quote.Nights,
		quote.Adults, quote.Children, quote.Currency,
		quote.BaseTotal, quote.ComputedTotal, quote.Coupon,
		quote.ExpiresAt, quote.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create quote: %w", err)
	}
	return nil
}

// GetByID retrieves a quote by its opaque token
func (r *QuoteRepository) GetByID(quoteID uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`
	err := r.db.Get(&quote, query, quoteID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}
	return &quote, nil
}

// SetCoupon replaces the coupon and computed total on a live quote. The guard
// keeps expired quotes immutable.
func (r *QuoteRepository) SetCoupon(quoteID uuid.UUID, coupon *models.AppliedCoupon, computedTotal float64) error {
	query := `
		UPDATE quotes
		SET coupon = $2, computed_total = $3
		WHERE id = $1 AND status = 'active' AND expires_at > NOW()`
	result, err := r.db.Exec(query, quoteID, coupon, computedTotal)
	if err != nil {
		return fmt.Errorf("failed to set quote coupon: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrQuoteExpired
	}
	return nil
}

// ExpireStale marks quotes past their TTL as expired and returns how many
// were swept. Requests referencing swept quotes keep their frozen snapshots.
func (r *QuoteRepository) ExpireStale(limit int) (int, error) {
	query := `
		UPDATE quotes SET status = 'expired'
		WHERE id IN (
			SELECT id FROM quotes
			WHERE status = 'active' AND expires_at < NOW()
			LIMIT $1
		)`
	result, err := r.db.Exec(query, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale quotes: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// DeleteExpiredBefore garbage-collects expired quotes older than the cutoff.
// Nothing references a quote once a booking request exists, so this is safe.
func (r *QuoteRepository) DeleteExpiredBefore(cutoff time.Time) (int, error) {
	query := `DELETE FROM quotes WHERE status = 'expired' AND expires_at < $1`
	result, err := r.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired quotes: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
