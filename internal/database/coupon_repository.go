package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/otelcore/booking-backend/internal/models"
)

// CouponRepository handles coupon reads. The booking flow never writes here.
type CouponRepository struct {
	db *sqlx.DB
}

// NewCouponRepository creates a new CouponRepository
func NewCouponRepository(db *sqlx.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// GetByCode retrieves an active coupon by its normalized code, scoped to an
// organization.
func (r *CouponRepository) GetByCode(orgID uuid.UUID, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	query := `
		SELECT id, organization_id, code, discount_type, discount_value,
		       min_amount, valid_from, valid_to, active, created_at
		FROM coupons
		WHERE organization_id = $1 AND code = $2`
	err := r.db.Get(&coupon, query, orgID, strings.ToUpper(strings.TrimSpace(code)))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch coupon: %w", err)
	}
	return &coupon, nil
}
