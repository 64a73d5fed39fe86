package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType shapes the coupon reduction
// Matches PostgreSQL ENUM: discount_type
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Coupon holds the applicability rules for a discount code. The booking flow
// only reads and validates against coupons, it never mutates them.
type Coupon struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	OrganizationID uuid.UUID    `json:"organization_id" db:"organization_id"`
	Code           string       `json:"code" db:"code"` // stored upper-case
	DiscountType   DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue  float64      `json:"discount_value" db:"discount_value"`
	MinAmount      float64      `json:"min_amount" db:"min_amount"`
	ValidFrom      *time.Time   `json:"valid_from,omitempty" db:"valid_from"`
	ValidTo        *time.Time   `json:"valid_to,omitempty" db:"valid_to"`
	Active         bool         `json:"active" db:"active"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// DiscountAmount computes the reduction against a total, clamped to the total
func (c *Coupon) DiscountAmount(total float64) float64 {
	var amount float64
	switch c.DiscountType {
	case DiscountPercent:
		amount = total * c.DiscountValue / 100.0
	case DiscountFixed:
		amount = c.DiscountValue
	}
	if amount > total {
		amount = total
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}
