package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// QuoteStatus represents the lifecycle of an ephemeral quote
// Matches PostgreSQL ENUM: quote_status
type QuoteStatus string

const (
	QuoteStatusActive  QuoteStatus = "active"
	QuoteStatusExpired QuoteStatus = "expired"
)

// CouponStatus is the outcome of a coupon application attempt
type CouponStatus string

const (
	CouponApplied  CouponStatus = "APPLIED"
	CouponRejected CouponStatus = "REJECTED"
	CouponCleared  CouponStatus = "CLEARED"
)

// PaxBreakdown is the party composition for a quote or booking
type PaxBreakdown struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

// Total returns the total party size
func (p PaxBreakdown) Total() int {
	return p.Adults + p.Children
}

// AppliedCoupon records a successfully applied coupon on a quote
type AppliedCoupon struct {
	Code           string  `json:"code"`
	DiscountType   string  `json:"discount_type"` // "percent" or "fixed"
	DiscountValue  float64 `json:"discount_value"`
	DiscountAmount float64 `json:"discount_amount"`
}

func (c AppliedCoupon) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *AppliedCoupon) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for AppliedCoupon")
	}
	return json.Unmarshal(bytes, c)
}

// Quote is an ephemeral, time-boxed pricing computation. It is never edited
// after creation except for coupon application, which replaces computed_total
// while base_total preserves the pre-coupon amount.
type Quote struct {
	ID             uuid.UUID   `json:"quote_id" db:"id"`
	OrganizationID uuid.UUID   `json:"organization_id" db:"organization_id"`
	CatalogItemID  uuid.UUID   `json:"catalog_item_id" db:"catalog_item_id"`
	Status         QuoteStatus `json:"status" db:"status"`

	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"` // equal to StartDate for single-day items
	Nights    int       `json:"nights" db:"nights"`

	Adults   int `json:"adults" db:"adults"`
	Children int `json:"children" db:"children"`

	Currency      string         `json:"currency" db:"currency"`
	BaseTotal     float64        `json:"base_total" db:"base_total"`
	ComputedTotal float64        `json:"computed_total" db:"computed_total"`
	Coupon        *AppliedCoupon `json:"coupon,omitempty" db:"coupon"`

	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Pax returns the quote's party breakdown
func (q *Quote) Pax() PaxBreakdown {
	return PaxBreakdown{Adults: q.Adults, Children: q.Children}
}

// IsExpired checks if the quote has passed its TTL
func (q *Quote) IsExpired() bool {
	return q.Status == QuoteStatusExpired || time.Now().After(q.ExpiresAt)
}

// CreateQuoteRequest is the public request to price an item
type CreateQuoteRequest struct {
	OrganizationID string `json:"organization_id" binding:"required,uuid"`
	CatalogItemID  string `json:"catalog_item_id" binding:"required,uuid"`
	StartDate      string `json:"start_date" binding:"required"` // "2026-01-10"
	EndDate        string `json:"end_date,omitempty"`            // rooms only
	Adults         int    `json:"adults" binding:"required,min=1"`
	Children       int    `json:"children"`
	Currency       string `json:"currency,omitempty"` // defaults to item currency
}

// QuoteResponse is returned after quote creation or coupon operations
type QuoteResponse struct {
	QuoteID       uuid.UUID      `json:"quote_id"`
	CatalogItemID uuid.UUID      `json:"catalog_item_id"`
	Currency      string         `json:"currency"`
	BaseTotal     float64        `json:"base_total"`
	ComputedTotal float64        `json:"computed_total"`
	Coupon        *AppliedCoupon `json:"coupon,omitempty"`
	ExpiresAt     time.Time      `json:"expires_at"`
	TTLSeconds    int            `json:"ttl_seconds"`
}

// NewQuoteResponse builds the wire response for a quote
func NewQuoteResponse(q *Quote) QuoteResponse {
	ttl := int(time.Until(q.ExpiresAt).Seconds())
	if ttl < 0 {
		ttl = 0
	}
	return QuoteResponse{
		QuoteID:       q.ID,
		CatalogItemID: q.CatalogItemID,
		Currency:      q.Currency,
		BaseTotal:     q.BaseTotal,
		ComputedTotal: q.ComputedTotal,
		Coupon:        q.Coupon,
		ExpiresAt:     q.ExpiresAt,
		TTLSeconds:    ttl,
	}
}

// ApplyCouponRequest carries the coupon code for a quote
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// CouponApplication is the soft result of a coupon attempt. A rejection is a
// 200-level outcome, never a transport error, and never mutates the total.
type CouponApplication struct {
	Status        CouponStatus `json:"status"`
	Code          string       `json:"code,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	ComputedTotal float64      `json:"computed_total"`
	Currency      string       `json:"currency"`
}
