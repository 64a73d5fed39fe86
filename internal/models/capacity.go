package models

import (
	"time"

	"github.com/google/uuid"
)

// CapacityLedgerEntry is the per-(catalog_item_id, date) committed aggregate.
// Invariant: consumed_pax <= max ceiling unless the item allows overbooking;
// enforced by the repository's conditional update, never by application reads.
type CapacityLedgerEntry struct {
	CatalogItemID uuid.UUID `json:"catalog_item_id" db:"catalog_item_id"`
	Date          time.Time `json:"date" db:"date"`
	ConsumedPax   int       `json:"consumed_pax" db:"consumed_pax"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// CapacityDay is the operator-facing per-day utilization row
type CapacityDay struct {
	Date        string `json:"date"` // "2026-01-10"
	ConsumedPax int    `json:"consumed_pax"`
	MaxPerDay   *int   `json:"max_per_day,omitempty"` // nil for unlimited items
}

// CapacityListResponse is returned by the capacity dashboard endpoint
type CapacityListResponse struct {
	CatalogItemID uuid.UUID     `json:"catalog_item_id"`
	From          string        `json:"from"`
	To            string        `json:"to"`
	Days          []CapacityDay `json:"days"`
}
