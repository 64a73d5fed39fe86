package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CapacityMode controls how per-day inventory is enforced for an item
// Matches PostgreSQL ENUM: capacity_mode
type CapacityMode string

const (
	CapacityPerDay    CapacityMode = "per_day"   // consumed pax counted against max_per_day
	CapacityUnlimited CapacityMode = "unlimited" // no ledger enforcement
)

// ItemType determines the pricing quantity factor
// Matches PostgreSQL ENUM: catalog_item_type
type ItemType string

const (
	ItemTypeTour ItemType = "tour" // priced per pax
	ItemTypeRoom ItemType = "room" // priced per night
)

// CatalogItem represents a sellable unit (tour, hotel room/rate, variant).
// Price/terms are snapshotted onto booking requests at submission time, so
// later edits never affect confirmed bookings.
type CatalogItem struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	OrganizationID uuid.UUID    `json:"organization_id" db:"organization_id"`
	Title          string       `json:"title" db:"title"`
	ItemType       ItemType     `json:"item_type" db:"item_type"`
	Currency       string       `json:"currency" db:"currency"`
	BasePrice      float64      `json:"base_price" db:"base_price"`
	MinPax         int          `json:"min_pax" db:"min_pax"`
	MaxPax         int          `json:"max_pax" db:"max_pax"`
	MinNights      int          `json:"min_nights" db:"min_nights"`
	CapacityMode   CapacityMode `json:"capacity_mode" db:"capacity_mode"`
	MaxPerDay      *int         `json:"max_per_day,omitempty" db:"max_per_day"`
	AllowOverbook  bool         `json:"allow_overbook" db:"allow_overbook"`
	Active         bool         `json:"active" db:"active"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// EnforcesCapacity reports whether the ledger applies to this item
func (i *CatalogItem) EnforcesCapacity() bool {
	return i.CapacityMode == CapacityPerDay && i.MaxPerDay != nil && !i.AllowOverbook
}

// CreateCatalogItemRequest is the operator request to create an item
type CreateCatalogItemRequest struct {
	Title        string   `json:"title" binding:"required"`
	ItemType     ItemType `json:"item_type" binding:"required"`
	Currency     string   `json:"currency" binding:"required,len=3"`
	BasePrice    float64  `json:"base_price" binding:"required,gt=0"`
	MinPax       int      `json:"min_pax"`
	MaxPax       int      `json:"max_pax" binding:"required,min=1"`
	MinNights    int      `json:"min_nights"`
	CapacityMode string   `json:"capacity_mode"`
	MaxPerDay    *int     `json:"max_per_day,omitempty"`
}

// Validate validates an item creation request
func (r *CreateCatalogItemRequest) Validate() error {
	if r.ItemType != ItemTypeTour && r.ItemType != ItemTypeRoom {
		return errors.New("item_type must be tour or room")
	}
	if r.MinPax < 0 {
		return errors.New("min_pax cannot be negative")
	}
	if r.MinPax > r.MaxPax {
		return errors.New("min_pax cannot exceed max_pax")
	}
	switch CapacityMode(r.CapacityMode) {
	case CapacityPerDay:
		if r.MaxPerDay == nil || *r.MaxPerDay < 1 {
			return errors.New("max_per_day is required for per_day capacity mode")
		}
	case CapacityUnlimited, "":
		// max_per_day ignored
	default:
		return errors.New("capacity_mode must be per_day or unlimited")
	}
	return nil
}

// UpdateCatalogItemRequest is the operator request to update an item
type UpdateCatalogItemRequest struct {
	Title     *string  `json:"title,omitempty"`
	BasePrice *float64 `json:"base_price,omitempty"`
	MinPax    *int     `json:"min_pax,omitempty"`
	MaxPax    *int     `json:"max_pax,omitempty"`
	MinNights *int     `json:"min_nights,omitempty"`
	MaxPerDay *int     `json:"max_per_day,omitempty"`
	Active    *bool    `json:"active,omitempty"`
}
