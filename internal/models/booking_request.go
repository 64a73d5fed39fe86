package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// BOOKING REQUEST STATUSES (matches DB ENUM: booking_request_status)
// ============================================================================

// BookingStatus represents the review state of a booking request
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"    // awaiting operator review
	BookingStatusApproved  BookingStatus = "approved"   // operator approved, capacity committed
	BookingStatusRejected  BookingStatus = "rejected"   // terminal
	BookingStatusOfferSent BookingStatus = "offer_sent" // customer-facing offer issued
	BookingStatusPaid      BookingStatus = "paid"       // terminal, payment confirmed
	BookingStatusCancelled BookingStatus = "cancelled"  // terminal
)

// IsTerminal reports whether no further transitions are allowed
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusRejected || s == BookingStatusPaid || s == BookingStatusCancelled
}

// ConsumesCapacity reports whether the status holds committed ledger units.
// Capacity is committed at approval and carried through offer_sent and paid.
func (s BookingStatus) ConsumesCapacity() bool {
	return s == BookingStatusApproved || s == BookingStatusOfferSent || s == BookingStatusPaid
}

// BookingSource identifies the submission channel
type BookingSource string

const (
	SourcePublicBooking BookingSource = "public_booking"
	SourceCatalog       BookingSource = "catalog"
	SourceBackOffice    BookingSource = "back_office"
)

// ============================================================================
// JSONB PAYLOAD TYPES
// ============================================================================

// GuestInfo is the contact details captured at submission
type GuestInfo struct {
	FullName string  `json:"full_name"`
	Phone    string  `json:"phone"`
	Email    *string `json:"email,omitempty"`
}

func (g GuestInfo) Value() (driver.Value, error) {
	return json.Marshal(g)
}

func (g *GuestInfo) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for GuestInfo")
	}
	return json.Unmarshal(bytes, g)
}

// CatalogSnapshot freezes the priced terms at submission time. The live
// CatalogItem may change afterwards; the request always settles on this copy.
type CatalogSnapshot struct {
	CatalogItemID uuid.UUID      `json:"catalog_item_id"`
	Title         string         `json:"title"`
	ItemType      ItemType       `json:"item_type"`
	Currency      string         `json:"currency"`
	BasePrice     float64        `json:"base_price"`
	BaseTotal     float64        `json:"base_total"`
	ComputedTotal float64        `json:"computed_total"`
	Coupon        *AppliedCoupon `json:"coupon,omitempty"`
	SnapshotAt    time.Time      `json:"snapshot_at"`
}

func (s CatalogSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *CatalogSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = CatalogSnapshot{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for CatalogSnapshot")
	}
	return json.Unmarshal(bytes, s)
}

// InternalNote is one entry in the append-only operator note trail
type InternalNote struct {
	AuthorID  *uuid.UUID `json:"author_id,omitempty"` // nil for system entries
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
}

// InternalNotes is the ordered note list stored as JSONB
type InternalNotes []InternalNote

func (n InternalNotes) Value() (driver.Value, error) {
	if n == nil {
		return json.Marshal(InternalNotes{})
	}
	return json.Marshal(n)
}

func (n *InternalNotes) Scan(value interface{}) error {
	if value == nil {
		*n = InternalNotes{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for InternalNotes")
	}
	return json.Unmarshal(bytes, n)
}

// ============================================================================
// BOOKING REQUEST MODEL (booking_requests table)
// ============================================================================

// BookingRequest is the durable guest submission. It is never deleted; all
// review outcomes are status transitions plus note-trail appends.
type BookingRequest struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	CatalogItemID  uuid.UUID `json:"catalog_item_id" db:"catalog_item_id"`

	BookingCode string        `json:"booking_code" db:"booking_code"` // short guest-facing reference
	Status      BookingStatus `json:"status" db:"status"`
	Source      BookingSource `json:"source" db:"source"`

	Guest    GuestInfo       `json:"guest" db:"guest"`
	Snapshot CatalogSnapshot `json:"catalog_snapshot" db:"catalog_snapshot"`

	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
	Adults    int       `json:"adults" db:"adults"`
	Children  int       `json:"children" db:"children"`

	RejectReason *string       `json:"reject_reason,omitempty" db:"reject_reason"`
	OfferToken   *string       `json:"-" db:"offer_token"`
	PaymentRef   *string       `json:"payment_ref,omitempty" db:"payment_ref"`
	Notes        InternalNotes `json:"internal_notes" db:"internal_notes"`

	// Idempotency: one request per quote per organization
	DedupKey uuid.UUID `json:"dedup_key" db:"dedup_key"`

	ApprovedAt  *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	OfferSentAt *time.Time `json:"offer_sent_at,omitempty" db:"offer_sent_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Pax returns the request's party breakdown
func (b *BookingRequest) Pax() PaxBreakdown {
	return PaxBreakdown{Adults: b.Adults, Children: b.Children}
}

// LedgerDates returns every date the request consumes capacity on.
// Rooms consume each night of the stay; tours consume the single start date.
func (b *BookingRequest) LedgerDates() []time.Time {
	if !b.EndDate.After(b.StartDate) {
		return []time.Time{b.StartDate}
	}
	var dates []time.Time
	for d := b.StartDate; d.Before(b.EndDate); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// CanTransitionTo validates the state machine edge without side effects
func (b *BookingRequest) CanTransitionTo(next BookingStatus) bool {
	switch next {
	case BookingStatusApproved:
		return b.Status == BookingStatusPending
	case BookingStatusRejected:
		// idempotent: re-rejecting a rejected request is a no-op, not an error
		return b.Status == BookingStatusPending || b.Status == BookingStatusRejected
	case BookingStatusOfferSent:
		return b.Status == BookingStatusApproved
	case BookingStatusPaid:
		return b.Status == BookingStatusOfferSent
	case BookingStatusCancelled:
		return !b.Status.IsTerminal()
	}
	return false
}

// ============================================================================
// REQUEST/RESPONSE STRUCTS
// ============================================================================

// SubmitBookingRequest is the public submission payload. The quote_id doubles
// as the dedup key: a double-click resubmission returns the original request.
type SubmitBookingRequest struct {
	QuoteID string `json:"quote_id" binding:"required,uuid"`
	Guest   struct {
		FullName string  `json:"full_name" binding:"required"`
		Phone    string  `json:"phone" binding:"required"`
		Email    *string `json:"email,omitempty"`
	} `json:"guest" binding:"required"`
	Source string `json:"source,omitempty"`
}

// RejectBookingRequest carries the operator's rejection reason
type RejectBookingRequest struct {
	Reason string `json:"reason"`
}

// AddNoteRequest appends an internal note
type AddNoteRequest struct {
	Body string `json:"body"`
}

// PaymentWebhookRequest is the external payment confirmation event
type PaymentWebhookRequest struct {
	BookingID        string `json:"booking_id" binding:"required,uuid"`
	PaymentReference string `json:"payment_reference" binding:"required"`
}

// MyBookingLookupRequest supports both public lookup schemes. Exactly one
// pair must be supplied; the response body is identical either way.
type MyBookingLookupRequest struct {
	BookingCode string `json:"booking_code,omitempty"`
	Email       string `json:"email,omitempty"`
	PNR         string `json:"pnr,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

// HasLookupPair reports whether a complete identifier pair was supplied
func (r *MyBookingLookupRequest) HasLookupPair() bool {
	return (r.BookingCode != "" && r.Email != "") || (r.PNR != "" && r.LastName != "")
}

// SendOfferResponse returns the customer-facing artifact reference
type SendOfferResponse struct {
	BookingID uuid.UUID `json:"booking_id"`
	Status    string    `json:"status"`
	OfferURL  string    `json:"offer_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
