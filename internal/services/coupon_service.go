package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/otelcore/booking-backend/internal/models"
)

// CouponReader looks up coupons by normalized code
type CouponReader interface {
	GetByCode(orgID uuid.UUID, code string) (*models.Coupon, error)
}

// CouponBookingStore is the slice of booking persistence the applier needs
// for pre-approval repricing
type CouponBookingStore interface {
	GetByID(orgID, id uuid.UUID) (*models.BookingRequest, error)
	UpdateSnapshot(orgID, id uuid.UUID, snapshot models.CatalogSnapshot) error
}

// CouponService validates and applies discount codes against live quotes and
// still-pending booking requests. A rejection is a soft outcome: the total is
// never touched and the caller receives the reason instead of a transport
// error.
type CouponService struct {
	coupons  CouponReader
	quotes   QuoteStore
	bookings CouponBookingStore
	logger   *logrus.Logger
}

// NewCouponService creates a new CouponService
func NewCouponService(coupons CouponReader, quotes QuoteStore, bookings CouponBookingStore, logger *logrus.Logger) *CouponService {
	return &CouponService{
		coupons:  coupons,
		quotes:   quotes,
		bookings: bookings,
		logger:   logger,
	}
}

// Rejection reasons returned to the caller
const (
	RejectCouponNotFound  = "coupon_not_found"
	RejectCouponInactive  = "coupon_inactive"
	RejectOutsideWindow   = "outside_validity_window"
	RejectMinAmountNotMet = "min_amount_not_met"
)

// evaluate runs the applicability rules against a pre-coupon total. A failed
// rule comes back as a rejection reason, not an error.
func (s *CouponService) evaluate(orgID uuid.UUID, code string, baseTotal float64) (*models.Coupon, string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	coupon, err := s.coupons.GetByCode(orgID, normalized)
	if err == models.ErrNotFound {
		return nil, RejectCouponNotFound, nil
	}
	if err != nil {
		return nil, "", err
	}

	if !coupon.Active {
		return nil, RejectCouponInactive, nil
	}

	now := time.Now()
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return nil, RejectOutsideWindow, nil
	}
	if coupon.ValidTo != nil && now.After(*coupon.ValidTo) {
		return nil, RejectOutsideWindow, nil
	}

	// Minimum amount is judged against the pre-coupon total so stacking a
	// second code cannot sneak under the threshold
	if baseTotal < coupon.MinAmount {
		return nil, RejectMinAmountNotMet, nil
	}

	return coupon, "", nil
}

// appliedCoupon freezes the discount terms the code resolved to
func appliedCoupon(coupon *models.Coupon, amount float64) *models.AppliedCoupon {
	return &models.AppliedCoupon{
		Code:           coupon.Code,
		DiscountType:   string(coupon.DiscountType),
		DiscountValue:  coupon.DiscountValue,
		DiscountAmount: amount,
	}
}

// Apply validates a code against a live quote and, on success, replaces the
// quote's computed total with the discounted amount.
func (s *CouponService) Apply(quoteID uuid.UUID, code string) (*models.CouponApplication, error) {
	quote, err := s.quotes.GetByID(quoteID)
	if err != nil {
		return nil, err
	}
	if quote.IsExpired() {
		return nil, models.ErrQuoteExpired
	}

	coupon, reason, err := s.evaluate(quote.OrganizationID, code, quote.BaseTotal)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return &models.CouponApplication{
			Status:        models.CouponRejected,
			Reason:        reason,
			ComputedTotal: quote.ComputedTotal,
			Currency:      quote.Currency,
		}, nil
	}

	amount := coupon.DiscountAmount(quote.BaseTotal)
	newTotal := quote.BaseTotal - amount

	if err := s.quotes.SetCoupon(quote.ID, appliedCoupon(coupon, amount), newTotal); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"quote_id": quote.ID,
		"code":     coupon.Code,
		"discount": amount,
	}).Info("Coupon applied")

	return &models.CouponApplication{
		Status:        models.CouponApplied,
		Code:          coupon.Code,
		ComputedTotal: newTotal,
		Currency:      quote.Currency,
	}, nil
}

// Clear removes a previously applied coupon and restores the pre-coupon
// total. This is a deliberate operation, distinct from applying an empty
// code, so "never attempted" and "explicitly removed" stay distinguishable.
func (s *CouponService) Clear(quoteID uuid.UUID) (*models.CouponApplication, error) {
	quote, err := s.quotes.GetByID(quoteID)
	if err != nil {
		return nil, err
	}
	if quote.IsExpired() {
		return nil, models.ErrQuoteExpired
	}

	if quote.Coupon != nil {
		if err := s.quotes.SetCoupon(quote.ID, nil, quote.BaseTotal); err != nil {
			return nil, err
		}
	}

	return &models.CouponApplication{
		Status:        models.CouponCleared,
		ComputedTotal: quote.BaseTotal,
		Currency:      quote.Currency,
	}, nil
}

// ApplyToBooking attempts a code against a still-pending booking request,
// repricing the frozen snapshot. Once the request leaves pending the price is
// settled and the attempt fails with ErrInvalidTransition.
func (s *CouponService) ApplyToBooking(orgID, bookingID uuid.UUID, code string) (*models.CouponApplication, error) {
	booking, err := s.bookings.GetByID(orgID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		return nil, models.ErrInvalidTransition
	}

	snapshot := booking.Snapshot
	coupon, reason, err := s.evaluate(orgID, code, snapshot.BaseTotal)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return &models.CouponApplication{
			Status:        models.CouponRejected,
			Reason:        reason,
			ComputedTotal: snapshot.ComputedTotal,
			Currency:      snapshot.Currency,
		}, nil
	}

	amount := coupon.DiscountAmount(snapshot.BaseTotal)
	snapshot.ComputedTotal = snapshot.BaseTotal - amount
	snapshot.Coupon = appliedCoupon(coupon, amount)

	if err := s.bookings.UpdateSnapshot(orgID, bookingID, snapshot); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"code":       coupon.Code,
		"discount":   amount,
	}).Info("Coupon applied to booking request")

	return &models.CouponApplication{
		Status:        models.CouponApplied,
		Code:          coupon.Code,
		ComputedTotal: snapshot.ComputedTotal,
		Currency:      snapshot.Currency,
	}, nil
}

// ClearFromBooking restores a pending request's pre-coupon total
func (s *CouponService) ClearFromBooking(orgID, bookingID uuid.UUID) (*models.CouponApplication, error) {
	booking, err := s.bookings.GetByID(orgID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		return nil, models.ErrInvalidTransition
	}

	snapshot := booking.Snapshot
	if snapshot.Coupon != nil {
		snapshot.Coupon = nil
		snapshot.ComputedTotal = snapshot.BaseTotal
		if err := s.bookings.UpdateSnapshot(orgID, bookingID, snapshot); err != nil {
			return nil, err
		}
	}

	return &models.CouponApplication{
		Status:        models.CouponCleared,
		ComputedTotal: snapshot.BaseTotal,
		Currency:      snapshot.Currency,
	}, nil
}
