package services

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/otelcore/booking-backend/internal/models"
	"github.com/otelcore/booking-backend/pkg/validator"
)

// BookingStore is the persistence surface the workflow needs
type BookingStore interface {
	Create(req *models.BookingRequest) (*models.BookingRequest, bool, error)
	GetByID(orgID, id uuid.UUID) (*models.BookingRequest, error)
	GetAnyByID(id uuid.UUID) (*models.BookingRequest, error)
	ListByOrganization(orgID uuid.UUID, status *models.BookingStatus, limit, offset int) ([]models.BookingRequest, error)
	MarkApproved(orgID, id uuid.UUID) error
	MarkRejected(orgID, id uuid.UUID, reason string) error
	MarkOfferSent(orgID, id uuid.UUID, offerToken string) error
	MarkPaid(orgID, id uuid.UUID, paymentRef string) error
	CancelAndRelease(orgID, id uuid.UUID, releaseLedger bool) (models.BookingStatus, error)
	AppendNote(orgID, id uuid.UUID, note models.InternalNote) error
	FindByCodeAndEmail(code, email string) (*models.BookingRequest, error)
	FindByPNRAndLastName(pnr, lastName string) (*models.BookingRequest, error)
}

// CapacityLedger is the committing side of the ledger
type CapacityLedger interface {
	Commit(itemID uuid.UUID, dates []time.Time, pax int, maxPerDay int) error
	CommitUnchecked(itemID uuid.UUID, dates []time.Time, pax int) error
	Release(itemID uuid.UUID, dates []time.Time, pax int) error
}

// OfferIssuer mints the customer-facing offer artifact
type OfferIssuer interface {
	Issue(booking *models.BookingRequest) (token string, url string, expiresAt time.Time, err error)
}

// BookingService drives the booking request workflow: public submission and
// the operator review state machine.
type BookingService struct {
	bookings      BookingStore
	quotes        QuoteStore
	catalog       CatalogReader
	ledger        CapacityLedger
	offers        OfferIssuer
	contacts      *validator.ContactValidator
	commitRetries int
	logger        *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookings BookingStore,
	quotes QuoteStore,
	catalog CatalogReader,
	ledger CapacityLedger,
	offers OfferIssuer,
	commitRetries int,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookings:      bookings,
		quotes:        quotes,
		catalog:       catalog,
		ledger:        ledger,
		offers:        offers,
		contacts:      validator.NewContactValidator(),
		commitRetries: commitRetries,
		logger:        logger,
	}
}

// SubmitResult reports what Submit did
type SubmitResult struct {
	Request *models.BookingRequest
	Created bool // false when the dedup key matched an existing request
}

// Submit converts an unexpired quote plus guest contact info into a pending
// booking request. The quote id is the dedup key: retried or double-clicked
// submissions return the original request instead of creating a duplicate.
func (s *BookingService) Submit(req *models.SubmitBookingRequest) (*SubmitResult, error) {
	quoteID, err := uuid.Parse(req.QuoteID)
	if err != nil {
		return nil, models.ErrNotFound
	}

	quote, err := s.quotes.GetByID(quoteID)
	if err != nil {
		return nil, err
	}
	if quote.IsExpired() {
		return nil, models.ErrQuoteExpired
	}

	item, err := s.catalog.GetByID(quote.OrganizationID, quote.CatalogItemID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, models.ErrItemUnavailable
	}

	phone, err := s.contacts.ValidatePhone(req.Guest.Phone)
	if err != nil {
		return nil, err
	}
	var email *string
	if req.Guest.Email != nil && *req.Guest.Email != "" {
		normalized, err := s.contacts.ValidateEmail(*req.Guest.Email)
		if err != nil {
			return nil, err
		}
		email = &normalized
	}

	source := models.SourcePublicBooking
	if req.Source != "" {
		source = models.BookingSource(req.Source)
	}

	booking := &models.BookingRequest{
		OrganizationID: quote.OrganizationID,
		CatalogItemID:  quote.CatalogItemID,
		BookingCode:    generateBookingCode(),
		Source:         source,
		Guest: models.GuestInfo{
			FullName: strings.TrimSpace(req.Guest.FullName),
			Phone:    phone,
			Email:    email,
		},
		Snapshot: models.CatalogSnapshot{
			CatalogItemID: item.ID,
			Title:         item.Title,
			ItemType:      item.ItemType,
			Currency:      quote.Currency,
			BasePrice:     item.BasePrice,
			BaseTotal:     quote.BaseTotal,
			ComputedTotal: quote.ComputedTotal,
			Coupon:        quote.Coupon,
			SnapshotAt:    time.Now(),
		},
		StartDate: quote.StartDate,
		EndDate:   quote.EndDate,
		Adults:    quote.Adults,
		Children:  quote.Children,
		Notes:     models.InternalNotes{},
		DedupKey:  quote.ID,
	}

	stored, created, err := s.bookings.Create(booking)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   stored.ID,
		"booking_code": stored.BookingCode,
		"created":      created,
		"org_id":       stored.OrganizationID,
	}).Info("Booking request submitted")

	return &SubmitResult{Request: stored, Created: created}, nil
}

// Approve re-validates capacity at decision time and commits it before the
// status flips. Submission-time headroom is not trusted: a competing request
// may have consumed the remaining units in between. On CapacityExceeded the
// request stays pending for manual resolution.
func (s *BookingService) Approve(orgID, operatorID, bookingID uuid.UUID) (*models.BookingRequest, error) {
	booking, err := s.bookings.GetByID(orgID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		return nil, models.ErrInvalidTransition
	}

	item, err := s.catalog.GetByID(orgID, booking.CatalogItemID)
	if err != nil {
		return nil, err
	}

	dates := booking.LedgerDates()
	pax := booking.Pax().Total()
	committed := false

	if item.CapacityMode == models.CapacityPerDay && item.MaxPerDay != nil {
		if item.AllowOverbook {
			err = s.commitWithRetry(func() error {
				return s.ledger.CommitUnchecked(item.ID, dates, pax)
			})
		} else {
			err = s.commitWithRetry(func() error {
				return s.ledger.Commit(item.ID, dates, pax, *item.MaxPerDay)
			})
		}
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"booking_id": bookingID,
				"item_id":    item.ID,
			}).WithError(err).Warn("Capacity commit failed, request stays pending")
			return nil, err
		}
		committed = true
	}

	if err := s.bookings.MarkApproved(orgID, bookingID); err != nil {
		// A racing operator beat us to the transition: give back the units we
		// just took so the ledger does not leak
		if committed {
			if relErr := s.ledger.Release(item.ID, dates, pax); relErr != nil {
				s.logger.WithError(relErr).WithField("booking_id", bookingID).
					Error("Failed to release capacity after lost approval race")
			}
		}
		return nil, err
	}

	s.appendSystemNote(orgID, bookingID, operatorID, "approved")

	return s.bookings.GetByID(orgID, bookingID)
}

// Reject transitions pending -> rejected. Rejecting an already-rejected
// request is an idempotent no-op: the current state comes back unchanged and
// no duplicate note is appended.
func (s *BookingService) Reject(orgID, operatorID, bookingID uuid.UUID, reason string) (*models.BookingRequest, error) {
	booking, err := s.bookings.GetByID(orgID, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.Status == models.BookingStatusRejected {
		return booking, nil
	}
	if booking.Status != models.BookingStatusPending {
		return nil, models.ErrInvalidTransition
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("rejection reason is required")
	}

	if err := s.bookings.MarkRejected(orgID, bookingID, reason); err != nil {
		if err == models.ErrInvalidTransition {
			// Lost a race against another reject: re-read and report whatever
			// state won
			current, getErr := s.bookings.GetByID(orgID, bookingID)
			if getErr == nil && current.Status == models.BookingStatusRejected {
				return current, nil
			}
		}
		return nil, err
	}

	s.appendSystemNote(orgID, bookingID, operatorID, "rejected: "+reason)

	return s.bookings.GetByID(orgID, bookingID)
}

// SendOffer transitions approved -> offer_sent, minting a signed,
// time-limited offer URL. The price on the snapshot is untouched.
func (s *BookingService) SendOffer(orgID, operatorID, bookingID uuid.UUID) (*models.SendOfferResponse, error) {
	booking, err := s.bookings.GetByID(orgID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusApproved {
		return nil, models.ErrInvalidTransition
	}

	token, url, expiresAt, err := s.offers.Issue(booking)
	if err != nil {
		return nil, fmt.Errorf("failed to issue offer: %w", err)
	}

	if err := s.bookings.MarkOfferSent(orgID, bookingID, token); err != nil {
		return nil, err
	}

	s.appendSystemNote(orgID, bookingID, operatorID, "offer sent")

	return &models.SendOfferResponse{
		BookingID: bookingID,
		Status:    string(models.BookingStatusOfferSent),
		OfferURL:  url,
		ExpiresAt: expiresAt,
	}, nil
}

// ConfirmPayment consumes an external payment confirmation event and
// transitions offer_sent -> paid. Capacity was already committed at approval,
// so the ledger is untouched here.
func (s *BookingService) ConfirmPayment(bookingID uuid.UUID, paymentRef string) (*models.BookingRequest, error) {
	booking, err := s.bookings.GetAnyByID(bookingID)
	if err != nil {
		return nil, err
	}

	if err := s.bookings.MarkPaid(booking.OrganizationID, bookingID, paymentRef); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  bookingID,
		"payment_ref": paymentRef,
	}).Info("Payment confirmed")

	return s.bookings.GetByID(booking.OrganizationID, bookingID)
}

// Cancel transitions any non-terminal (or paid, as the refund path) request
// to cancelled. When the prior status held ledger units, the decrement happens
// inside the same database transaction; on inconsistency the whole transition
// aborts.
func (s *BookingService) Cancel(orgID, operatorID, bookingID uuid.UUID) (*models.BookingRequest, error) {
	booking, err := s.bookings.GetByID(orgID, bookingID)
	if err != nil {
		return nil, err
	}

	item, err := s.catalog.GetByID(orgID, booking.CatalogItemID)
	if err != nil {
		return nil, err
	}
	releaseLedger := item.CapacityMode == models.CapacityPerDay

	prior, err := s.bookings.CancelAndRelease(orgID, bookingID, releaseLedger)
	if err != nil {
		return nil, err
	}

	s.appendSystemNote(orgID, bookingID, operatorID, fmt.Sprintf("cancelled (was %s)", prior))

	return s.bookings.GetByID(orgID, bookingID)
}

// AddNote appends an operator note. An empty body is a no-op, not an error.
func (s *BookingService) AddNote(orgID, operatorID, bookingID uuid.UUID, body string) (*models.BookingRequest, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return s.bookings.GetByID(orgID, bookingID)
	}

	note := models.InternalNote{
		AuthorID:  &operatorID,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := s.bookings.AppendNote(orgID, bookingID, note); err != nil {
		return nil, err
	}
	return s.bookings.GetByID(orgID, bookingID)
}

// Lookup resolves a guest's own booking from either identifier pair. Callers
// must not expose whether anything matched; the handler always answers with
// the same generic body.
func (s *BookingService) Lookup(req *models.MyBookingLookupRequest) (*models.BookingRequest, error) {
	switch {
	case req.BookingCode != "" && req.Email != "":
		return s.bookings.FindByCodeAndEmail(req.BookingCode, req.Email)
	case req.PNR != "" && req.LastName != "":
		return s.bookings.FindByPNRAndLastName(req.PNR, req.LastName)
	default:
		return nil, models.ErrNotFound
	}
}

// Get returns one request for the back office
func (s *BookingService) Get(orgID, bookingID uuid.UUID) (*models.BookingRequest, error) {
	return s.bookings.GetByID(orgID, bookingID)
}

// List returns requests for the back office
func (s *BookingService) List(orgID uuid.UUID, status *models.BookingStatus, limit, offset int) ([]models.BookingRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.bookings.ListByOrganization(orgID, status, limit, offset)
}

// commitWithRetry retries transient ledger failures once. A definitive
// CapacityExceeded is never retried; the answer will not change.
func (s *BookingService) commitWithRetry(commit func() error) error {
	var err error
	for attempt := 0; attempt <= s.commitRetries; attempt++ {
		err = commit()
		if err == nil || err == models.ErrCapacityExceeded {
			return err
		}
	}
	return err
}

// appendSystemNote records a transition on the note trail; failures are
// logged, not surfaced, because the transition itself already landed.
func (s *BookingService) appendSystemNote(orgID, bookingID, operatorID uuid.UUID, body string) {
	note := models.InternalNote{
		AuthorID:  &operatorID,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := s.bookings.AppendNote(orgID, bookingID, note); err != nil {
		s.logger.WithError(err).WithField("booking_id", bookingID).Warn("Failed to append transition note")
	}
}

// bookingCodeAlphabet omits easily confused characters (0/O, 1/I)
const bookingCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateBookingCode mints a short guest-facing reference like "BKG-7FQ2XN"
func generateBookingCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble; fall
		// back to a uuid-derived code rather than panicking mid-request
		return "BKG-" + strings.ToUpper(uuid.New().String()[:6])
	}
	for i, b := range buf {
		buf[i] = bookingCodeAlphabet[int(b)%len(bookingCodeAlphabet)]
	}
	return "BKG-" + string(buf)
}
