package services

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/otelcore/booking-backend/internal/models"
)

// In-memory fakes for the repository interfaces, mirroring the database
// layer's guard semantics so service tests exercise real transitions.

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// ---------------------------------------------------------------------------

type fakeCatalog struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.CatalogItem
}

func newFakeCatalog(items ...*models.CatalogItem) *fakeCatalog {
	f := &fakeCatalog{items: make(map[uuid.UUID]*models.CatalogItem)}
	for _, item := range items {
		f.items[item.ID] = item
	}
	return f
}

func (f *fakeCatalog) GetByID(orgID, itemID uuid.UUID) (*models.CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok || item.OrganizationID != orgID {
		return nil, models.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

// ---------------------------------------------------------------------------

type fakeQuoteStore struct {
	mu     sync.Mutex
	quotes map[uuid.UUID]*models.Quote
}

func newFakeQuoteStore(quotes ...*models.Quote) *fakeQuoteStore {
	f := &fakeQuoteStore{quotes: make(map[uuid.UUID]*models.Quote)}
	for _, q := range quotes {
		f.quotes[q.ID] = q
	}
	return f
}

func (f *fakeQuoteStore) Create(quote *models.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if quote.ID == uuid.Nil {
		quote.ID = uuid.New()
	}
	quote.Status = models.QuoteStatusActive
	quote.CreatedAt = time.Now()
	copied := *quote
	f.quotes[quote.ID] = &copied
	return nil
}

func (f *fakeQuoteStore) GetByID(quoteID uuid.UUID) (*models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[quoteID]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *q
	return &copied, nil
}

func (f *fakeQuoteStore) SetCoupon(quoteID uuid.UUID, coupon *models.AppliedCoupon, computedTotal float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[quoteID]
	if !ok {
		return models.ErrNotFound
	}
	if q.Status != models.QuoteStatusActive || time.Now().After(q.ExpiresAt) {
		return models.ErrQuoteExpired
	}
	q.Coupon = coupon
	q.ComputedTotal = computedTotal
	return nil
}

// ---------------------------------------------------------------------------

// fakeLedger implements both CapacityProjector and CapacityLedger with the
// same all-or-nothing compare-and-increment the real repository performs.
type fakeLedger struct {
	mu       sync.Mutex
	consumed map[string]int
	// commitErrs is a FIFO of injected transient failures; drained before the
	// real commit logic runs
	commitErrs []error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{consumed: make(map[string]int)}
}

func ledgerKey(itemID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("%s|%s", itemID, date.Format("2006-01-02"))
}

func (f *fakeLedger) Consumed(itemID uuid.UUID, date time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consumed[ledgerKey(itemID, date)]
}

func (f *fakeLedger) HasHeadroom(itemID uuid.UUID, dates []time.Time, pax int, maxPerDay int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, date := range dates {
		if f.consumed[ledgerKey(itemID, date)]+pax > maxPerDay {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeLedger) Commit(itemID uuid.UUID, dates []time.Time, pax int, maxPerDay int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commitErrs) > 0 {
		err := f.commitErrs[0]
		f.commitErrs = f.commitErrs[1:]
		return err
	}
	for _, date := range dates {
		if f.consumed[ledgerKey(itemID, date)]+pax > maxPerDay {
			return models.ErrCapacityExceeded
		}
	}
	for _, date := range dates {
		f.consumed[ledgerKey(itemID, date)] += pax
	}
	return nil
}

func (f *fakeLedger) CommitUnchecked(itemID uuid.UUID, dates []time.Time, pax int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, date := range dates {
		f.consumed[ledgerKey(itemID, date)] += pax
	}
	return nil
}

func (f *fakeLedger) Release(itemID uuid.UUID, dates []time.Time, pax int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, date := range dates {
		if f.consumed[ledgerKey(itemID, date)] < pax {
			return models.ErrLedgerInconsistency
		}
	}
	for _, date := range dates {
		f.consumed[ledgerKey(itemID, date)] -= pax
	}
	return nil
}

// ---------------------------------------------------------------------------

// fakeBookingStore mirrors the repository's status guards. CancelAndRelease
// is wired to a fakeLedger so compensation is observable.
type fakeBookingStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*models.BookingRequest
	byDedup  map[string]uuid.UUID
	ledger   *fakeLedger

	// failNextMarkApproved simulates losing the transition race after the
	// ledger commit already landed
	failNextMarkApproved bool
}

func newFakeBookingStore(ledger *fakeLedger) *fakeBookingStore {
	return &fakeBookingStore{
		bookings: make(map[uuid.UUID]*models.BookingRequest),
		byDedup:  make(map[string]uuid.UUID),
		ledger:   ledger,
	}
}

func dedupIndexKey(orgID, dedupKey uuid.UUID) string {
	return orgID.String() + "|" + dedupKey.String()
}

func (f *fakeBookingStore) Create(req *models.BookingRequest) (*models.BookingRequest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := dedupIndexKey(req.OrganizationID, req.DedupKey)
	if existingID, ok := f.byDedup[key]; ok {
		copied := *f.bookings[existingID]
		return &copied, false, nil
	}
	req.ID = uuid.New()
	req.Status = models.BookingStatusPending
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	copied := *req
	f.bookings[req.ID] = &copied
	f.byDedup[key] = req.ID
	stored := copied
	return &stored, true, nil
}

func (f *fakeBookingStore) get(orgID, id uuid.UUID) (*models.BookingRequest, error) {
	b, ok := f.bookings[id]
	if !ok || b.OrganizationID != orgID {
		return nil, models.ErrNotFound
	}
	return b, nil
}

func (f *fakeBookingStore) GetByID(orgID, id uuid.UUID) (*models.BookingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.get(orgID, id)
	if err != nil {
		return nil, err
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookingStore) GetAnyByID(id uuid.UUID) (*models.BookingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookingStore) ListByOrganization(orgID uuid.UUID, status *models.BookingStatus, limit, offset int) ([]models.BookingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BookingRequest
	for _, b := range f.bookings {
		if b.OrganizationID != orgID {
			continue
		}
		if status != nil && b.Status != *status {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBookingStore) transition(orgID, id uuid.UUID, from, to models.BookingStatus, mutate func(*models.BookingRequest)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.get(orgID, id)
	if err != nil {
		return err
	}
	if b.Status != from {
		return models.ErrInvalidTransition
	}
	b.Status = to
	if mutate != nil {
		mutate(b)
	}
	b.UpdatedAt = time.Now()
	return nil
}

func (f *fakeBookingStore) MarkApproved(orgID, id uuid.UUID) error {
	f.mu.Lock()
	if f.failNextMarkApproved {
		f.failNextMarkApproved = false
		f.mu.Unlock()
		return models.ErrInvalidTransition
	}
	f.mu.Unlock()
	now := time.Now()
	return f.transition(orgID, id, models.BookingStatusPending, models.BookingStatusApproved, func(b *models.BookingRequest) {
		b.ApprovedAt = &now
	})
}

func (f *fakeBookingStore) MarkRejected(orgID, id uuid.UUID, reason string) error {
	return f.transition(orgID, id, models.BookingStatusPending, models.BookingStatusRejected, func(b *models.BookingRequest) {
		b.RejectReason = &reason
	})
}

func (f *fakeBookingStore) MarkOfferSent(orgID, id uuid.UUID, offerToken string) error {
	now := time.Now()
	return f.transition(orgID, id, models.BookingStatusApproved, models.BookingStatusOfferSent, func(b *models.BookingRequest) {
		b.OfferToken = &offerToken
		b.OfferSentAt = &now
	})
}

func (f *fakeBookingStore) MarkPaid(orgID, id uuid.UUID, paymentRef string) error {
	now := time.Now()
	return f.transition(orgID, id, models.BookingStatusOfferSent, models.BookingStatusPaid, func(b *models.BookingRequest) {
		b.PaymentRef = &paymentRef
		b.PaidAt = &now
	})
}

func (f *fakeBookingStore) CancelAndRelease(orgID, id uuid.UUID, releaseLedger bool) (models.BookingStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.get(orgID, id)
	if err != nil {
		return "", err
	}
	prior := b.Status
	if prior.IsTerminal() && prior != models.BookingStatusPaid {
		return prior, models.ErrInvalidTransition
	}
	if releaseLedger && prior.ConsumesCapacity() {
		pax := b.Adults + b.Children
		if err := f.ledger.Release(b.CatalogItemID, b.LedgerDates(), pax); err != nil {
			// whole transition aborts, status untouched
			return prior, err
		}
	}
	now := time.Now()
	b.Status = models.BookingStatusCancelled
	b.CancelledAt = &now
	return prior, nil
}

func (f *fakeBookingStore) UpdateSnapshot(orgID, id uuid.UUID, snapshot models.CatalogSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.get(orgID, id)
	if err != nil {
		return err
	}
	if b.Status != models.BookingStatusPending {
		return models.ErrInvalidTransition
	}
	b.Snapshot = snapshot
	b.UpdatedAt = time.Now()
	return nil
}

func (f *fakeBookingStore) AppendNote(orgID, id uuid.UUID, note models.InternalNote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.get(orgID, id)
	if err != nil {
		return err
	}
	b.Notes = append(b.Notes, note)
	return nil
}

func (f *fakeBookingStore) FindByCodeAndEmail(code, email string) (*models.BookingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.BookingCode == code && b.Guest.Email != nil && *b.Guest.Email == email {
			copied := *b
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeBookingStore) FindByPNRAndLastName(pnr, lastName string) (*models.BookingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.BookingCode == pnr {
			copied := *b
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

// ---------------------------------------------------------------------------

type fakeCouponReader struct {
	coupons map[string]*models.Coupon
}

func newFakeCouponReader(coupons ...*models.Coupon) *fakeCouponReader {
	f := &fakeCouponReader{coupons: make(map[string]*models.Coupon)}
	for _, c := range coupons {
		f.coupons[c.OrganizationID.String()+"|"+c.Code] = c
	}
	return f
}

func (f *fakeCouponReader) GetByCode(orgID uuid.UUID, code string) (*models.Coupon, error) {
	c, ok := f.coupons[orgID.String()+"|"+code]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

// ---------------------------------------------------------------------------

type fakeOfferIssuer struct {
	err error
}

func (f *fakeOfferIssuer) Issue(booking *models.BookingRequest) (string, string, time.Time, error) {
	if f.err != nil {
		return "", "", time.Time{}, f.err
	}
	expiresAt := time.Now().Add(72 * time.Hour)
	return "signed-offer-token", "https://booking.example.com/offer?token=signed-offer-token", expiresAt, nil
}

var errTransient = errors.New("connection reset by peer")
