package services

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/otelcore/booking-backend/internal/models"
	"github.com/otelcore/booking-backend/pkg/validator"
)

func day(s string) time.Time {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

type bookingEnv struct {
	orgID      uuid.UUID
	operatorID uuid.UUID
	item       *models.CatalogItem
	catalog    *fakeCatalog
	quotes     *fakeQuoteStore
	ledger     *fakeLedger
	store      *fakeBookingStore
	offers     *fakeOfferIssuer
	svc        *BookingService
}

func newBookingEnv(item *models.CatalogItem, commitRetries int) *bookingEnv {
	ledger := newFakeLedger()
	store := newFakeBookingStore(ledger)
	quotes := newFakeQuoteStore()
	catalog := newFakeCatalog(item)
	offers := &fakeOfferIssuer{}
	return &bookingEnv{
		orgID:      item.OrganizationID,
		operatorID: uuid.New(),
		item:       item,
		catalog:    catalog,
		quotes:     quotes,
		ledger:     ledger,
		store:      store,
		offers:     offers,
		svc:        NewBookingService(store, quotes, catalog, ledger, offers, commitRetries, testLogger()),
	}
}

func (e *bookingEnv) issueQuote(t *testing.T, adults, children int) *models.Quote {
	t.Helper()
	start := day("2026-07-10")
	quote := &models.Quote{
		OrganizationID: e.orgID,
		CatalogItemID:  e.item.ID,
		StartDate:      start,
		EndDate:        start,
		Adults:         adults,
		Children:       children,
		Currency:       e.item.Currency,
		BaseTotal:      e.item.BasePrice * float64(adults+children),
		ComputedTotal:  e.item.BasePrice * float64(adults+children),
		ExpiresAt:      time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, e.quotes.Create(quote))
	return quote
}

func (e *bookingEnv) submit(t *testing.T, quote *models.Quote) *models.BookingRequest {
	t.Helper()
	req := &models.SubmitBookingRequest{QuoteID: quote.ID.String()}
	req.Guest.FullName = "Ada Jensen"
	req.Guest.Phone = "+90 532 123 4567"
	email := "Ada@Example.com"
	req.Guest.Email = &email

	result, err := e.svc.Submit(req)
	require.NoError(t, err)
	require.True(t, result.Created)
	return result.Request
}

func capacityTourItem(maxPerDay int) *models.CatalogItem {
	item := tourItem(uuid.New())
	item.CapacityMode = models.CapacityPerDay
	item.MaxPerDay = intPtr(maxPerDay)
	return item
}

func TestSubmitBooking(t *testing.T) {
	t.Run("Creates Pending Request With Frozen Snapshot", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		quote := env.issueQuote(t, 2, 1)

		booking := env.submit(t, quote)

		assert.Equal(t, models.BookingStatusPending, booking.Status)
		assert.Regexp(t, `^BKG-[A-Z2-9]{6}$`, booking.BookingCode)
		assert.Equal(t, quote.ID, booking.DedupKey)
		assert.Equal(t, env.item.Title, booking.Snapshot.Title)
		assert.InDelta(t, quote.ComputedTotal, booking.Snapshot.ComputedTotal, 0.001)
		// contact details are normalized on the way in
		assert.Equal(t, "+905321234567", booking.Guest.Phone)
		require.NotNil(t, booking.Guest.Email)
		assert.Equal(t, "ada@example.com", *booking.Guest.Email)
	})

	t.Run("Duplicate Submission Returns The Original", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		quote := env.issueQuote(t, 2, 0)
		first := env.submit(t, quote)

		req := &models.SubmitBookingRequest{QuoteID: quote.ID.String()}
		req.Guest.FullName = "Ada Jensen"
		req.Guest.Phone = "+905321234567"

		second, err := env.svc.Submit(req)
		require.NoError(t, err)
		assert.False(t, second.Created)
		assert.Equal(t, first.ID, second.Request.ID)
		assert.Equal(t, first.BookingCode, second.Request.BookingCode)
	})

	t.Run("Expired Quote", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		quote := env.issueQuote(t, 2, 0)
		stored := env.quotes.quotes[quote.ID]
		stored.ExpiresAt = time.Now().Add(-time.Minute)

		req := &models.SubmitBookingRequest{QuoteID: quote.ID.String()}
		req.Guest.FullName = "Ada Jensen"
		req.Guest.Phone = "+905321234567"

		_, err := env.svc.Submit(req)
		assert.ErrorIs(t, err, models.ErrQuoteExpired)
	})

	t.Run("Item Deactivated After Quoting", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		quote := env.issueQuote(t, 2, 0)
		env.catalog.items[env.item.ID].Active = false

		req := &models.SubmitBookingRequest{QuoteID: quote.ID.String()}
		req.Guest.FullName = "Ada Jensen"
		req.Guest.Phone = "+905321234567"

		_, err := env.svc.Submit(req)
		assert.ErrorIs(t, err, models.ErrItemUnavailable)
	})

	t.Run("Invalid Phone", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		quote := env.issueQuote(t, 2, 0)

		req := &models.SubmitBookingRequest{QuoteID: quote.ID.String()}
		req.Guest.FullName = "Ada Jensen"
		req.Guest.Phone = "12345"

		_, err := env.svc.Submit(req)
		assert.ErrorIs(t, err, validator.ErrInvalidPhone)
	})

	t.Run("Email Is Optional But Validated When Present", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		quote := env.issueQuote(t, 2, 0)

		req := &models.SubmitBookingRequest{QuoteID: quote.ID.String()}
		req.Guest.FullName = "Ada Jensen"
		req.Guest.Phone = "+905321234567"
		bad := "not-an-email"
		req.Guest.Email = &bad

		_, err := env.svc.Submit(req)
		assert.ErrorIs(t, err, validator.ErrInvalidEmail)

		req.Guest.Email = nil
		result, err := env.svc.Submit(req)
		require.NoError(t, err)
		assert.Nil(t, result.Request.Guest.Email)
	})

	t.Run("Unknown Quote", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)

		req := &models.SubmitBookingRequest{QuoteID: uuid.New().String()}
		req.Guest.FullName = "Ada Jensen"
		req.Guest.Phone = "+905321234567"

		_, err := env.svc.Submit(req)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestApproveBooking(t *testing.T) {
	t.Run("Commits Capacity Then Flips Status", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 1))

		approved, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)

		assert.Equal(t, models.BookingStatusApproved, approved.Status)
		assert.NotNil(t, approved.ApprovedAt)
		assert.Equal(t, 3, env.ledger.Consumed(env.item.ID, day("2026-07-10")))
	})

	t.Run("Full Day Stays Pending", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 1))
		require.NoError(t, env.ledger.CommitUnchecked(env.item.ID, []time.Time{day("2026-07-10")}, 8))

		_, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		assert.ErrorIs(t, err, models.ErrCapacityExceeded)

		current, _ := env.store.GetByID(env.orgID, booking.ID)
		assert.Equal(t, models.BookingStatusPending, current.Status)
		assert.Equal(t, 8, env.ledger.Consumed(env.item.ID, day("2026-07-10")))
	})

	t.Run("Cancellation Frees Units For The Next Approval", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 0)
		first := env.submit(t, env.issueQuote(t, 6, 0))
		second := env.submit(t, env.issueQuote(t, 5, 0))

		_, err := env.svc.Approve(env.orgID, env.operatorID, first.ID)
		require.NoError(t, err)

		_, err = env.svc.Approve(env.orgID, env.operatorID, second.ID)
		assert.ErrorIs(t, err, models.ErrCapacityExceeded)

		_, err = env.svc.Cancel(env.orgID, env.operatorID, first.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, env.ledger.Consumed(env.item.ID, day("2026-07-10")))

		_, err = env.svc.Approve(env.orgID, env.operatorID, second.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, env.ledger.Consumed(env.item.ID, day("2026-07-10")))
	})

	t.Run("Overbookable Item Commits Past The Ceiling", func(t *testing.T) {
		item := capacityTourItem(10)
		item.AllowOverbook = true
		env := newBookingEnv(item, 0)
		booking := env.submit(t, env.issueQuote(t, 2, 1))
		require.NoError(t, env.ledger.CommitUnchecked(item.ID, []time.Time{day("2026-07-10")}, 10))

		approved, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusApproved, approved.Status)
		assert.Equal(t, 13, env.ledger.Consumed(item.ID, day("2026-07-10")))
	})

	t.Run("Unlimited Item Never Touches The Ledger", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 1))

		_, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)
		assert.Empty(t, env.ledger.consumed)
	})

	t.Run("Lost Transition Race Releases Committed Units", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 1))
		env.store.failNextMarkApproved = true

		_, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		assert.Equal(t, 0, env.ledger.Consumed(env.item.ID, day("2026-07-10")))
	})

	t.Run("Transient Commit Failure Is Retried", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 2)
		booking := env.submit(t, env.issueQuote(t, 2, 1))
		env.ledger.commitErrs = []error{errTransient}

		approved, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusApproved, approved.Status)
	})

	t.Run("Capacity Exceeded Is Never Retried", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 3)
		booking := env.submit(t, env.issueQuote(t, 2, 1))
		// a retry would succeed against the empty ledger, so a surfaced
		// CapacityExceeded proves no second attempt happened
		env.ledger.commitErrs = []error{models.ErrCapacityExceeded}

		_, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		assert.ErrorIs(t, err, models.ErrCapacityExceeded)
		assert.Equal(t, 0, env.ledger.Consumed(env.item.ID, day("2026-07-10")))
	})

	t.Run("Non-Pending Cannot Be Approved", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 1))
		_, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)

		_, err = env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		// the double approval must not double count
		assert.Equal(t, 3, env.ledger.Consumed(env.item.ID, day("2026-07-10")))
	})

	t.Run("Concurrent Approvals Admit Exactly What Fits", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 0)
		first := env.submit(t, env.issueQuote(t, 6, 0))
		second := env.submit(t, env.issueQuote(t, 6, 0))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, id := range []uuid.UUID{first.ID, second.ID} {
			wg.Add(1)
			go func(i int, id uuid.UUID) {
				defer wg.Done()
				_, errs[i] = env.svc.Approve(env.orgID, env.operatorID, id)
			}(i, id)
		}
		wg.Wait()

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
			} else {
				assert.ErrorIs(t, err, models.ErrCapacityExceeded)
			}
		}
		assert.Equal(t, 1, successes)
		assert.Equal(t, 6, env.ledger.Consumed(env.item.ID, day("2026-07-10")))
	})
}

func TestRejectBooking(t *testing.T) {
	t.Run("Rejects Pending With Reason", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))

		rejected, err := env.svc.Reject(env.orgID, env.operatorID, booking.ID, "dates unavailable")
		require.NoError(t, err)

		assert.Equal(t, models.BookingStatusRejected, rejected.Status)
		require.NotNil(t, rejected.RejectReason)
		assert.Equal(t, "dates unavailable", *rejected.RejectReason)
	})

	t.Run("Reason Is Required", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))

		_, err := env.svc.Reject(env.orgID, env.operatorID, booking.ID, "   ")
		assert.Error(t, err)

		current, _ := env.store.GetByID(env.orgID, booking.ID)
		assert.Equal(t, models.BookingStatusPending, current.Status)
	})

	t.Run("Repeated Reject Is Idempotent", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))

		first, err := env.svc.Reject(env.orgID, env.operatorID, booking.ID, "dates unavailable")
		require.NoError(t, err)
		noteCount := len(first.Notes)

		second, err := env.svc.Reject(env.orgID, env.operatorID, booking.ID, "changed my mind")
		require.NoError(t, err)

		assert.Equal(t, models.BookingStatusRejected, second.Status)
		assert.Equal(t, "dates unavailable", *second.RejectReason)
		assert.Len(t, second.Notes, noteCount)
	})

	t.Run("Approved Cannot Be Rejected", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))
		_, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)

		_, err = env.svc.Reject(env.orgID, env.operatorID, booking.ID, "too late")
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestSendOffer(t *testing.T) {
	t.Run("Approved Gets An Offer URL", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))
		_, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)

		resp, err := env.svc.SendOffer(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)

		assert.Equal(t, string(models.BookingStatusOfferSent), resp.Status)
		assert.Contains(t, resp.OfferURL, "token=")

		current, _ := env.store.GetByID(env.orgID, booking.ID)
		assert.Equal(t, models.BookingStatusOfferSent, current.Status)
		require.NotNil(t, current.OfferToken)
		assert.Equal(t, "signed-offer-token", *current.OfferToken)
	})

	t.Run("Pending Cannot Receive An Offer", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))

		_, err := env.svc.SendOffer(env.orgID, env.operatorID, booking.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("Issuer Failure Leaves Status Untouched", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))
		_, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)
		env.offers.err = errTransient

		_, err = env.svc.SendOffer(env.orgID, env.operatorID, booking.ID)
		assert.Error(t, err)

		current, _ := env.store.GetByID(env.orgID, booking.ID)
		assert.Equal(t, models.BookingStatusApproved, current.Status)
	})
}

func TestConfirmPayment(t *testing.T) {
	offerSentBooking := func(t *testing.T, env *bookingEnv) *models.BookingRequest {
		booking := env.submit(t, env.issueQuote(t, 2, 0))
		_, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)
		_, err = env.svc.SendOffer(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)
		return booking
	}

	t.Run("Offer Sent Becomes Paid", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 0)
		booking := offerSentBooking(t, env)

		paid, err := env.svc.ConfirmPayment(booking.ID, "psp_9f8e7d")
		require.NoError(t, err)

		assert.Equal(t, models.BookingStatusPaid, paid.Status)
		require.NotNil(t, paid.PaymentRef)
		assert.Equal(t, "psp_9f8e7d", *paid.PaymentRef)
		assert.NotNil(t, paid.PaidAt)
		// capacity was committed at approval, payment never double counts
		assert.Equal(t, 2, env.ledger.Consumed(env.item.ID, day("2026-07-10")))
	})

	t.Run("Replayed Webhook Is Rejected By The Guard", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := offerSentBooking(t, env)

		_, err := env.svc.ConfirmPayment(booking.ID, "psp_9f8e7d")
		require.NoError(t, err)

		_, err = env.svc.ConfirmPayment(booking.ID, "psp_replayed")
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		current, _ := env.store.GetByID(env.orgID, booking.ID)
		assert.Equal(t, "psp_9f8e7d", *current.PaymentRef)
	})

	t.Run("Pending Cannot Be Paid", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))

		_, err := env.svc.ConfirmPayment(booking.ID, "psp_early")
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestCancelBooking(t *testing.T) {
	t.Run("Pending Cancel Skips The Ledger", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 1))

		cancelled, err := env.svc.Cancel(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)

		assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
		assert.Equal(t, 0, env.ledger.Consumed(env.item.ID, day("2026-07-10")))
	})

	t.Run("Paid Is Cancellable As The Refund Path", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))
		_, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)
		_, err = env.svc.SendOffer(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)
		_, err = env.svc.ConfirmPayment(booking.ID, "psp_9f8e7d")
		require.NoError(t, err)

		cancelled, err := env.svc.Cancel(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)

		assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
		assert.Equal(t, 0, env.ledger.Consumed(env.item.ID, day("2026-07-10")))
	})

	t.Run("Rejected Is Terminal", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))
		_, err := env.svc.Reject(env.orgID, env.operatorID, booking.ID, "dates unavailable")
		require.NoError(t, err)

		_, err = env.svc.Cancel(env.orgID, env.operatorID, booking.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("Ledger Inconsistency Aborts The Transition", func(t *testing.T) {
		env := newBookingEnv(capacityTourItem(10), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 1))
		_, err := env.svc.Approve(env.orgID, env.operatorID, booking.ID)
		require.NoError(t, err)

		// simulate a ledger that lost the units this booking holds
		env.ledger.consumed = map[string]int{}

		_, err = env.svc.Cancel(env.orgID, env.operatorID, booking.ID)
		assert.ErrorIs(t, err, models.ErrLedgerInconsistency)

		current, _ := env.store.GetByID(env.orgID, booking.ID)
		assert.Equal(t, models.BookingStatusApproved, current.Status)
	})
}

func TestAddNote(t *testing.T) {
	t.Run("Appends To The Trail", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))

		updated, err := env.svc.AddNote(env.orgID, env.operatorID, booking.ID, "guest called to confirm")
		require.NoError(t, err)

		require.Len(t, updated.Notes, 1)
		assert.Equal(t, "guest called to confirm", updated.Notes[0].Body)
		require.NotNil(t, updated.Notes[0].AuthorID)
		assert.Equal(t, env.operatorID, *updated.Notes[0].AuthorID)
	})

	t.Run("Empty Body Is A No-Op", func(t *testing.T) {
		env := newBookingEnv(tourItem(uuid.New()), 0)
		booking := env.submit(t, env.issueQuote(t, 2, 0))

		updated, err := env.svc.AddNote(env.orgID, env.operatorID, booking.ID, "   ")
		require.NoError(t, err)
		assert.Empty(t, updated.Notes)
	})
}

func TestPublicLookup(t *testing.T) {
	env := newBookingEnv(tourItem(uuid.New()), 0)
	booking := env.submit(t, env.issueQuote(t, 2, 0))

	t.Run("Code And Email", func(t *testing.T) {
		found, err := env.svc.Lookup(&models.MyBookingLookupRequest{
			BookingCode: booking.BookingCode,
			Email:       "ada@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, booking.ID, found.ID)
	})

	t.Run("Incomplete Pair", func(t *testing.T) {
		_, err := env.svc.Lookup(&models.MyBookingLookupRequest{
			BookingCode: booking.BookingCode,
		})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("Wrong Email Does Not Match", func(t *testing.T) {
		_, err := env.svc.Lookup(&models.MyBookingLookupRequest{
			BookingCode: booking.BookingCode,
			Email:       "mallory@example.com",
		})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
