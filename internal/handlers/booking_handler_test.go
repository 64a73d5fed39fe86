package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/otelcore/booking-backend/internal/models"
	"github.com/otelcore/booking-backend/internal/services"
)

// stubBookingStore serves only the public lookup paths; everything else is
// out of reach from the endpoints under test.
type stubBookingStore struct {
	booking *models.BookingRequest
}

func (s *stubBookingStore) Create(req *models.BookingRequest) (*models.BookingRequest, bool, error) {
	return nil, false, models.ErrNotFound
}
func (s *stubBookingStore) GetByID(orgID, id uuid.UUID) (*models.BookingRequest, error) {
	return nil, models.ErrNotFound
}
func (s *stubBookingStore) GetAnyByID(id uuid.UUID) (*models.BookingRequest, error) {
	return nil, models.ErrNotFound
}
func (s *stubBookingStore) ListByOrganization(orgID uuid.UUID, status *models.BookingStatus, limit, offset int) ([]models.BookingRequest, error) {
	return nil, nil
}
func (s *stubBookingStore) MarkApproved(orgID, id uuid.UUID) error { return models.ErrNotFound }
func (s *stubBookingStore) MarkRejected(orgID, id uuid.UUID, reason string) error {
	return models.ErrNotFound
}
func (s *stubBookingStore) MarkOfferSent(orgID, id uuid.UUID, offerToken string) error {
	return models.ErrNotFound
}
func (s *stubBookingStore) MarkPaid(orgID, id uuid.UUID, paymentRef string) error {
	return models.ErrNotFound
}
func (s *stubBookingStore) CancelAndRelease(orgID, id uuid.UUID, releaseLedger bool) (models.BookingStatus, error) {
	return "", models.ErrNotFound
}
func (s *stubBookingStore) AppendNote(orgID, id uuid.UUID, note models.InternalNote) error {
	return models.ErrNotFound
}
func (s *stubBookingStore) FindByCodeAndEmail(code, email string) (*models.BookingRequest, error) {
	if s.booking != nil && s.booking.BookingCode == code && s.booking.Guest.Email != nil && *s.booking.Guest.Email == email {
		return s.booking, nil
	}
	return nil, models.ErrNotFound
}
func (s *stubBookingStore) FindByPNRAndLastName(pnr, lastName string) (*models.BookingRequest, error) {
	return nil, models.ErrNotFound
}

func setupLookupRouter(store *stubBookingStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(gin.DefaultWriter)
	logger.SetLevel(logrus.PanicLevel)

	bookingService := services.NewBookingService(store, nil, nil, nil, nil, 0, logger)
	handler := NewBookingHandler(bookingService, nil, nil, logger)

	router := gin.New()
	router.POST("/public/my-booking", handler.MyBooking)
	return router
}

func postMyBooking(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/public/my-booking", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMyBookingLookup(t *testing.T) {
	email := "ada@example.com"
	booking := &models.BookingRequest{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		BookingCode:    "BKG-7FQ2XN",
		Status:         models.BookingStatusApproved,
		Guest:          models.GuestInfo{FullName: "Ada Jensen", Phone: "+905321234567", Email: &email},
		Snapshot: models.CatalogSnapshot{
			Title:         "Bosphorus Sunset Cruise",
			Currency:      "EUR",
			ComputedTotal: 135,
		},
		StartDate: time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
		Adults:    2,
		Children:  1,
	}
	router := setupLookupRouter(&stubBookingStore{booking: booking})

	t.Run("Match Never Leaks Booking Details", func(t *testing.T) {
		w := postMyBooking(router, `{"booking_code":"BKG-7FQ2XN","email":"ada@example.com"}`)

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.NotContains(t, body, "BKG-7FQ2XN")
		assert.NotContains(t, body, "Bosphorus Sunset Cruise")
		assert.NotContains(t, body, booking.ID.String())
		assert.NotContains(t, body, "internal_notes")
		assert.NotContains(t, body, "reject_reason")
	})

	t.Run("Every Outcome Answers The Same Body", func(t *testing.T) {
		hit := postMyBooking(router, `{"booking_code":"BKG-7FQ2XN","email":"ada@example.com"}`)
		miss := postMyBooking(router, `{"booking_code":"BKG-XXXXXX","email":"ada@example.com"}`)
		wrongEmail := postMyBooking(router, `{"booking_code":"BKG-7FQ2XN","email":"mallory@example.com"}`)
		incompletePair := postMyBooking(router, `{"booking_code":"BKG-7FQ2XN"}`)
		crossedPair := postMyBooking(router, `{"booking_code":"BKG-7FQ2XN","last_name":"Jensen"}`)
		garbage := postMyBooking(router, `{not json`)

		for _, w := range []*httptest.ResponseRecorder{hit, miss, wrongEmail, incompletePair, crossedPair, garbage} {
			assert.Equal(t, http.StatusOK, w.Code)
		}
		// byte-identical bodies, hit included: probing must learn nothing
		assert.Equal(t, hit.Body.String(), miss.Body.String())
		assert.Equal(t, hit.Body.String(), wrongEmail.Body.String())
		assert.Equal(t, hit.Body.String(), incompletePair.Body.String())
		assert.Equal(t, hit.Body.String(), crossedPair.Body.String())
		assert.Equal(t, hit.Body.String(), garbage.Body.String())
		assert.JSONEq(t, `{"message":"`+myBookingAck+`"}`, hit.Body.String())
	})
}
