package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/otelcore/booking-backend/internal/middleware"
	"github.com/otelcore/booking-backend/internal/models"
	"github.com/otelcore/booking-backend/internal/services"
	"github.com/otelcore/booking-backend/internal/utils"
	"github.com/otelcore/booking-backend/pkg/validator"
)

// BookingHandler handles booking request HTTP endpoints, public and operator
type BookingHandler struct {
	bookingService *services.BookingService
	couponService  *services.CouponService
	auditService   *services.AuditService
	logger         *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService *services.BookingService, couponService *services.CouponService, auditService *services.AuditService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		couponService:  couponService,
		auditService:   auditService,
		logger:         logger,
	}
}

// publicBookingView strips internal fields from a request before it leaves
// the public surface
func publicBookingView(b *models.BookingRequest) gin.H {
	return gin.H{
		"booking_code": b.BookingCode,
		"status":       b.Status,
		"item_title":   b.Snapshot.Title,
		"start_date":   b.StartDate.Format(dateLayout),
		"end_date":     b.EndDate.Format(dateLayout),
		"adults":       b.Adults,
		"children":     b.Children,
		"currency":     b.Snapshot.Currency,
		"total":        b.Snapshot.ComputedTotal,
		"created_at":   b.CreatedAt,
	}
}

// Submit converts a live quote into a pending booking request.
// 201 on first submission, 200 with the original request when the quote was
// already converted (double-click, retry).
// @Summary Submit booking request
// @Tags Public
// @Accept json
// @Produce json
// @Param request body models.SubmitBookingRequest true "Submission payload"
// @Success 200 {object} map[string]interface{} "Duplicate submission, original returned"
// @Success 201 {object} map[string]interface{}
// @Failure 410 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /public/bookings [post]
func (h *BookingHandler) Submit(c *gin.Context) {
	var req models.SubmitBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.bookingService.Submit(&req)
	if err != nil {
		if errors.Is(err, validator.ErrEmptyPhone) || errors.Is(err, validator.ErrInvalidPhone) || errors.Is(err, validator.ErrInvalidEmail) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	h.safeLogSubmission(result.Request.ID, result.Request.BookingCode, utils.GetRealIP(c), utils.GetUserAgent(c), !result.Created)

	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	c.JSON(status, publicBookingView(result.Request))
}

// myBookingAck is the only body MyBooking ever sends. Booking details go to
// the guest's stored contact, never into this response.
const myBookingAck = "Request received. If the details match a booking, a summary will be sent to the contact on file."

// MyBooking resolves a guest's own booking. Every outcome answers 200 with
// the same acknowledgment body, so the endpoint cannot be used to confirm
// which booking code and contact pairs exist.
// @Summary Look up own booking
// @Tags Public
// @Accept json
// @Produce json
// @Param request body models.MyBookingLookupRequest true "Identifier pair"
// @Success 200 {object} SuccessResponse
// @Router /public/my-booking [post]
func (h *BookingHandler) MyBooking(c *gin.Context) {
	var req models.MyBookingLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.HasLookupPair() {
		c.JSON(http.StatusOK, SuccessResponse{Message: myBookingAck})
		return
	}

	if booking, err := h.bookingService.Lookup(&req); err == nil {
		h.logger.WithFields(logrus.Fields{
			"booking_id":   booking.ID,
			"booking_code": booking.BookingCode,
		}).Info("Booking summary queued for delivery")
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: myBookingAck})
}

// List returns the organization's booking requests with an optional status filter
// @Summary List booking requests
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size (default 50)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]interface{}
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	var status *models.BookingStatus
	if s := c.Query("status"); s != "" {
		bs := models.BookingStatus(s)
		status = &bs
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.bookingService.List(opCtx.OrganizationID, status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// Get returns one booking request with its full note trail
// @Summary Get booking request
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} models.BookingRequest
// @Failure 404 {object} ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, err := h.bookingService.Get(opCtx.OrganizationID, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// Approve transitions pending -> approved, committing capacity first.
// 409 with CAPACITY_EXCEEDED leaves the request pending.
// @Summary Approve booking request
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} models.BookingRequest
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /bookings/{id}/approve [post]
func (h *BookingHandler) Approve(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, err := h.bookingService.Approve(opCtx.OrganizationID, opCtx.OperatorID, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.safeLogTransition(opCtx.OperatorID, bookingID, "booking_approved",
		string(models.BookingStatusPending), string(booking.Status),
		utils.GetRealIP(c), utils.GetUserAgent(c))

	c.JSON(http.StatusOK, booking)
}

// Reject transitions pending -> rejected; repeated rejects are no-ops
// @Summary Reject booking request
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param request body models.RejectBookingRequest true "Rejection reason"
// @Success 200 {object} models.BookingRequest
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /bookings/{id}/reject [post]
func (h *BookingHandler) Reject(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	var req models.RejectBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.bookingService.Reject(opCtx.OrganizationID, opCtx.OperatorID, bookingID, req.Reason)
	if err != nil {
		if err == models.ErrInvalidTransition || err == models.ErrNotFound {
			respondError(c, err)
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	h.safeLogTransition(opCtx.OperatorID, bookingID, "booking_rejected",
		string(models.BookingStatusPending), string(booking.Status),
		utils.GetRealIP(c), utils.GetUserAgent(c))

	c.JSON(http.StatusOK, booking)
}

// AddNote appends an internal note to the request's trail
// @Summary Add internal note
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param request body models.AddNoteRequest true "Note body"
// @Success 200 {object} models.BookingRequest
// @Failure 404 {object} ErrorResponse
// @Router /bookings/{id}/notes [post]
func (h *BookingHandler) AddNote(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	var req models.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.bookingService.AddNote(opCtx.OrganizationID, opCtx.OperatorID, bookingID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ApplyCoupon attempts a discount code against a still-pending request,
// repricing the frozen snapshot. Rejections are a 200 body with status
// REJECTED, matching the quote endpoint; past approval the price is settled
// and the attempt is a 409.
// @Summary Apply coupon to pending booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param request body models.ApplyCouponRequest true "Coupon code"
// @Success 200 {object} models.CouponApplication
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /bookings/{id}/apply-coupon [post]
func (h *BookingHandler) ApplyCoupon(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	var req models.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.couponService.ApplyToBooking(opCtx.OrganizationID, bookingID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ClearCoupon restores a pending request's pre-coupon total
// @Summary Clear coupon from pending booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} models.CouponApplication
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /bookings/{id}/clear-coupon [post]
func (h *BookingHandler) ClearCoupon(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	result, err := h.couponService.ClearFromBooking(opCtx.OrganizationID, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SendOffer transitions approved -> offer_sent and returns the offer URL
// @Summary Send offer
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} models.SendOfferResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /bookings/{id}/send-offer [post]
func (h *BookingHandler) SendOffer(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	resp, err := h.bookingService.SendOffer(opCtx.OrganizationID, opCtx.OperatorID, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.safeLogTransition(opCtx.OperatorID, bookingID, "offer_sent",
		string(models.BookingStatusApproved), string(models.BookingStatusOfferSent),
		utils.GetRealIP(c), utils.GetUserAgent(c))

	c.JSON(http.StatusOK, resp)
}

// Cancel transitions a request to cancelled, releasing ledger capacity when
// the prior status held it
// @Summary Cancel booking request
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} models.BookingRequest
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	opCtx := middleware.MustGetOperatorContext(c)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, err := h.bookingService.Cancel(opCtx.OrganizationID, opCtx.OperatorID, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.safeLogTransition(opCtx.OperatorID, bookingID, "booking_cancelled",
		"", string(booking.Status),
		utils.GetRealIP(c), utils.GetUserAgent(c))

	c.JSON(http.StatusOK, booking)
}

// PaymentWebhook consumes the external payment processor's confirmation
// @Summary Payment confirmation webhook
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body models.PaymentWebhookRequest true "Confirmation event"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /payments/webhook [post]
func (h *BookingHandler) PaymentWebhook(c *gin.Context) {
	var req models.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	_, err = h.bookingService.ConfirmPayment(bookingID, req.PaymentReference)
	if err != nil {
		h.safeLogPaymentEvent(bookingID, req.PaymentReference, false)
		respondError(c, err)
		return
	}

	h.safeLogPaymentEvent(bookingID, req.PaymentReference, true)

	c.JSON(http.StatusOK, SuccessResponse{Message: "Payment confirmed"})
}
