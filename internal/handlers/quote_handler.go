package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/otelcore/booking-backend/internal/models"
	"github.com/otelcore/booking-backend/internal/services"
	"github.com/otelcore/booking-backend/internal/utils"
)

// QuoteHandler handles the public quote endpoints
type QuoteHandler struct {
	quoteService  *services.QuoteService
	couponService *services.CouponService
	auditService  *services.AuditService
	logger        *logrus.Logger
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(quoteService *services.QuoteService, couponService *services.CouponService, auditService *services.AuditService, logger *logrus.Logger) *QuoteHandler {
	return &QuoteHandler{
		quoteService:  quoteService,
		couponService: couponService,
		auditService:  auditService,
		logger:        logger,
	}
}

// CreateQuote prices an item for the requested dates and party size
// @Summary Create a quote
// @Tags Public
// @Accept json
// @Produce json
// @Param request body models.CreateQuoteRequest true "Quote parameters"
// @Success 200 {object} models.QuoteResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /public/quotes [post]
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	var req models.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	quote, err := h.quoteService.CreateQuote(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewQuoteResponse(quote))
}

// ApplyCoupon attempts a coupon against a live quote. Rejections are a 200
// body with status REJECTED; the transport never errors over a bad code.
// @Summary Apply coupon to quote
// @Tags Public
// @Accept json
// @Produce json
// @Param id path string true "Quote ID"
// @Param request body models.ApplyCouponRequest true "Coupon code"
// @Success 200 {object} models.CouponApplication
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /public/quotes/{id}/apply-coupon [post]
func (h *QuoteHandler) ApplyCoupon(c *gin.Context) {
	quoteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Resource not found"})
		return
	}

	var req models.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.couponService.Apply(quoteID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	h.safeLogCouponAttempt(quoteID, req.Code, string(result.Status), utils.GetRealIP(c), utils.GetUserAgent(c))

	c.JSON(http.StatusOK, result)
}

// ClearCoupon removes any applied coupon and restores the base total
// @Summary Clear coupon from quote
// @Tags Public
// @Produce json
// @Param id path string true "Quote ID"
// @Success 200 {object} models.CouponApplication
// @Failure 404 {object} ErrorResponse
// @Router /public/quotes/{id}/clear-coupon [post]
func (h *QuoteHandler) ClearCoupon(c *gin.Context) {
	quoteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Resource not found"})
		return
	}

	result, err := h.couponService.Clear(quoteID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
