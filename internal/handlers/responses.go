package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/otelcore/booking-backend/internal/models"
)

// ErrorResponse is the generic error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// SuccessResponse is the generic success payload
type SuccessResponse struct {
	Message string `json:"message"`
}

// respondError maps domain sentinel errors onto HTTP statuses. Anything not
// in the taxonomy is a 500 with a generic body; the real cause goes to logs.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Resource not found"})
	case errors.Is(err, models.ErrItemUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "item_unavailable", Message: "Item is not available for booking", Code: "ITEM_UNAVAILABLE"})
	case errors.Is(err, models.ErrInvalidPax):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid_pax", Message: "Party size is outside the allowed bounds", Code: "INVALID_PAX"})
	case errors.Is(err, models.ErrInvalidDates):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid_dates", Message: "Requested dates are invalid for this item", Code: "INVALID_DATES"})
	case errors.Is(err, models.ErrQuoteExpired):
		c.JSON(http.StatusGone, ErrorResponse{Error: "quote_expired", Message: "Quote has expired, request a new one", Code: "QUOTE_EXPIRED"})
	case errors.Is(err, models.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "capacity_exceeded", Message: "Not enough capacity on the requested dates", Code: "CAPACITY_EXCEEDED"})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "invalid_transition", Message: "Booking is not in a state that allows this action", Code: "INVALID_TRANSITION"})
	case errors.Is(err, models.ErrLedgerInconsistency):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "ledger_inconsistency", Message: "Capacity records are inconsistent, action aborted", Code: "LEDGER_INCONSISTENCY"})
	case errors.Is(err, models.ErrTimeout):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "timeout", Message: "Could not confirm the operation in time, nothing was committed", Code: "TIMEOUT"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Something went wrong"})
	}
}
