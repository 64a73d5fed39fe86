package handlers

import (
	"log"

	"github.com/google/uuid"
)

// logAuditError logs audit failures without failing the request
func logAuditError(operation string, err error) {
	if err != nil {
		log.Printf("AUDIT ERROR [%s]: %v", operation, err)
	}
}

func (h *AuthHandler) safeLogLogin(operatorID *uuid.UUID, email, ipAddress, userAgent string, success bool) {
	if err := h.auditService.LogLogin(operatorID, email, ipAddress, userAgent, success); err != nil {
		logAuditError("LogLogin", err)
	}
}

func (h *BookingHandler) safeLogSubmission(bookingID uuid.UUID, bookingCode, ipAddress, userAgent string, deduplicated bool) {
	if err := h.auditService.LogSubmission(bookingID, bookingCode, ipAddress, userAgent, deduplicated); err != nil {
		logAuditError("LogSubmission", err)
	}
}

func (h *BookingHandler) safeLogTransition(operatorID, bookingID uuid.UUID, action, fromStatus, toStatus, ipAddress, userAgent string) {
	if err := h.auditService.LogTransition(operatorID, bookingID, action, fromStatus, toStatus, ipAddress, userAgent); err != nil {
		logAuditError("LogTransition", err)
	}
}

func (h *BookingHandler) safeLogPaymentEvent(bookingID uuid.UUID, paymentRef string, success bool) {
	if err := h.auditService.LogPaymentEvent(bookingID, paymentRef, success); err != nil {
		logAuditError("LogPaymentEvent", err)
	}
}

func (h *QuoteHandler) safeLogCouponAttempt(quoteID uuid.UUID, code, status, ipAddress, userAgent string) {
	if err := h.auditService.LogCouponAttempt(quoteID, code, status, ipAddress, userAgent); err != nil {
		logAuditError("LogCouponAttempt", err)
	}
}
