package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/otelcore/booking-backend/internal/database"
	"github.com/otelcore/booking-backend/internal/utils"
)

// AuditService records workflow and security events to the audit trail
type AuditService struct {
	db database.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db database.DB) *AuditService {
	return &AuditService{
		db: db,
	}
}

// AuditEvent represents an event to be logged
type AuditEvent struct {
	OperatorID *uuid.UUID             // nil for unauthenticated public events
	Action     string                 // e.g. "booking_submitted", "booking_approved", "login"
	EntityType string                 // e.g. "booking_request", "quote", "operator"
	EntityID   *uuid.UUID             // affected entity (can be nil)
	IPAddress  string                 // client IP
	UserAgent  string                 // client user agent
	Details    map[string]interface{} // additional details as JSONB
}

// LogSubmission logs a public booking submission
func (s *AuditService) LogSubmission(bookingID uuid.UUID, bookingCode, ipAddress, userAgent string, deduplicated bool) error {
	deviceInfo := utils.ParseUserAgent(userAgent)

	details := map[string]interface{}{
		"booking_code": bookingCode,
		"deduplicated": deduplicated,
		"device_info":  deviceInfo,
	}

	return s.logEvent(AuditEvent{
		OperatorID: nil,
		Action:     "booking_submitted",
		EntityType: "booking_request",
		EntityID:   &bookingID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    details,
	})
}

// LogTransition logs an operator-driven status transition
func (s *AuditService) LogTransition(operatorID, bookingID uuid.UUID, action, fromStatus, toStatus, ipAddress, userAgent string) error {
	details := map[string]interface{}{
		"from_status": fromStatus,
		"to_status":   toStatus,
		"device_info": utils.ParseUserAgent(userAgent),
	}

	return s.logEvent(AuditEvent{
		OperatorID: &operatorID,
		Action:     action,
		EntityType: "booking_request",
		EntityID:   &bookingID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    details,
	})
}

// LogPaymentEvent logs an external payment confirmation
func (s *AuditService) LogPaymentEvent(bookingID uuid.UUID, paymentRef string, success bool) error {
	details := map[string]interface{}{
		"payment_ref": paymentRef,
		"success":     success,
	}

	action := "payment_failed"
	if success {
		action = "payment_confirmed"
	}

	return s.logEvent(AuditEvent{
		OperatorID: nil,
		Action:     action,
		EntityType: "booking_request",
		EntityID:   &bookingID,
		Details:    details,
	})
}

// LogLogin logs an operator login attempt
func (s *AuditService) LogLogin(operatorID *uuid.UUID, email, ipAddress, userAgent string, success bool) error {
	deviceInfo := utils.ParseUserAgent(userAgent)

	details := map[string]interface{}{
		"email":       email,
		"success":     success,
		"device_info": deviceInfo,
	}

	action := "login_failed"
	if success {
		action = "login"
	}

	return s.logEvent(AuditEvent{
		OperatorID: operatorID,
		Action:     action,
		EntityType: "operator",
		EntityID:   operatorID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    details,
	})
}

// LogCouponAttempt logs a public coupon application, accepted or not
func (s *AuditService) LogCouponAttempt(quoteID uuid.UUID, code, status, ipAddress, userAgent string) error {
	details := map[string]interface{}{
		"code":        code,
		"status":      status,
		"device_info": utils.ParseUserAgent(userAgent),
	}

	return s.logEvent(AuditEvent{
		OperatorID: nil,
		Action:     "coupon_applied",
		EntityType: "quote",
		EntityID:   &quoteID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    details,
	})
}

// logEvent is the internal method that writes to the audit_logs table
func (s *AuditService) logEvent(event AuditEvent) error {
	query := `
		INSERT INTO audit_logs (operator_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	_, err = s.db.Exec(
		query,
		event.OperatorID,
		event.Action,
		event.EntityType,
		event.EntityID,
		event.IPAddress,
		event.UserAgent,
		detailsJSON,
	)

	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	return nil
}

// GetRecentEvents retrieves recent audit events for an operator
func (s *AuditService) GetRecentEvents(operatorID uuid.UUID, limit int) ([]map[string]interface{}, error) {
	query := `
		SELECT action, entity_type, ip_address, user_agent, details, created_at
		FROM audit_logs
		WHERE operator_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(query, operatorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}
	defer rows.Close()

	events := []map[string]interface{}{}
	for rows.Next() {
		var action, entityType, ipAddress, userAgent string
		var detailsRaw []byte
		var createdAt time.Time

		if err := rows.Scan(&action, &entityType, &ipAddress, &userAgent, &detailsRaw, &createdAt); err != nil {
			continue
		}

		var details map[string]interface{}
		_ = json.Unmarshal(detailsRaw, &details)

		events = append(events, map[string]interface{}{
			"action":      action,
			"entity_type": entityType,
			"ip_address":  ipAddress,
			"user_agent":  userAgent,
			"details":     details,
			"created_at":  createdAt,
		})
	}

	return events, nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(olderThan time.Duration) (int64, error) {
	cutoffTime := time.Now().Add(-olderThan)

	query := `
		DELETE FROM audit_logs
		WHERE created_at < $1
	`

	result, err := s.db.Exec(query, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
