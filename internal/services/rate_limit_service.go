package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/otelcore/booking-backend/internal/database"
)

// Rate limit scopes for the public, unauthenticated surface
const (
	RateScopeQuote  = "quote"
	RateScopeCoupon = "coupon"
	RateScopeLookup = "lookup"
)

// RateLimitService throttles the public endpoints per client IP. Quotes,
// coupon attempts, and booking lookups are cheap to fire in bulk and the
// lookup endpoint in particular must not be probeable at volume.
type RateLimitService struct {
	db database.DB
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.DB) *RateLimitService {
	return &RateLimitService{
		db: db,
	}
}

// ScopeLimit is the ceiling for one scope
type ScopeLimit struct {
	MaxRequests int
	Window      time.Duration
}

// RateLimitConfig holds the per-scope ceilings
type RateLimitConfig struct {
	Limits map[string]ScopeLimit
}

// DefaultRateLimitConfig returns the default per-scope ceilings
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limits: map[string]ScopeLimit{
			RateScopeQuote:  {MaxRequests: 30, Window: 10 * time.Minute},
			RateScopeCoupon: {MaxRequests: 10, Window: 10 * time.Minute},
			RateScopeLookup: {MaxRequests: 10, Window: 10 * time.Minute},
		},
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Scope      string
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// Check reports whether the IP is over the ceiling for the scope
func (s *RateLimitService) Check(scope, ip string) error {
	if ip == "" {
		return nil
	}

	limit, ok := DefaultRateLimitConfig().Limits[scope]
	if !ok {
		return fmt.Errorf("unknown rate limit scope: %s", scope)
	}

	count, lastRequest, err := s.getRequestCount(ip, scope, limit.Window)
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count >= limit.MaxRequests {
		retryAfter := lastRequest.Add(limit.Window)
		return &RateLimitError{
			Message:    fmt.Sprintf("Too many requests. Please try again after %s", retryAfter.Format("15:04:05")),
			RetryAfter: retryAfter,
			Scope:      scope,
		}
	}

	return nil
}

// Record counts one request against the IP for the scope
func (s *RateLimitService) Record(scope, ip string) error {
	if ip == "" {
		return nil
	}

	query := `
		INSERT INTO public_rate_limits (identifier, scope, created_at)
		VALUES ($1, $2, NOW())
	`

	_, err := s.db.Exec(query, ip, scope)
	return err
}

// getRequestCount gets the number of requests within the time window
func (s *RateLimitService) getRequestCount(identifier, scope string, window time.Duration) (int, time.Time, error) {
	windowStart := time.Now().Add(-window)

	query := `
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM public_rate_limits
		WHERE identifier = $1
		  AND scope = $2
		  AND created_at > $3
	`

	var count int
	var lastRequest time.Time

	err := s.db.QueryRow(query, identifier, scope, windowStart).Scan(&count, &lastRequest)
	if err != nil && err != sql.ErrNoRows {
		return 0, time.Time{}, err
	}

	return count, lastRequest, nil
}

// CleanupExpiredRateLimits removes records older than the longest window
func (s *RateLimitService) CleanupExpiredRateLimits() (int64, error) {
	var maxWindow time.Duration
	for _, limit := range DefaultRateLimitConfig().Limits {
		if limit.Window > maxWindow {
			maxWindow = limit.Window
		}
	}

	cutoffTime := time.Now().Add(-maxWindow)

	query := `
		DELETE FROM public_rate_limits
		WHERE created_at < $1
	`

	result, err := s.db.Exec(query, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// GetRateLimitStatus returns the current request count for an IP and scope
func (s *RateLimitService) GetRateLimitStatus(scope, ip string) (int, time.Time, error) {
	limit, ok := DefaultRateLimitConfig().Limits[scope]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unknown rate limit scope: %s", scope)
	}

	return s.getRequestCount(ip, scope, limit.Window)
}
