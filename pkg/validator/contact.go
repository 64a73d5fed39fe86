package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidPhone indicates phone number format is not acceptable
	ErrInvalidPhone = errors.New("phone number must be 7-15 digits, optionally prefixed with +")

	// ErrInvalidEmail indicates the email address format is not acceptable
	ErrInvalidEmail = errors.New("invalid email address")
)

// phoneRegex matches digits only after sanitization
var phoneRegex = regexp.MustCompile(`^\d{7,15}$`)

// emailRegex is deliberately loose; deliverability is the mailer's problem
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ContactValidator validates guest contact details on public submissions
type ContactValidator struct{}

// NewContactValidator creates a new contact validator instance
func NewContactValidator() *ContactValidator {
	return &ContactValidator{}
}

// ValidatePhone validates an international phone number.
// Accepts formats like +90 532 123 4567, 0532-123-4567, (532) 1234567.
// Returns the sanitized number (digits only, leading + preserved).
func (v *ContactValidator) ValidatePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.SanitizePhone(phone)
	digits := strings.TrimPrefix(sanitized, "+")

	if !phoneRegex.MatchString(digits) {
		return "", ErrInvalidPhone
	}

	return sanitized, nil
}

// SanitizePhone removes common separators from a phone number
func (v *ContactValidator) SanitizePhone(phone string) string {
	hasPlus := strings.HasPrefix(strings.TrimSpace(phone), "+")

	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	phone = strings.ReplaceAll(phone, "(", "")
	phone = strings.ReplaceAll(phone, ")", "")
	phone = strings.ReplaceAll(phone, "+", "")
	phone = strings.ReplaceAll(phone, ".", "")

	if hasPlus {
		return "+" + phone
	}
	return phone
}

// ValidateEmail validates an email address, returning it lower-cased
func (v *ContactValidator) ValidateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}
