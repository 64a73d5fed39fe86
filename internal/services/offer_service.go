package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/otelcore/booking-backend/internal/models"
)

// OfferClaims is embedded in the signed offer URL. Purpose pins the token to
// this one use so an access token can never be replayed as an offer.
type OfferClaims struct {
	BookingID      string `json:"booking_id"`
	OrganizationID string `json:"organization_id"`
	Purpose        string `json:"purpose"`
	jwt.RegisteredClaims
}

const offerPurpose = "offer"

// OfferService mints and validates the customer-facing offer artifact: a
// signed, time-limited URL sent after approval.
type OfferService struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
}

// NewOfferService creates a new OfferService
func NewOfferService(secret string, ttl time.Duration, baseURL string) *OfferService {
	return &OfferService{
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: baseURL,
	}
}

// Issue signs an offer token for the booking and returns the full URL
func (s *OfferService) Issue(booking *models.BookingRequest) (string, string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := OfferClaims{
		BookingID:      booking.ID.String(),
		OrganizationID: booking.OrganizationID.String(),
		Purpose:        offerPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "otelcore-booking",
			Subject:   booking.BookingCode,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to sign offer token: %w", err)
	}

	url := fmt.Sprintf("%s?token=%s", s.baseURL, signed)
	return signed, url, expiresAt, nil
}

// Validate parses a presented offer token and returns the booking id it was
// minted for
func (s *OfferService) Validate(tokenString string) (uuid.UUID, uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OfferClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	claims, ok := token.Claims.(*OfferClaims)
	if !ok || !token.Valid {
		return uuid.Nil, uuid.Nil, errors.New("invalid offer token")
	}
	if claims.Purpose != offerPurpose {
		return uuid.Nil, uuid.Nil, errors.New("token is not an offer token")
	}

	bookingID, err := uuid.Parse(claims.BookingID)
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("invalid offer token")
	}
	orgID, err := uuid.Parse(claims.OrganizationID)
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("invalid offer token")
	}
	return bookingID, orgID, nil
}
