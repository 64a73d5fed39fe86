package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/otelcore/booking-backend/internal/models"
	"github.com/otelcore/booking-backend/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

// OperatorReader is the repository surface auth needs
type OperatorReader interface {
	GetByEmail(email string) (*models.Operator, error)
	GetByID(id uuid.UUID) (*models.Operator, error)
	TouchLastLogin(id uuid.UUID) error
}

// AuthService handles operator authentication
type AuthService struct {
	operators  OperatorReader
	jwtService *jwt.Service
	logger     *logrus.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(operators OperatorReader, jwtService *jwt.Service, logger *logrus.Logger) *AuthService {
	return &AuthService{
		operators:  operators,
		jwtService: jwtService,
		logger:     logger,
	}
}

// Login authenticates an operator and returns a token pair. Failures are
// reported with one generic message so callers cannot probe which emails exist.
func (s *AuthService) Login(email, password string) (*models.TokenResponse, *models.Operator, error) {
	operator, err := s.operators.GetByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid email or password")
	}

	if operator.Status != "active" {
		return nil, nil, fmt.Errorf("account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		return nil, nil, fmt.Errorf("invalid email or password")
	}

	accessToken, err := s.jwtService.GenerateAccessToken(operator.ID, operator.OrganizationID, operator.Email, operator.Roles)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwtService.GenerateRefreshToken(operator.ID, operator.OrganizationID, operator.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.operators.TouchLastLogin(operator.ID); err != nil {
		// Don't fail the login over a bookkeeping column
		s.logger.WithError(err).WithField("operator_id", operator.ID).Warn("Failed to update last login")
	}

	return &models.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.jwtService.AccessTokenExpiry()),
	}, operator, nil
}

// Refresh mints a new access token from a valid refresh token. The operator
// is re-read so a disabled account stops refreshing immediately.
func (s *AuthService) Refresh(refreshToken string) (*models.TokenResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token")
	}

	operator, err := s.operators.GetByID(claims.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("operator not found")
	}
	if operator.Status != "active" {
		return nil, fmt.Errorf("account is inactive")
	}

	accessToken, err := s.jwtService.GenerateAccessToken(operator.ID, operator.OrganizationID, operator.Email, operator.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &models.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.jwtService.AccessTokenExpiry()),
	}, nil
}
