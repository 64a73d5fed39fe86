package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/otelcore/booking-backend/internal/models"
	"github.com/otelcore/booking-backend/internal/services"
	"github.com/otelcore/booking-backend/internal/utils"
)

// AuthHandler handles operator authentication HTTP requests
type AuthHandler struct {
	authService  *services.AuthService
	auditService *services.AuditService
	logger       *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, auditService *services.AuditService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		auditService: auditService,
		logger:       logger,
	}
}

// Login handles operator login requests
// @Summary Operator login
// @Description Authenticate an operator and return access and refresh tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Param loginRequest body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ipAddress := utils.GetRealIP(c)
	userAgent := utils.GetUserAgent(c)

	tokens, operator, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"email": req.Email,
			"ip":    ipAddress,
		}).Warn("Operator login failed")
		h.safeLogLogin(nil, req.Email, ipAddress, userAgent, false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	h.safeLogLogin(&operator.ID, operator.Email, ipAddress, userAgent, true)

	h.logger.WithFields(logrus.Fields{
		"operator_id": operator.ID,
		"org_id":      operator.OrganizationID,
	}).Info("Operator login successful")

	c.JSON(http.StatusOK, tokens)
}

// Refresh handles token refresh requests
// @Summary Refresh access token
// @Description Generate a new access token using a refresh token
// @Tags Auth
// @Accept json
// @Produce json
// @Param refreshRequest body models.RefreshRequest true "Refresh token"
// @Success 200 {object} models.TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	tokens, err := h.authService.Refresh(req.RefreshToken)
	if err != nil {
		h.logger.WithError(err).Warn("Token refresh failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tokens)
}
