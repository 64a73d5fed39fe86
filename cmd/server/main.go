package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/otelcore/booking-backend/internal/config"
	"github.com/otelcore/booking-backend/internal/database"
	"github.com/otelcore/booking-backend/internal/handlers"
	"github.com/otelcore/booking-backend/internal/middleware"
	"github.com/otelcore/booking-backend/internal/services"
	"github.com/otelcore/booking-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Booking Request Workflow Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Repositories need *sqlx.DB; db is the DB interface
	pgDB, ok := db.(*database.PostgresDB)
	if !ok {
		logger.Fatal("Failed to cast database connection to PostgresDB")
	}
	sqlxDB := pgDB.DB

	// Initialize repositories
	itemRepo := database.NewCatalogItemRepository(sqlxDB)
	quoteRepo := database.NewQuoteRepository(sqlxDB)
	bookingRepo := database.NewBookingRequestRepository(sqlxDB)
	ledgerRepo := database.NewCapacityLedgerRepository(sqlxDB)
	couponRepo := database.NewCouponRepository(sqlxDB)
	operatorRepo := database.NewOperatorRepository(sqlxDB)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	auditService := services.NewAuditService(db)
	authService := services.NewAuthService(operatorRepo, jwtService, logger)
	quoteService := services.NewQuoteService(itemRepo, quoteRepo, ledgerRepo, cfg.Quote.TTL, logger)
	couponService := services.NewCouponService(couponRepo, quoteRepo, bookingRepo, logger)
	offerService := services.NewOfferService(cfg.Offer.Secret, cfg.Offer.TTL, cfg.Offer.BaseURL)
	bookingService := services.NewBookingService(
		bookingRepo,
		quoteRepo,
		itemRepo,
		ledgerRepo,
		offerService,
		cfg.Booking.CommitRetries,
		logger,
	)
	quoteExpirationService := services.NewQuoteExpirationService(quoteRepo, cfg.Quote.SweepBatch, 30*24*time.Hour, logger)
	rateLimitService := services.NewRateLimitService(db)

	// Initialize and start cron service
	cronService := services.NewCronService(cfg.Quote.SweepSpec, quoteExpirationService, auditService, rateLimitService)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	logger.Info("Services initialized")

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, auditService, logger)
	catalogHandler := handlers.NewCatalogHandler(itemRepo, ledgerRepo, logger)
	quoteHandler := handlers.NewQuoteHandler(quoteService, couponService, auditService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, couponService, auditService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public booking-page routes (no auth)
		public := v1.Group("/public")
		{
			public.GET("/items/:id", catalogHandler.GetPublicItem)
			public.POST("/quotes",
				middleware.PublicRateLimit(rateLimitService, services.RateScopeQuote),
				quoteHandler.CreateQuote)
			public.POST("/quotes/:id/apply-coupon",
				middleware.PublicRateLimit(rateLimitService, services.RateScopeCoupon),
				quoteHandler.ApplyCoupon)
			public.POST("/quotes/:id/clear-coupon", quoteHandler.ClearCoupon)
			public.POST("/bookings", bookingHandler.Submit)
			public.POST("/my-booking",
				middleware.PublicRateLimit(rateLimitService, services.RateScopeLookup),
				bookingHandler.MyBooking)
		}

		// Authentication routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		// Catalog management (operators only)
		catalog := v1.Group("/catalog")
		catalog.Use(middleware.AuthMiddleware(jwtService))
		catalog.Use(middleware.RequireRole("operator", "admin"))
		{
			catalog.POST("/items", catalogHandler.CreateItem)
			catalog.GET("/items", catalogHandler.ListItems)
			catalog.GET("/items/:id", catalogHandler.GetItem)
			catalog.PUT("/items/:id", catalogHandler.UpdateItem)
			catalog.DELETE("/items/:id", catalogHandler.DeactivateItem)
			catalog.GET("/items/:id/capacity", catalogHandler.GetCapacity)
		}

		// Booking review (operators only)
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		bookings.Use(middleware.RequireRole("operator", "admin"))
		{
			bookings.GET("", bookingHandler.List)
			bookings.GET("/:id", bookingHandler.Get)
			bookings.POST("/:id/approve", bookingHandler.Approve)
			bookings.POST("/:id/reject", bookingHandler.Reject)
			bookings.POST("/:id/apply-coupon", bookingHandler.ApplyCoupon)
			bookings.POST("/:id/clear-coupon", bookingHandler.ClearCoupon)
			bookings.POST("/:id/notes", bookingHandler.AddNote)
			bookings.POST("/:id/send-offer", bookingHandler.SendOffer)
			bookings.POST("/:id/cancel", bookingHandler.Cancel)
		}

		// Payment processor webhook (unauthenticated; carries its own reference)
		v1.POST("/payments/webhook", bookingHandler.PaymentWebhook)

		// Admin cron management routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService))
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.POST("/cron/sweep-quotes", func(c *gin.Context) {
				cronService.RunQuoteSweepNow()
				c.JSON(200, gin.H{"message": "Quote sweep triggered"})
			})

			admin.GET("/cron/status", func(c *gin.Context) {
				c.JSON(200, cronService.GetJobStatus())
			})
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	cronService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if opCtx, exists := middleware.GetOperatorContext(c); exists {
			fields["operator_id"] = opCtx.OperatorID
			fields["org_id"] = opCtx.OrganizationID
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
		} else {
			status := c.Writer.Status()
			if status >= 500 {
				entry.Error("Request completed with server error")
			} else if status >= 400 {
				entry.Warn("Request completed with client error")
			} else {
				entry.Info("Request completed successfully")
			}
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
