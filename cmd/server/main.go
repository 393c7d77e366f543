package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/auction-api/internal/auction"
	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/bidding"
	"github.com/ksred/auction-api/internal/closing"
	"github.com/ksred/auction-api/internal/database"
	"github.com/ksred/auction-api/internal/email"
	"github.com/ksred/auction-api/internal/locks"
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/users"
	"github.com/ksred/auction-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the auction API server with graceful shutdown
// support. It sets up the database, the services, the background expiry
// sweeper, and the API routes.
func main() {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "auction-secret-key"
	}

	// Email sender falls back to log-only delivery when no SMTP relay is
	// configured
	var sender email.Sender = email.LogSender{}
	if smtp, ok := email.NewSMTPSenderFromEnv(); ok {
		sender = smtp
	}

	// All auction-mutating operations for the same auction serialize on
	// this lock set
	auctionLocks := locks.NewKeyedMutex()

	// Initialize services and handlers
	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials("test-api-key", "test-api-secret", "USR_test")

	userService := users.NewService(db)
	userHandlers := users.NewGinHandlers(userService)

	notifier := notification.NewService(db, sender)
	notificationHandlers := notification.NewGinHandlers(notifier)

	auctionService := auction.NewService(db)
	auctionHandlers := auction.NewGinHandlers(auctionService)

	biddingService := bidding.NewService(db, notifier, auctionLocks)
	biddingHandlers := bidding.NewGinHandlers(biddingService)

	closer := closing.NewCloser(db, notifier, auctionLocks)
	closingHandlers := closing.NewGinHandlers(closer)

	// Create and start the expiry sweeper
	sweeper := closing.NewSweeper(closer)
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()

	go sweeper.Start(sweeperCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, []byte(jwtSecret), authHandlers, userHandlers, auctionHandlers, biddingHandlers, closingHandlers, notificationHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth and registration routes: public endpoints
// - Auction, bidding, and notification routes: protected by JWT authentication
// - Internal routes: protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret []byte,
	authHandlers *auth.GinHandlers,
	userHandlers *users.GinHandlers,
	auctionHandlers *auction.GinHandlers,
	biddingHandlers *bidding.GinHandlers,
	closingHandlers *closing.GinHandlers,
	notificationHandlers *notification.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Public registration
		v1.POST("/users", userHandlers.RegisterUserHandler())

		// Directory lookup
		usersGroup := v1.Group("/users")
		usersGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			usersGroup.GET("/:user_id", userHandlers.GetUserHandler())
		}

		// Auction and bidding routes
		auctions := v1.Group("/auctions")
		auctions.Use(middleware.JWTAuth(jwtSecret))
		{
			auctions.POST("", auctionHandlers.CreateAuctionHandler())
			auctions.GET("", auctionHandlers.ListAuctionsHandler())
			auctions.GET("/:auction_id", auctionHandlers.GetAuctionHandler())
			auctions.GET("/seller/:seller_id", auctionHandlers.ListBySellerHandler())
			auctions.POST("/:auction_id/bids", biddingHandlers.PlaceBidHandler())
			auctions.GET("/:auction_id/bids", biddingHandlers.ListBidsHandler())
			auctions.POST("/:auction_id/award", closingHandlers.AwardHandler())
		}

		// Notification routes
		notifications := v1.Group("/notifications")
		notifications.Use(middleware.JWTAuth(jwtSecret))
		{
			notifications.GET("", notificationHandlers.ListNotificationsHandler())
			notifications.POST("/:notification_id/read", notificationHandlers.MarkReadHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/sweep", closingHandlers.SweepHandler())
		}
	}
}
