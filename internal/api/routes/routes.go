// Package routes handles the setup and configuration of API routes
package routes

import (
	"database/sql"

	"boardgate/internal/api/handlers"
	"boardgate/internal/api/middleware"
	"boardgate/internal/auth"
	"boardgate/internal/challenge"
	"boardgate/internal/config"
	"boardgate/internal/fingerprint"
	"boardgate/internal/ratelimit"
	"boardgate/internal/reputation"
	"boardgate/internal/repository/postgres"
	"boardgate/internal/verification"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes and their handlers
func SetupRoutes(cfg *config.Config, db *sql.DB) (*gin.Engine, *ratelimit.Limiter) {
	r := gin.Default()

	r.Use(middleware.NewRateLimiter(cfg).Middleware())

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	attemptRepo := postgres.NewVerificationAttemptRepository(db)
	tokenRepo := postgres.NewPreflightTokenRepository(db)
	rateLimitRepo := postgres.NewRateLimitRepository(db)
	boardRepo := postgres.NewBoardRepository(db)
	banRepo := postgres.NewBanRepository(db)

	// Initialize services
	authService := auth.NewService(cfg)
	identity := fingerprint.NewHasher(cfg.Verification.IdentitySalt, cfg.Verification.DailySalt)
	challengeVerifier := challenge.NewVerifier(cfg.Challenge)
	var reputationClient verification.ReputationLookup
	if cfg.Reputation.APIURL != "" {
		reputationClient = reputation.NewClient(cfg.Reputation)
	}
	pipeline := verification.NewPipeline(
		attemptRepo,
		tokenRepo,
		userRepo,
		banRepo,
		challengeVerifier.Primary,
		challengeVerifier.Secondary,
		reputationClient,
		identity,
		cfg.Verification,
		cfg.Reputation,
	)
	limiter := ratelimit.NewLimiter(rateLimitRepo)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService, userRepo)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	authHandler := handlers.NewAuthHandler(userRepo, authService, pipeline, cfg)
	verificationHandler := handlers.NewVerificationHandler(pipeline, userRepo)
	rateLimitHandler := handlers.NewRateLimitHandler(rateLimitRepo)
	legacyHandler := handlers.NewLegacyHandler(boardRepo, limiter, authMiddleware, identity)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Health check (no authentication required)
		v1.GET("/health", healthHandler.Health)

		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/register/preflight", authHandler.RegisterPreflight)
			authGroup.POST("/register", authHandler.Register)
		}

		// Level-up verification routes (require authentication)
		verify := v1.Group("/verification")
		verify.Use(authMiddleware.AuthRequired())
		{
			verify.POST("/preflight", verificationHandler.Preflight)
			verify.POST("/finalize", verificationHandler.Finalize)
			verify.GET("/status", verificationHandler.Status)
		}

		// Rate limit administration (admin only)
		admin := v1.Group("/admin/ratelimit")
		admin.Use(authMiddleware.AuthRequired(), authMiddleware.AdminRequired())
		{
			admin.POST("/rules", rateLimitHandler.CreateRule)
			admin.GET("/rules", rateLimitHandler.ListRules)
			admin.PUT("/rules/:id", rateLimitHandler.UpdateRule)
			admin.POST("/rules/:id/toggle", rateLimitHandler.ToggleRule)
			admin.DELETE("/rules/:id", rateLimitHandler.DeleteRule)
			admin.GET("/locks", rateLimitHandler.ListLocks)
			admin.DELETE("/locks/:key", rateLimitHandler.DeleteLock)
		}
	}

	// Legacy gateway: classic clients speak Shift_JIS form posts
	r.POST("/legacy/:board/bbs.cgi", legacyHandler.Post)

	return r, limiter
}
