package main

import (
	"log"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"reward-guard-backend/internal/config"
	"reward-guard-backend/internal/guard"
	"reward-guard-backend/internal/handlers"
	"reward-guard-backend/internal/ledger"
	"reward-guard-backend/internal/middleware"
	"reward-guard-backend/internal/ratelimit"
	"reward-guard-backend/internal/services"
	"reward-guard-backend/internal/settlement"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			logger.Warn("failed to init sentry", zap.Error(err))
		}
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisService.Close()

	jwtService := services.NewJWTService(cfg)
	settingsService := services.NewSettingsService(redisService, logger)

	bucket := ratelimit.NewBucket(cfg.RateLimitCapacity, cfg.RateLimitWindow)

	sweeper := cron.New()
	sweeper.AddFunc("@every 1m", func() {
		if removed := bucket.Sweep(); removed > 0 {
			logger.Debug("rate limit sweep", zap.Int("removed", removed))
		}
	})
	sweeper.Start()
	defer sweeper.Stop()

	replayGuard := guard.NewReplayGuard(redisService)
	csrfGuard := guard.NewCSRFGuard()

	claimLedger := ledger.NewLedger(redisService, redisService, logger)

	eventsHandler := handlers.NewEventsHandler(logger)

	var submitter settlement.Submitter
	if cfg.ChainRPCURL == "" {
		logger.Warn("no chain rpc configured, using dev settlement submitter")
		submitter = settlement.NewDevSubmitter(logger)
	} else {
		submitter = settlement.NewHTTPSubmitter(cfg.ChainRPCURL)
	}
	settlementService := settlement.NewService(submitter, eventsHandler, logger)
	defer settlementService.Wait()

	secure := cfg.Env == "production"
	handlers.RegisterValidators()

	authHandler := handlers.NewAuthHandler(replayGuard, jwtService, guard.NewDevVerifier(), logger, secure)
	csrfHandler := handlers.NewCSRFHandler(csrfGuard, secure)
	claimHandler := handlers.NewClaimHandler(claimLedger, settlementService, eventsHandler, cfg.CooldownWindow, logger)
	adminHandler := handlers.NewAdminHandler(claimLedger, settingsService, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Check order is fixed: maintenance gate, then rate limit, then CSRF.
	router.Use(middleware.MaintenanceMiddleware(settingsService, cfg.AdminToken))
	router.Use(middleware.RateLimitMiddleware(bucket))
	router.Use(middleware.CSRFMiddleware(csrfGuard))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"success": true})
	})

	router.GET("/csrf", csrfHandler.Token)
	router.GET("/auth/challenge", authHandler.Challenge)
	router.POST("/auth/verify", authHandler.Verify)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		claims := protected.Group("/claims")
		{
			claims.POST("/init", claimHandler.InitClaim)
			claims.POST("/confirm", claimHandler.ConfirmClaim)
			claims.GET("/:resource", claimHandler.GetClaim)
		}

		protected.GET("/cooldown", claimHandler.Cooldown)
	}

	admin := router.Group("/admin")
	admin.Use(middleware.AdminMiddleware(cfg.AdminToken))
	{
		admin.POST("/rewards", adminHandler.RecordReward)
		admin.POST("/maintenance", adminHandler.SetMaintenance)
		admin.GET("/events", eventsHandler.HandleEvents)
	}

	logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
