// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/numerator"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/domain/audit"
	"lotkeeper/internal/domain/lot"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/internal/domain/transfer"
	"lotkeeper/internal/infrastructure/http/v1/handlers"
	"lotkeeper/internal/infrastructure/http/v1/middleware"
	"lotkeeper/internal/infrastructure/storage/postgres"
	"lotkeeper/internal/infrastructure/storage/postgres/lot_repo"
	"lotkeeper/internal/infrastructure/storage/postgres/movement_repo"
	"lotkeeper/internal/infrastructure/storage/postgres/transfer_repo"
	"lotkeeper/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks).
	Pool *postgres.Pool

	// TxManager manages database transactions.
	TxManager *postgres.TxManager

	// Logger for request logging
	Logger *logger.Logger

	// TokenValidator for token validation
	TokenValidator middleware.TokenValidator

	// Numerator for lot and transfer number generation
	Numerator numerator.Generator

	// Audit records entity change history
	Audit audit.Recorder

	// TransferConfig tunes transfer orchestration
	TransferConfig transfer.Config

	// IdempotencyEnabled enables idempotency middleware
	IdempotencyEnabled bool

	// IdempotencyTTL is how long completed keys are kept
	IdempotencyTTL time.Duration
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Repositories and services
	lotRepo := lot_repo.NewLotRepo(cfg.TxManager)
	movementRepo := movement_repo.NewMovementRepo(cfg.TxManager)
	transferRepo := transfer_repo.NewTransferRepo(cfg.TxManager)

	lotService := lot.NewService(lotRepo, movementRepo, cfg.Numerator, cfg.TxManager, cfg.Audit)
	movementService := movement.NewService(movementRepo)
	allocationService := allocation.NewService(lotRepo)
	transferService := transfer.NewService(
		transferRepo, lotRepo, movementRepo,
		cfg.Numerator, cfg.TxManager, cfg.Audit, cfg.TransferConfig,
	)

	baseHandler := handlers.NewBaseHandler()
	lotHandler := handlers.NewLotHandler(baseHandler, lotService, movementService)
	transferHandler := handlers.NewTransferHandler(baseHandler, transferService, movementService)
	allocationHandler := handlers.NewAllocationHandler(baseHandler, allocationService)

	// API v1 - all endpoints require authentication
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.TokenValidator))

	if cfg.IdempotencyEnabled {
		ttl := cfg.IdempotencyTTL
		if ttl == 0 {
			ttl = 10 * time.Minute
		}
		store := postgres.NewIdempotencyStore(cfg.TxManager, ttl)
		api.Use(middleware.Idempotency(store))
	}

	lotHandler.RegisterRoutes(api.Group("/lots"))
	transferHandler.RegisterRoutes(api.Group("/transfers"))
	allocationHandler.RegisterRoutes(api.Group("/allocations"))

	return router
}
