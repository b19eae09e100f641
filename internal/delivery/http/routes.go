package http

import (
	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/config"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log *zap.SugaredLogger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		v1.POST("/analyze", handler.Analyze)

		cache := v1.Group("/cache")
		{
			cache.GET("/stats", handler.CacheStats)
			cache.DELETE("", handler.ClearCache)
		}
	}

	return router
}
