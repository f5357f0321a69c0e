package router

import (
	"net/http"

	"restockly/internal/common"
	"restockly/internal/config"
	"restockly/internal/domain/backinstock"
	"restockly/internal/middleware"

	"github.com/gin-gonic/gin"
)

// New creates and configures the Gin router with all middleware and routes.
func New(
	cfg *config.Config,
	handler *backinstock.Handler,
) *gin.Engine {
	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Global middleware stack (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())

	// Custom structured logger middleware
	r.Use(gin.Logger())

	// Public routes
	r.GET("/health", healthCheck)

	// Storefront routes: called cross-origin from product pages, so they
	// carry the widget CORS policy and the per-IP rate limiter.
	rateLimiter := middleware.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.Burst,
	)
	storefront := r.Group("/storefront")
	storefront.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))
	storefront.Use(rateLimiter.Middleware())
	{
		handler.RegisterStorefrontRoutes(storefront)
	}

	// Platform webhooks; transport authentication happens upstream.
	webhooks := r.Group("/webhooks")
	{
		handler.RegisterWebhookRoutes(webhooks)
	}

	// Protected admin API routes (API key required)
	adminAPI := r.Group("/api/v1")
	adminAPI.Use(middleware.Auth(cfg.Auth.APIKeys))
	{
		handler.RegisterAdminRoutes(adminAPI)
	}

	return r
}

// healthCheck handles GET /health
func healthCheck(c *gin.Context) {
	common.Success(c, http.StatusOK, gin.H{
		"status":  "ok",
		"service": "restockly",
	})
}
