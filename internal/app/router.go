package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"medtransit/internal/handler"
	"medtransit/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler         *handler.TripHandler
	ConfirmationHandler *handler.ConfirmationHandler
	SuppressionHandler  *handler.SuppressionHandler
	RedisClient         *redis.Client
	NewRelicApp         *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Carrier webhooks and dispatch tooling retry aggressively, so all
	// mutating routes honor Idempotency-Key.
	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check and metrics.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Trip lifecycle routes.
		trips := v1.Group("/trips")
		{
			trips.POST("", deps.TripHandler.CreateTrip)
			trips.GET("", deps.TripHandler.GetAll)
			trips.GET("/:id", deps.TripHandler.GetTrip)
			trips.POST("/:id/status", deps.TripHandler.UpdateStatus)
			trips.POST("/:id/assign", deps.TripHandler.AssignDriver)
			trips.POST("/:id/reinstate", deps.TripHandler.Reinstate)
			trips.GET("/:id/history", deps.TripHandler.History)
			trips.GET("/:id/notifications", deps.TripHandler.Notifications)
			trips.GET("/:id/payout", deps.TripHandler.Payout)
			trips.POST("/:id/confirmation", deps.ConfirmationHandler.Request)
			trips.GET("/:id/confirmation", deps.ConfirmationHandler.GetActive)
		}

		// Inbound reply webhook.
		confirmations := v1.Group("/confirmations")
		{
			confirmations.POST("/inbound", deps.ConfirmationHandler.Inbound)
		}

		// Opt-out management routes.
		suppressions := v1.Group("/suppressions")
		{
			suppressions.POST("", deps.SuppressionHandler.Suppress)
			suppressions.GET("/:address", deps.SuppressionHandler.Get)
			suppressions.DELETE("/:address", deps.SuppressionHandler.Resubscribe)
		}
	}

	return router
}
