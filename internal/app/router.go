package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"coachpay/internal/handler"
	"coachpay/internal/metrics"
	"coachpay/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	OrderHandler    *handler.OrderHandler
	FeeHandler      *handler.FeeHandler
	ProviderHandler *handler.ProviderHandler
	WebhookHandler  *handler.WebhookHandler
	OpsHandler      *handler.OpsHandler

	Logger      logrus.FieldLogger
	Metrics     middleware.RequestObserver // optional
	Gatherer    prometheus.Gatherer        // optional; enables /metrics
	RedisClient *redis.Client              // optional; enables idempotent replays
	NewRelicApp *newrelic.Application      // optional
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		router.Use(middleware.RequestMetrics(deps.Metrics))
	}

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAttributes())
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	// API v1 routes.
	v1 := router.Group("/v1")

	// Webhooks carry their own event-id deduplication and must not be replayed from cache.
	v1.POST("/webhooks/stripe", deps.WebhookHandler.Stripe)
	v1.GET("/checkout/success", deps.OrderHandler.CheckoutSuccess)

	api := v1.Group("")
	api.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	{
		api.POST("/fees/quote", deps.FeeHandler.Quote)

		// Order routes.
		orders := api.Group("/orders")
		{
			orders.POST("", deps.OrderHandler.CreateOrder)
			orders.GET("/:id", deps.OrderHandler.GetOrder)
			orders.GET("/:id/receipt", deps.OrderHandler.GetReceipt)
			orders.POST("/:id/retry-payment", deps.OrderHandler.RetryPayment)
			orders.POST("/:id/sessions", deps.OrderHandler.BookSession)
			orders.POST("/:id/complete", deps.OrderHandler.Complete)
		}

		// Provider routes.
		providers := api.Group("/providers")
		{
			providers.POST("/:id/payout-account", deps.ProviderHandler.StartOnboarding)
			providers.GET("/:id/payout-account", deps.ProviderHandler.GetPayoutAccount)
		}

		// Operator routes.
		ops := api.Group("/ops")
		{
			ops.GET("/anomalies", deps.OpsHandler.ListAnomalies)
			ops.POST("/settlements/sweep", deps.OpsHandler.Sweep)
			ops.POST("/orders/:id/unblock", deps.OpsHandler.Unblock)
		}
	}

	return router
}
