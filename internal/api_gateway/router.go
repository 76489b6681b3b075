package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ventasync-reconciler/internal/api_gateway/handler"
	"github.com/ventasync-reconciler/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	salesHandler *handler.SalesHandler,
	batchHandler *handler.BatchHandler,
	configHandler *handler.ConfigHandler,
	oauthHandler *handler.OAuthHandler,
	reconcileHandler *handler.ReconcileHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		sales := v1.Group("/sales")
		{
			sales.GET("", salesHandler.List)
			sales.POST("/:id/retry", salesHandler.Retry)
			sales.GET("/:id/attempts", salesHandler.GetAttempts)
		}

		batch := v1.Group("/batch")
		{
			batch.POST("/process", batchHandler.Process)
		}

		config := v1.Group("/config")
		{
			config.GET("/credentials", configHandler.GetCredentials)
			config.PUT("/credentials", configHandler.UpdateCredentials)
		}

		oauth := v1.Group("/oauth/mercadolibre")
		{
			oauth.GET("/authorize-url", oauthHandler.AuthorizeURL)
			oauth.POST("/disconnect", oauthHandler.Disconnect)
		}
	}

	// The provider redirects the browser here; the route lives outside the
	// versioned API because it is registered verbatim with the OAuth app
	r.GET("/oauth/mercadolibre/callback", oauthHandler.Callback)

	// On-demand sync trigger for cron jobs
	r.POST("/internal/reconcile", reconcileHandler.Run)

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
