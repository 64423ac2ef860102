package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig holds the router settings.
type RouterConfig struct {
	GinMode       string
	AllowedOrigin string
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// SetupRouter configures the Gin router with all routes and middleware.
func SetupRouter(handler *Handler, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	router := gin.New()

	// Apply middleware
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.AllowedOrigin))
	router.Use(SessionMiddleware())

	// Health check endpoint (no auth required)
	router.GET("/health", handler.Health)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Fee quotes are public, like the pricing page.
		v1.GET("/fees/quote", handler.QuoteFees)

		authed := v1.Group("")
		authed.Use(RequireSession())
		{
			authed.POST("/reservations/:id/payments", handler.StartReservationPayment)

			wallet := authed.Group("/wallet/withdrawals")
			{
				wallet.POST("", handler.CreateWithdrawal)
				wallet.POST("/:id/verify", handler.VerifyWithdrawal)
			}

			flows := authed.Group("/flows/:flow_id")
			{
				flows.GET("", handler.GetFlow)
				flows.GET("/events", handler.StreamFlow)
				flows.POST("/retry", handler.RetryFlow)
				flows.DELETE("", handler.CloseFlow)
			}

			drafts := authed.Group("/experience-drafts")
			{
				drafts.GET("", handler.GetDraft)
				drafts.DELETE("", handler.DiscardDraft)
				drafts.PUT("/steps/:step", handler.UpdateDraftStep)
				drafts.POST("/next", handler.NextDraftStep)
				drafts.POST("/back", handler.PreviousDraftStep)
				drafts.POST("/submit", handler.SubmitDraft)
			}
		}
	}

	return router
}
