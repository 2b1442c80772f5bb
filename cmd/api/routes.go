package main

import (
	"database/sql"
	"net/http"
	"time"

	"whatsapp-gateway/internal/auth"
	"whatsapp-gateway/internal/config"
	"whatsapp-gateway/internal/httpapi"
	"whatsapp-gateway/internal/outbound"
	"whatsapp-gateway/internal/webhook"
	"whatsapp-gateway/pkg/utils"

	"github.com/gin-gonic/gin"
)

type appDeps struct {
	cfg  config.Config
	db   *sql.DB
	auth *auth.Manager

	webhook webhook.Handler
	send    outbound.SendHandler
	api     httpapi.Handlers
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d appDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Meta webhook endpoints (public). GET answers the subscribe handshake,
	// POST ingests events. Meta retries failed deliveries, so POST must stay
	// cheap and return 200 on partial failure.
	r.GET("/webhook/", d.webhook.Verify)
	r.POST("/webhook/", d.webhook.Receive)

	// Outbound send (public, matches the original deployment posture).
	r.POST("/api/send-message/", d.send.Send)

	// Login is public; everything else under /api requires a token.
	r.POST("/api/auth/login", d.api.Login)

	protected := r.Group("/api")
	protected.Use(auth.RequireAccessToken(d.auth), auth.RequireRole(auth.RoleOps))
	{
		protected.GET("/messages", d.api.ListMessages)
		protected.POST("/messages/:id/processed", d.api.MarkProcessed)
		protected.GET("/calls", d.api.ListCalls)
		protected.GET("/statuses", d.api.ListStatuses)
		protected.GET("/outgoing", d.api.ListOutgoing)
		protected.GET("/stats", d.api.GetStats)
	}
}
