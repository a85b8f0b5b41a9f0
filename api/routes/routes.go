package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Project-Caravana/telemetry-service/api/handlers"
	"github.com/Project-Caravana/telemetry-service/api/middleware"
	"github.com/Project-Caravana/telemetry-service/config"
	"github.com/Project-Caravana/telemetry-service/internal/broadcast"
	"github.com/Project-Caravana/telemetry-service/internal/service"
)

// SetupRoutes sets up all the routes for the server
func SetupRoutes(
	r *gin.Engine,
	cfg *config.Config,
	ingest *service.IngestService,
	query *service.QueryService,
	hub *broadcast.Hub,
	log *logrus.Logger,
) {
	// Health check and metrics
	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", handlers.Metrics)

	// Live subscriptions
	wsHandler := handlers.NewWSHandler(hub, cfg.Server.CORSOrigins, log)
	r.GET("/ws", wsHandler.Subscribe)

	// API routes
	api := r.Group("/api/v1")

	telemetryHandler := handlers.NewTelemetryHandler(ingest, query, log)
	vehicles := api.Group("/vehicles")
	{
		// Device submissions authenticate at the gateway, not here.
		vehicles.PUT("/:vehicleId/telemetry", telemetryHandler.SubmitTelemetry)

		authed := vehicles.Group("")
		authed.Use(middleware.JWTAuth(cfg.Auth.JWTSecret, log))
		{
			authed.GET("/:vehicleId/telemetry-history", telemetryHandler.GetHistory)
			authed.GET("/:vehicleId/alerts", telemetryHandler.GetAlerts)
			authed.GET("/:vehicleId/snapshot", telemetryHandler.GetSnapshot)
		}
	}
}
