package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Project-Caravana/telemetry-service/internal/metrics"
)

// Metrics exposes the in-process counters for scraping and debugging.
func Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.GetMetricsCollector().GetMetrics())
}
