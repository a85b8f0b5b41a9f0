package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Project-Caravana/telemetry-service/api/middleware"
	"github.com/Project-Caravana/telemetry-service/internal/model"
	"github.com/Project-Caravana/telemetry-service/internal/repository"
	"github.com/Project-Caravana/telemetry-service/internal/service"
)

// TelemetryHandler handles telemetry ingestion and read requests.
type TelemetryHandler struct {
	ingest *service.IngestService
	query  *service.QueryService
	log    *logrus.Logger
}

// NewTelemetryHandler creates a new TelemetryHandler instance
func NewTelemetryHandler(ingest *service.IngestService, query *service.QueryService, log *logrus.Logger) *TelemetryHandler {
	return &TelemetryHandler{
		ingest: ingest,
		query:  query,
		log:    log,
	}
}

// SubmitTelemetry handles a reading submitted by an in-vehicle device.
func (h *TelemetryHandler) SubmitTelemetry(c *gin.Context) {
	vehicleID := c.Param("vehicleId")

	var payload service.TelemetryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.WithError(err).Warn("Invalid telemetry format")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid telemetry format",
		})
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), vehicleID, &payload)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "Telemetry values out of range",
				"fields": verr.Fields,
			})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Vehicle not found",
			})
		default:
			h.log.WithError(err).WithField("vehicle_id", vehicleID).Error("Failed to ingest telemetry")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to process telemetry",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reading":  result.Reading,
		"snapshot": result.Snapshot,
		"stale":    result.Stale,
	})
}

// GetHistory returns a page of readings for a vehicle, newest first.
func (h *TelemetryHandler) GetHistory(c *gin.Context) {
	vehicleID := c.Param("vehicleId")

	fields := make(map[string]string)
	filter := repository.ReadingFilter{
		EmployeeID: c.Query("employeeId"),
		Page:       intQuery(c, "page", 1, fields),
		PageSize:   intQuery(c, "pageSize", 0, fields),
	}
	filter.From = timeQuery(c, "from", fields)
	filter.To = timeQuery(c, "to", fields)
	if len(fields) > 0 {
		respondInvalidQuery(c, fields)
		return
	}

	readings, err := h.query.History(c.Request.Context(), vehicleID, middleware.CompanyID(c), filter)
	if err != nil {
		h.respondQueryError(c, vehicleID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"readings": readings,
		"page":     filter.Page,
	})
}

// GetAlerts returns a page of alerts for a vehicle, newest first.
func (h *TelemetryHandler) GetAlerts(c *gin.Context) {
	vehicleID := c.Param("vehicleId")

	fields := make(map[string]string)
	filter := repository.AlertFilter{
		Severity: model.SeverityFromString(c.Query("severity")),
		Page:     intQuery(c, "page", 1, fields),
		PageSize: intQuery(c, "pageSize", 0, fields),
	}
	if raw := c.Query("severity"); raw != "" && filter.Severity == "" {
		fields["severity"] = "must be one of low, medium, high, critical"
	}
	filter.From = timeQuery(c, "from", fields)
	filter.To = timeQuery(c, "to", fields)
	if len(fields) > 0 {
		respondInvalidQuery(c, fields)
		return
	}

	alerts, err := h.query.Alerts(c.Request.Context(), vehicleID, middleware.CompanyID(c), filter)
	if err != nil {
		h.respondQueryError(c, vehicleID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"page":   filter.Page,
	})
}

// GetSnapshot returns the vehicle's latest-known telemetry state.
func (h *TelemetryHandler) GetSnapshot(c *gin.Context) {
	vehicleID := c.Param("vehicleId")

	snapshot, err := h.query.Snapshot(c.Request.Context(), vehicleID, middleware.CompanyID(c))
	if err != nil {
		h.respondQueryError(c, vehicleID, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (h *TelemetryHandler) respondQueryError(c *gin.Context, vehicleID string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Vehicle not found",
		})
		return
	}
	h.log.WithError(err).WithField("vehicle_id", vehicleID).Error("Query failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal server error",
	})
}

func respondInvalidQuery(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"error":  "Invalid query parameters",
		"fields": fields,
	})
}

// intQuery parses an integer query parameter. A malformed value is recorded
// in fields so the request can be rejected with a 422 rather than silently
// falling back to the default.
func intQuery(c *gin.Context, name string, def int, fields map[string]string) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		fields[name] = "must be an integer"
		return def
	}
	return v
}

func timeQuery(c *gin.Context, name string, fields map[string]string) *time.Time {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		fields[name] = "must be an RFC 3339 timestamp"
		return nil
	}
	return &t
}
