package model

import (
	"time"
)

// AlertType defines the category of a derived alert
type AlertType string

const (
	// AlertSpeedHigh represents a speeding alert
	AlertSpeedHigh AlertType = "speed_high"
	// AlertTemperatureHigh represents an engine overheating alert
	AlertTemperatureHigh AlertType = "temperature_high"
	// AlertFuelLow represents a low fuel alert
	AlertFuelLow AlertType = "fuel_low"
	// AlertRPMHigh represents an over-revving alert
	AlertRPMHigh AlertType = "rpm_high"
	// AlertOilPressureLow represents a critical oil pressure alert
	AlertOilPressureLow AlertType = "oil_pressure_low"
	// AlertEngineFault represents a check-engine alert
	AlertEngineFault AlertType = "engine_fault"
)

// AlertSeverity defines how urgent an alert is
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// SeverityFromString converts a wire value to an AlertSeverity. The empty
// string is returned for unknown values so callers can reject them.
func SeverityFromString(s string) AlertSeverity {
	switch s {
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return ""
	}
}

// Rank returns the ordering of a severity, low to critical.
func (s AlertSeverity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// Alert is derived from a reading by the threshold rules. Alerts are written
// only as part of their parent reading's append; the vehicle and company
// references are denormalized so the severity and time indexes can serve the
// dashboard alert views without joins.
type Alert struct {
	UUID      string        `json:"uuid" gorm:"type:uuid;primaryKey"`
	ReadingID string        `json:"reading_id" gorm:"type:uuid"`
	VehicleID string        `json:"vehicle_id" gorm:"type:uuid"`
	CompanyID string        `json:"company_id" gorm:"type:uuid"`
	Type      AlertType     `json:"type"`
	Message   string        `json:"message"`
	Severity  AlertSeverity `json:"severity"`
	CreatedAt time.Time     `json:"created_at"`
}
