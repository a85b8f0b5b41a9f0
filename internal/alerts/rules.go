package alerts

import (
	"fmt"

	"github.com/Project-Caravana/telemetry-service/internal/model"
)

// Rule is a static condition-to-severity mapping used to derive alerts from a
// reading's metrics block. Rules are independent; a single reading may match
// several of them.
type Rule struct {
	Type     model.AlertType
	Applies  func(m model.Metrics) bool
	Severity func(m model.Metrics) model.AlertSeverity
	Message  func(m model.Metrics) string
}

// Rules is the threshold table, evaluated in order. Each rule has an outer
// threshold that triggers it and, where applicable, a stricter inner
// threshold that escalates the severity one tier.
var Rules = []Rule{
	{
		Type: model.AlertSpeedHigh,
		Applies: func(m model.Metrics) bool {
			return m.Speed != nil && *m.Speed > 120
		},
		Severity: func(m model.Metrics) model.AlertSeverity {
			if *m.Speed > 140 {
				return model.SeverityCritical
			}
			return model.SeverityHigh
		},
		Message: func(m model.Metrics) string {
			return fmt.Sprintf("Speed too high: %.0f km/h", *m.Speed)
		},
	},
	{
		Type: model.AlertTemperatureHigh,
		Applies: func(m model.Metrics) bool {
			return m.Temperature != nil && *m.Temperature > 100
		},
		Severity: func(m model.Metrics) model.AlertSeverity {
			if *m.Temperature > 110 {
				return model.SeverityCritical
			}
			return model.SeverityHigh
		},
		Message: func(m model.Metrics) string {
			return fmt.Sprintf("Engine overheating: %.0f°C", *m.Temperature)
		},
	},
	{
		Type: model.AlertFuelLow,
		Applies: func(m model.Metrics) bool {
			return m.FuelLevel != nil && *m.FuelLevel < 15
		},
		Severity: func(m model.Metrics) model.AlertSeverity {
			if *m.FuelLevel < 5 {
				return model.SeverityHigh
			}
			return model.SeverityMedium
		},
		Message: func(m model.Metrics) string {
			return fmt.Sprintf("Fuel level low: %.0f%%", *m.FuelLevel)
		},
	},
	{
		Type: model.AlertRPMHigh,
		Applies: func(m model.Metrics) bool {
			return m.RPM != nil && *m.RPM > 5000
		},
		Severity: func(m model.Metrics) model.AlertSeverity {
			return model.SeverityMedium
		},
		Message: func(m model.Metrics) string {
			return fmt.Sprintf("RPM too high: %.0f", *m.RPM)
		},
	},
	{
		Type: model.AlertOilPressureLow,
		Applies: func(m model.Metrics) bool {
			return m.OilPressure != nil && *m.OilPressure < 1.5
		},
		Severity: func(m model.Metrics) model.AlertSeverity {
			return model.SeverityCritical
		},
		Message: func(m model.Metrics) string {
			return fmt.Sprintf("Oil pressure critical: %.1f bar", *m.OilPressure)
		},
	},
	{
		Type: model.AlertEngineFault,
		Applies: func(m model.Metrics) bool {
			return m.CheckEngine
		},
		Severity: func(m model.Metrics) model.AlertSeverity {
			return model.SeverityHigh
		},
		Message: func(m model.Metrics) string {
			return fmt.Sprintf("Check engine light on: %d fault code(s) detected", m.FaultCount)
		},
	},
}
