// Package alerts derives safety and maintenance alerts from telemetry
// readings using a static threshold rule table.
package alerts

import (
	"time"

	"github.com/Project-Caravana/telemetry-service/internal/model"
)

// Evaluate applies the threshold table to a metrics block and returns the
// matching alerts in table order. It is pure: no I/O, no wall clock, no
// randomness. The caller supplies the generation timestamp; identifiers are
// filled in when the parent reading is appended.
func Evaluate(m model.Metrics, at time.Time) []model.Alert {
	var out []model.Alert
	for _, rule := range Rules {
		if !rule.Applies(m) {
			continue
		}
		out = append(out, model.Alert{
			Type:      rule.Type,
			Message:   rule.Message(m),
			Severity:  rule.Severity(m),
			CreatedAt: at,
		})
	}
	return out
}
