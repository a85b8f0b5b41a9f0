package service

import (
	"fmt"
	"strings"
)

// ValidationError carries per-field messages for a rejected payload. Field
// keys use the wire names so devices can match errors to what they sent.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "invalid telemetry payload: " + strings.Join(parts, "; ")
}

type fieldRange struct {
	field string
	value *float64
	min   float64
	max   float64
}

// Validate checks every supplied metric against its physical range. All
// violations are collected before returning so the device sees the full
// picture in one round trip. Absent (nil) fields are not errors.
func (p *TelemetryPayload) Validate() error {
	ranges := []fieldRange{
		{"velocidade", p.Velocidade, 0, 300},
		{"rpm", p.RPM, 0, 10000},
		{"temperatura", p.Temperatura, -50, 150},
		{"nivelCombustivel", p.NivelCombustivel, 0, 100},
		{"pressaoOleo", p.PressaoOleo, 0, 10},
		{"voltagem", p.Voltagem, 0, 20},
		{"consumoInstantaneo", p.ConsumoInstantaneo, 0, 100},
	}

	fields := make(map[string]string)
	for _, r := range ranges {
		if r.value == nil {
			continue
		}
		if *r.value < r.min || *r.value > r.max {
			fields[r.field] = fmt.Sprintf("must be between %g and %g, got %g", r.min, r.max, *r.value)
		}
	}
	if p.DistanciaPercorrida != nil && *p.DistanciaPercorrida < 0 {
		fields["distanciaPercorrida"] = fmt.Sprintf("must not be negative, got %g", *p.DistanciaPercorrida)
	}
	if p.HorasMotor != nil && *p.HorasMotor < 0 {
		fields["horasMotor"] = fmt.Sprintf("must not be negative, got %g", *p.HorasMotor)
	}
	if p.DTCCount < 0 {
		fields["dtcCount"] = fmt.Sprintf("must not be negative, got %d", p.DTCCount)
	}
	if p.Localizacao != nil {
		if p.Localizacao.Latitude < -90 || p.Localizacao.Latitude > 90 {
			fields["localizacao.latitude"] = fmt.Sprintf("must be between -90 and 90, got %g", p.Localizacao.Latitude)
		}
		if p.Localizacao.Longitude < -180 || p.Localizacao.Longitude > 180 {
			fields["localizacao.longitude"] = fmt.Sprintf("must be between -180 and 180, got %g", p.Localizacao.Longitude)
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
