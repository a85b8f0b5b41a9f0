package service

import (
	"time"

	"github.com/Project-Caravana/telemetry-service/internal/model"
)

// TelemetryPayload is the wire format submitted by in-vehicle devices. Field
// names follow the OBD device protocol, which predates this service.
type TelemetryPayload struct {
	Velocidade          *float64         `json:"velocidade"`
	RPM                 *float64         `json:"rpm"`
	Temperatura         *float64         `json:"temperatura"`
	NivelCombustivel    *float64         `json:"nivelCombustivel"`
	PressaoOleo         *float64         `json:"pressaoOleo"`
	Voltagem            *float64         `json:"voltagem"`
	ConsumoInstantaneo  *float64         `json:"consumoInstantaneo"`
	DistanciaPercorrida *float64         `json:"distanciaPercorrida"`
	HorasMotor          *float64         `json:"horasMotor"`
	MILStatus           bool             `json:"milStatus"`
	DTCCount            int              `json:"dtcCount"`
	Falhas              []FaultPayload   `json:"falhas"`
	Localizacao         *LocationPayload `json:"localizacao"`
	TipoLeitura         string           `json:"tipoLeitura"`
	Fonte               string           `json:"fonte"`
}

// FaultPayload is a diagnostic trouble code as reported by the device.
type FaultPayload struct {
	Codigo    string `json:"codigo"`
	Descricao string `json:"descricao"`
	Status    string `json:"status"`
}

// LocationPayload is the optional GPS fix attached to a reading.
type LocationPayload struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Altitude  *float64   `json:"altitude"`
	Precisao  *float64   `json:"precisao"`
	Timestamp *time.Time `json:"timestamp"`
}

// metrics maps the wire fields onto the domain metrics block.
func (p *TelemetryPayload) metrics() model.Metrics {
	return model.Metrics{
		Speed:              p.Velocidade,
		RPM:                p.RPM,
		Temperature:        p.Temperatura,
		FuelLevel:          p.NivelCombustivel,
		OilPressure:        p.PressaoOleo,
		Voltage:            p.Voltagem,
		InstantConsumption: p.ConsumoInstantaneo,
		DistanceTotal:      p.DistanciaPercorrida,
		EngineHours:        p.HorasMotor,
		CheckEngine:        p.MILStatus,
		FaultCount:         p.DTCCount,
	}
}

// toReading builds the immutable reading for a validated payload. The
// reading is attributed to the vehicle's currently assigned employee, if any.
func (p *TelemetryPayload) toReading(vehicle *model.Vehicle, at time.Time) *model.TelemetryReading {
	reading := &model.TelemetryReading{
		VehicleID:  vehicle.UUID,
		CompanyID:  vehicle.CompanyID,
		EmployeeID: vehicle.EmployeeID,
		Metrics:    p.metrics(),
		Type:       model.ReadingTypeFromString(p.TipoLeitura),
		Source:     model.ReadingSourceFromString(p.Fonte),
		CreatedAt:  at,
	}

	for _, f := range p.Falhas {
		reading.Faults = append(reading.Faults, model.FaultCode{
			Code:        f.Codigo,
			Description: f.Descricao,
			Status:      model.FaultStatusFromString(f.Status),
			DetectedAt:  at,
		})
	}

	if p.Localizacao != nil {
		lat, lon := p.Localizacao.Latitude, p.Localizacao.Longitude
		reading.Location = model.Location{
			Latitude:  &lat,
			Longitude: &lon,
			Altitude:  p.Localizacao.Altitude,
			Accuracy:  p.Localizacao.Precisao,
			FixedAt:   p.Localizacao.Timestamp,
		}
	}

	return reading
}
