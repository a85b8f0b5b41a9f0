package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// FaultStatus defines the lifecycle state of a diagnostic trouble code
type FaultStatus string

const (
	// FaultPending represents a DTC awaiting confirmation by the ECU
	FaultPending FaultStatus = "pending"
	// FaultConfirmed represents a DTC confirmed by the ECU
	FaultConfirmed FaultStatus = "confirmed"
	// FaultPermanent represents a DTC that survives code clearing
	FaultPermanent FaultStatus = "permanent"
)

// FaultStatusFromString converts a wire value to a FaultStatus. The device
// protocol uses Portuguese names; both spellings are accepted.
func FaultStatusFromString(s string) FaultStatus {
	switch s {
	case "confirmado", "confirmed":
		return FaultConfirmed
	case "permanente", "permanent":
		return FaultPermanent
	default:
		return FaultPending
	}
}

// FaultCode is a diagnostic trouble code reported by the vehicle's ECU.
type FaultCode struct {
	Code        string      `json:"code"`
	Description string      `json:"description,omitempty"`
	Status      FaultStatus `json:"status"`
	DetectedAt  time.Time   `json:"detected_at"`
}

// FaultCodes is stored as a jsonb column on the reading.
type FaultCodes []FaultCode

// Value implements driver.Valuer.
func (f FaultCodes) Value() (driver.Value, error) {
	if len(f) == 0 {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FaultCodes) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return errors.New("unsupported type for FaultCodes")
	}
}
