package model

import (
	"time"
)

// Base model fields shared by all models
type Base struct {
	UUID      string    `json:"uuid" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VehicleStatus defines the operational status of a vehicle
type VehicleStatus string

const (
	// VehicleAvailable represents a vehicle ready for assignment
	VehicleAvailable VehicleStatus = "available"
	// VehicleInUse represents a vehicle currently assigned to an employee
	VehicleInUse VehicleStatus = "in_use"
	// VehicleInMaintenance represents a vehicle in the shop
	VehicleInMaintenance VehicleStatus = "maintenance"
	// VehicleInactive represents a decommissioned vehicle
	VehicleInactive VehicleStatus = "inactive"
)

// Vehicle represents a fleet vehicle. The embedded snapshot columns hold the
// metrics of the most recent committed reading; SnapshotAt is the timestamp
// of that reading and guards the compare-and-swap projection.
type Vehicle struct {
	Base
	Plate      string        `json:"plate" gorm:"uniqueIndex"`
	Make       string        `json:"make"`
	ModelName  string        `json:"model" gorm:"column:model"`
	Year       int           `json:"year"`
	CompanyID  string        `json:"company_id" gorm:"type:uuid;index"`
	EmployeeID *string       `json:"employee_id,omitempty" gorm:"type:uuid"`
	Status     VehicleStatus `json:"status"`
	OdometerKm float64       `json:"odometer_km"`
	Snapshot   Metrics       `json:"snapshot" gorm:"embedded;embeddedPrefix:obd_"`
	SnapshotAt *time.Time    `json:"snapshot_at,omitempty"`
}

// SnapshotView returns the vehicle's latest-known telemetry state.
func (v *Vehicle) SnapshotView() VehicleSnapshot {
	return VehicleSnapshot{
		VehicleID:  v.UUID,
		Metrics:    v.Snapshot,
		OdometerKm: v.OdometerKm,
		UpdatedAt:  v.SnapshotAt,
	}
}

// VehicleSnapshot is the latest-known telemetry state for a vehicle,
// overwritten in place as readings commit.
type VehicleSnapshot struct {
	VehicleID  string     `json:"vehicle_id"`
	Metrics    Metrics    `json:"metrics"`
	OdometerKm float64    `json:"odometer_km"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// Metrics is the sensor block of a telemetry reading. Optional sensors use
// pointer fields so absent values are distinguishable from zero.
type Metrics struct {
	Speed              *float64 `json:"speed,omitempty" gorm:"column:speed"`
	RPM                *float64 `json:"rpm,omitempty" gorm:"column:rpm"`
	Temperature        *float64 `json:"temperature,omitempty" gorm:"column:temperature"`
	FuelLevel          *float64 `json:"fuel_level,omitempty" gorm:"column:fuel_level"`
	OilPressure        *float64 `json:"oil_pressure,omitempty" gorm:"column:oil_pressure"`
	Voltage            *float64 `json:"voltage,omitempty" gorm:"column:voltage"`
	InstantConsumption *float64 `json:"instant_consumption,omitempty" gorm:"column:instant_consumption"`
	DistanceTotal      *float64 `json:"distance_total,omitempty" gorm:"column:distance_total"`
	EngineHours        *float64 `json:"engine_hours,omitempty" gorm:"column:engine_hours"`
	CheckEngine        bool     `json:"check_engine" gorm:"column:check_engine"`
	FaultCount         int      `json:"fault_count" gorm:"column:fault_count"`
}

// Location is an optional GPS fix attached to a reading.
type Location struct {
	Latitude  *float64   `json:"latitude,omitempty" gorm:"column:latitude"`
	Longitude *float64   `json:"longitude,omitempty" gorm:"column:longitude"`
	Altitude  *float64   `json:"altitude,omitempty" gorm:"column:altitude"`
	Accuracy  *float64   `json:"accuracy,omitempty" gorm:"column:accuracy"`
	FixedAt   *time.Time `json:"fixed_at,omitempty" gorm:"column:fixed_at"`
}

// HasFix reports whether the reading carried a usable position.
func (l Location) HasFix() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// ReadingType defines how a reading was taken
type ReadingType string

const (
	// AutomaticReading represents a periodic reading from the onboard device
	AutomaticReading ReadingType = "automatic"
	// ManualReading represents a reading requested by a user
	ManualReading ReadingType = "manual"
	// EventReading represents a reading captured on a device-side event
	EventReading ReadingType = "event"
)

// ReadingTypeFromString converts a wire value to a ReadingType
func ReadingTypeFromString(s string) ReadingType {
	switch s {
	case "manual":
		return ManualReading
	case "event":
		return EventReading
	default:
		return AutomaticReading
	}
}

// ReadingSource defines where a reading came from
type ReadingSource string

const (
	// SourceBluetooth represents an OBD dongle paired over Bluetooth
	SourceBluetooth ReadingSource = "obd_bluetooth"
	// SourceWifi represents an OBD dongle on the vehicle's WiFi hotspot
	SourceWifi ReadingSource = "obd_wifi"
	// SourceSimulator represents the fleet simulator
	SourceSimulator ReadingSource = "simulator"
	// SourceMobileApp represents the driver's mobile app
	SourceMobileApp ReadingSource = "mobile_app"
)

// ReadingSourceFromString converts a wire value to a ReadingSource
func ReadingSourceFromString(s string) ReadingSource {
	switch s {
	case "obd_wifi":
		return SourceWifi
	case "simulador", "simulator":
		return SourceSimulator
	case "app_mobile", "mobile_app":
		return SourceMobileApp
	default:
		return SourceBluetooth
	}
}

// TelemetryReading is one sample submitted by a vehicle's onboard device.
// Readings are immutable once created; alerts are generated exactly once at
// creation time and persisted in the same transaction.
type TelemetryReading struct {
	UUID       string        `json:"uuid" gorm:"type:uuid;primaryKey"`
	VehicleID  string        `json:"vehicle_id" gorm:"type:uuid"`
	CompanyID  string        `json:"company_id" gorm:"type:uuid"`
	EmployeeID *string       `json:"employee_id,omitempty" gorm:"type:uuid"`
	Metrics    Metrics       `json:"metrics" gorm:"embedded"`
	Faults     FaultCodes    `json:"faults,omitempty" gorm:"type:jsonb"`
	Location   Location      `json:"location" gorm:"embedded;embeddedPrefix:loc_"`
	Alerts     []Alert       `json:"alerts" gorm:"foreignKey:ReadingID"`
	Type       ReadingType   `json:"type"`
	Source     ReadingSource `json:"source"`
	CreatedAt  time.Time     `json:"created_at"`
}
