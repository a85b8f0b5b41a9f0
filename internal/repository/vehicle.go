package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Project-Caravana/telemetry-service/internal/db"
	"github.com/Project-Caravana/telemetry-service/internal/model"
)

// VehicleRepository defines the interface for vehicle lookups and the
// snapshot projection.
type VehicleRepository interface {
	FindByUID(ctx context.Context, uid string) (*model.Vehicle, error)
	// ProjectSnapshot overwrites the vehicle's snapshot with the reading's
	// metrics if and only if the reading is not older than the current
	// snapshot, and returns the vehicle row as committed. It returns nil
	// when the reading is stale; staleness is a normal outcome of
	// out-of-order delivery, not an error.
	ProjectSnapshot(ctx context.Context, vehicleID string, reading *model.TelemetryReading) (*model.Vehicle, error)
	Create(ctx context.Context, vehicle *model.Vehicle) error
}

// vehicleRepository implements VehicleRepository
type vehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

// FindByUID finds a vehicle by UUID
func (r *vehicleRepository) FindByUID(ctx context.Context, uid string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := r.db.WithContext(ctx).Where("uuid = ?", uid).First(&vehicle).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// Create creates a new vehicle
func (r *vehicleRepository) Create(ctx context.Context, vehicle *model.Vehicle) error {
	return r.db.WithContext(ctx).Create(vehicle).Error
}

// ProjectSnapshot is a single conditional UPDATE: the WHERE clause compares
// the reading timestamp against snapshot_at so the read-modify-write is
// atomic inside the database. Concurrent projections for the same vehicle
// cannot lose the newest reading.
func (r *vehicleRepository) ProjectSnapshot(ctx context.Context, vehicleID string, reading *model.TelemetryReading) (*model.Vehicle, error) {
	m := reading.Metrics
	updates := map[string]interface{}{
		"obd_speed":               m.Speed,
		"obd_rpm":                 m.RPM,
		"obd_temperature":         m.Temperature,
		"obd_fuel_level":          m.FuelLevel,
		"obd_oil_pressure":        m.OilPressure,
		"obd_voltage":             m.Voltage,
		"obd_instant_consumption": m.InstantConsumption,
		"obd_distance_total":      m.DistanceTotal,
		"obd_engine_hours":        m.EngineHours,
		"obd_check_engine":        m.CheckEngine,
		"obd_fault_count":         m.FaultCount,
		"snapshot_at":             reading.CreatedAt,
		"updated_at":              time.Now(),
	}
	if m.DistanceTotal != nil {
		updates["odometer_km"] = *m.DistanceTotal
	}

	res := r.db.WithContext(ctx).Model(&model.Vehicle{}).
		Where("uuid = ? AND (snapshot_at IS NULL OR snapshot_at <= ?)", vehicleID, reading.CreatedAt).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	// Callers serialize projections per vehicle, so this read observes the
	// row this update produced. Returning it keeps the broadcast odometer in
	// step with the committed value rather than the pre-append lookup.
	return r.FindByUID(ctx, vehicleID)
}
