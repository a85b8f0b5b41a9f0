package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Project-Caravana/telemetry-service/internal/model"
)

// ReadingFilter narrows a historical reading query. Exactly one of the
// scoping fields is usually set; time bounds and pagination are optional.
type ReadingFilter struct {
	VehicleID  string
	CompanyID  string
	EmployeeID string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// TelemetryRepository defines the interface for the append-only reading store
type TelemetryRepository interface {
	Append(ctx context.Context, reading *model.TelemetryReading) error
	List(ctx context.Context, filter ReadingFilter) ([]model.TelemetryReading, error)
}

// telemetryRepository implements TelemetryRepository
type telemetryRepository struct {
	db *gorm.DB
}

// NewTelemetryRepository creates a new telemetry repository
func NewTelemetryRepository(db *gorm.DB) TelemetryRepository {
	return &telemetryRepository{db: db}
}

// Append durably persists a reading and its derived alerts in a single
// transaction. Readings are never updated or deleted afterwards.
func (r *telemetryRepository) Append(ctx context.Context, reading *model.TelemetryReading) error {
	if reading.UUID == "" {
		reading.UUID = uuid.New().String()
	}
	for i := range reading.Alerts {
		if reading.Alerts[i].UUID == "" {
			reading.Alerts[i].UUID = uuid.New().String()
		}
		reading.Alerts[i].ReadingID = reading.UUID
		reading.Alerts[i].VehicleID = reading.VehicleID
		reading.Alerts[i].CompanyID = reading.CompanyID
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(reading).Error; err != nil {
			return err
		}
		if len(reading.Alerts) > 0 {
			if err := tx.Create(reading.Alerts).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// List queries readings ordered by creation time descending.
func (r *telemetryRepository) List(ctx context.Context, filter ReadingFilter) ([]model.TelemetryReading, error) {
	q := r.db.WithContext(ctx).Model(&model.TelemetryReading{})

	if filter.VehicleID != "" {
		q = q.Where("vehicle_id = ?", filter.VehicleID)
	}
	if filter.CompanyID != "" {
		q = q.Where("company_id = ?", filter.CompanyID)
	}
	if filter.EmployeeID != "" {
		q = q.Where("employee_id = ?", filter.EmployeeID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		q = q.Offset(offset).Limit(filter.PageSize)
	}

	var readings []model.TelemetryReading
	err := q.
		Preload("Alerts", func(db *gorm.DB) *gorm.DB {
			return db.Order("alerts.created_at DESC")
		}).
		Order("created_at DESC").
		Find(&readings).Error
	if err != nil {
		return nil, err
	}
	return readings, nil
}
