package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Project-Caravana/telemetry-service/internal/model"
)

// AlertFilter narrows an alert query.
type AlertFilter struct {
	VehicleID string
	CompanyID string
	Severity  model.AlertSeverity
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// AlertRepository defines the read-only interface over persisted alerts.
// Alerts are only ever written through TelemetryRepository.Append.
type AlertRepository interface {
	List(ctx context.Context, filter AlertFilter) ([]model.Alert, error)
}

// alertRepository implements AlertRepository
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// List queries alerts ordered by creation time descending.
func (r *alertRepository) List(ctx context.Context, filter AlertFilter) ([]model.Alert, error) {
	q := r.db.WithContext(ctx).Model(&model.Alert{})

	if filter.VehicleID != "" {
		q = q.Where("vehicle_id = ?", filter.VehicleID)
	}
	if filter.CompanyID != "" {
		q = q.Where("company_id = ?", filter.CompanyID)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
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

	var alerts []model.Alert
	if err := q.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
