package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Project-Caravana/telemetry-service/internal/cache"
	"github.com/Project-Caravana/telemetry-service/internal/model"
	"github.com/Project-Caravana/telemetry-service/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// QueryService serves historical readings, alerts and the live snapshot.
// All lookups are scoped to the caller's company; a vehicle outside that
// scope is indistinguishable from a vehicle that does not exist.
type QueryService struct {
	vehicles repository.VehicleRepository
	readings repository.TelemetryRepository
	alerts   repository.AlertRepository
	cache    cache.SnapshotCache
	log      *logrus.Logger
}

// NewQueryService creates the read-side service.
func NewQueryService(
	vehicles repository.VehicleRepository,
	readings repository.TelemetryRepository,
	alerts repository.AlertRepository,
	snapshots cache.SnapshotCache,
	log *logrus.Logger,
) *QueryService {
	return &QueryService{
		vehicles: vehicles,
		readings: readings,
		alerts:   alerts,
		cache:    snapshots,
		log:      log,
	}
}

func clampPaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// scopedVehicle resolves a vehicle and enforces company scoping.
func (s *QueryService) scopedVehicle(ctx context.Context, vehicleID, companyID string) (*model.Vehicle, error) {
	vehicle, err := s.vehicles.FindByUID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if companyID != "" && vehicle.CompanyID != companyID {
		return nil, repository.ErrNotFound
	}
	return vehicle, nil
}

// History returns a page of readings for a vehicle, newest first.
func (s *QueryService) History(ctx context.Context, vehicleID, companyID string, filter repository.ReadingFilter) ([]model.TelemetryReading, error) {
	if _, err := s.scopedVehicle(ctx, vehicleID, companyID); err != nil {
		return nil, err
	}
	filter.VehicleID = vehicleID
	filter.Page, filter.PageSize = clampPaging(filter.Page, filter.PageSize)
	return s.readings.List(ctx, filter)
}

// Alerts returns a page of alerts for a vehicle, newest first.
func (s *QueryService) Alerts(ctx context.Context, vehicleID, companyID string, filter repository.AlertFilter) ([]model.Alert, error) {
	if _, err := s.scopedVehicle(ctx, vehicleID, companyID); err != nil {
		return nil, err
	}
	filter.VehicleID = vehicleID
	filter.Page, filter.PageSize = clampPaging(filter.Page, filter.PageSize)
	return s.alerts.List(ctx, filter)
}

// Snapshot returns the vehicle's latest-known telemetry state, preferring
// the cache and falling back to the database on a miss.
func (s *QueryService) Snapshot(ctx context.Context, vehicleID, companyID string) (*model.VehicleSnapshot, error) {
	vehicle, err := s.scopedVehicle(ctx, vehicleID, companyID)
	if err != nil {
		return nil, err
	}

	cached, cerr := s.cache.GetSnapshot(ctx, vehicleID)
	if cerr == nil {
		return cached, nil
	}
	if !cache.IsMiss(cerr) {
		s.log.WithError(cerr).WithField("vehicle_id", vehicleID).Warn("Snapshot cache read failed")
	}

	snapshot := vehicle.SnapshotView()
	return &snapshot, nil
}
