package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Project-Caravana/telemetry-service/internal/model"
	"github.com/Project-Caravana/telemetry-service/internal/repository"
)

type MockAlertRepository struct {
	mock.Mock
}

func (m *MockAlertRepository) List(ctx context.Context, filter repository.AlertFilter) ([]model.Alert, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Alert), args.Error(1)
}

func newTestQuery(vehicles *MockVehicleRepository, readings *MockTelemetryRepository, alerts *MockAlertRepository, snapshots *MockSnapshotCache) *QueryService {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewQueryService(vehicles, readings, alerts, snapshots, log)
}

func TestHistoryScopedToCompany(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	alerts := new(MockAlertRepository)
	snapshots := new(MockSnapshotCache)

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(testVehicle(), nil)

	svc := newTestQuery(vehicles, readings, alerts, snapshots)

	// A vehicle outside the caller's company is indistinguishable from a
	// vehicle that does not exist.
	_, err := svc.History(context.Background(), "veh-1", "other-company", repository.ReadingFilter{})
	require.ErrorIs(t, err, repository.ErrNotFound)
	readings.AssertNotCalled(t, "List")
}

func TestHistoryClampsPagination(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	alerts := new(MockAlertRepository)
	snapshots := new(MockSnapshotCache)

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(testVehicle(), nil)

	var captured repository.ReadingFilter
	readings.On("List", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(repository.ReadingFilter)
	}).Return([]model.TelemetryReading{}, nil)

	svc := newTestQuery(vehicles, readings, alerts, snapshots)

	_, err := svc.History(context.Background(), "veh-1", "comp-1", repository.ReadingFilter{
		Page:     -3,
		PageSize: 10000,
	})
	require.NoError(t, err)
	require.Equal(t, 1, captured.Page)
	require.Equal(t, maxPageSize, captured.PageSize)
	require.Equal(t, "veh-1", captured.VehicleID)
}

func TestAlertsPassesSeverityFilter(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	alerts := new(MockAlertRepository)
	snapshots := new(MockSnapshotCache)

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(testVehicle(), nil)

	var captured repository.AlertFilter
	alerts.On("List", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(repository.AlertFilter)
	}).Return([]model.Alert{}, nil)

	svc := newTestQuery(vehicles, readings, alerts, snapshots)

	_, err := svc.Alerts(context.Background(), "veh-1", "comp-1", repository.AlertFilter{
		Severity: model.SeverityCritical,
	})
	require.NoError(t, err)
	require.Equal(t, model.SeverityCritical, captured.Severity)
	require.Equal(t, defaultPageSize, captured.PageSize)
}

func TestSnapshotPrefersCache(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	alerts := new(MockAlertRepository)
	snapshots := new(MockSnapshotCache)

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(testVehicle(), nil)

	cachedAt := time.Now()
	cached := &model.VehicleSnapshot{
		VehicleID: "veh-1",
		Metrics:   model.Metrics{Speed: f64ptr(72)},
		UpdatedAt: &cachedAt,
	}
	snapshots.On("GetSnapshot", mock.Anything, "veh-1").Return(cached, nil)

	svc := newTestQuery(vehicles, readings, alerts, snapshots)

	snapshot, err := svc.Snapshot(context.Background(), "veh-1", "comp-1")
	require.NoError(t, err)
	require.Equal(t, 72.0, *snapshot.Metrics.Speed)
}

func TestSnapshotFallsBackToDatabaseOnMiss(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	alerts := new(MockAlertRepository)
	snapshots := new(MockSnapshotCache)

	at := time.Now()
	vehicle := testVehicle()
	vehicle.Snapshot.Speed = f64ptr(64)
	vehicle.SnapshotAt = &at

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(vehicle, nil)
	snapshots.On("GetSnapshot", mock.Anything, "veh-1").Return(nil, redis.Nil)

	svc := newTestQuery(vehicles, readings, alerts, snapshots)

	snapshot, err := svc.Snapshot(context.Background(), "veh-1", "comp-1")
	require.NoError(t, err)
	require.Equal(t, 64.0, *snapshot.Metrics.Speed)
	require.Equal(t, vehicle.OdometerKm, snapshot.OdometerKm)
}

func TestSnapshotUnknownVehicle(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	alerts := new(MockAlertRepository)
	snapshots := new(MockSnapshotCache)

	vehicles.On("FindByUID", mock.Anything, "missing").Return(nil, repository.ErrNotFound)

	svc := newTestQuery(vehicles, readings, alerts, snapshots)

	_, err := svc.Snapshot(context.Background(), "missing", "comp-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	snapshots.AssertNotCalled(t, "GetSnapshot")
}
