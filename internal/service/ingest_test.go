package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Project-Caravana/telemetry-service/internal/model"
	"github.com/Project-Caravana/telemetry-service/internal/repository"
)

func f64ptr(v float64) *float64 { return &v }

// Mock repositories for testing
type MockVehicleRepository struct {
	mock.Mock
}

func (m *MockVehicleRepository) FindByUID(ctx context.Context, uid string) (*model.Vehicle, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) ProjectSnapshot(ctx context.Context, vehicleID string, reading *model.TelemetryReading) (*model.Vehicle, error) {
	args := m.Called(ctx, vehicleID, reading)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) Create(ctx context.Context, vehicle *model.Vehicle) error {
	args := m.Called(ctx, vehicle)
	return args.Error(0)
}

type MockTelemetryRepository struct {
	mock.Mock
}

func (m *MockTelemetryRepository) Append(ctx context.Context, reading *model.TelemetryReading) error {
	args := m.Called(ctx, reading)
	return args.Error(0)
}

func (m *MockTelemetryRepository) List(ctx context.Context, filter repository.ReadingFilter) ([]model.TelemetryReading, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TelemetryReading), args.Error(1)
}

type MockSnapshotCache struct {
	mock.Mock
}

func (m *MockSnapshotCache) GetSnapshot(ctx context.Context, vehicleID string) (*model.VehicleSnapshot, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VehicleSnapshot), args.Error(1)
}

func (m *MockSnapshotCache) SetSnapshot(ctx context.Context, snapshot *model.VehicleSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockSnapshotCache) DeleteSnapshot(ctx context.Context, vehicleID string) error {
	args := m.Called(ctx, vehicleID)
	return args.Error(0)
}

func (m *MockSnapshotCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Publish(vehicleID string, message []byte) {
	m.Called(vehicleID, message)
}

type MockBusClient struct {
	mock.Mock
	published chan struct{}
}

func (m *MockBusClient) PublishMessage(ctx context.Context, message interface{}, queueName string) error {
	args := m.Called(ctx, message, queueName)
	if m.published != nil {
		m.published <- struct{}{}
	}
	return args.Error(0)
}

func (m *MockBusClient) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func testVehicle() *model.Vehicle {
	employee := "emp-1"
	return &model.Vehicle{
		Base:       model.Base{UUID: "veh-1"},
		Plate:      "AA-12-BB",
		CompanyID:  "comp-1",
		EmployeeID: &employee,
		Status:     model.VehicleInUse,
		OdometerKm: 42000,
	}
}

// projectedVehicle is what ProjectSnapshot returns after a winning CAS: the
// vehicle row with the reading's metrics committed onto it.
func projectedVehicle(base *model.Vehicle, m model.Metrics, at time.Time) *model.Vehicle {
	v := *base
	v.Snapshot = m
	v.SnapshotAt = &at
	if m.DistanceTotal != nil {
		v.OdometerKm = *m.DistanceTotal
	}
	return &v
}

func newTestIngest(vehicles *MockVehicleRepository, readings *MockTelemetryRepository, snapshots *MockSnapshotCache, hub *MockBroadcaster, bus *MockBusClient) *IngestService {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewIngestService(vehicles, readings, snapshots, hub, bus, "fleet-alerts", log)
}

func TestIngestHappyPath(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	snapshots := new(MockSnapshotCache)
	hub := new(MockBroadcaster)
	bus := new(MockBusClient)

	committed := model.Metrics{
		Speed:         f64ptr(80),
		RPM:           f64ptr(2500),
		Temperature:   f64ptr(90),
		FuelLevel:     f64ptr(55),
		DistanceTotal: f64ptr(42010),
	}
	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(testVehicle(), nil)
	readings.On("Append", mock.Anything, mock.AnythingOfType("*model.TelemetryReading")).Return(nil)
	vehicles.On("ProjectSnapshot", mock.Anything, "veh-1", mock.Anything).
		Return(projectedVehicle(testVehicle(), committed, time.Now()), nil)
	snapshots.On("SetSnapshot", mock.Anything, mock.Anything).Return(nil)
	hub.On("Publish", "veh-1", mock.Anything).Once()

	svc := newTestIngest(vehicles, readings, snapshots, hub, bus)

	payload := &TelemetryPayload{
		Velocidade:          f64ptr(80),
		RPM:                 f64ptr(2500),
		Temperatura:         f64ptr(90),
		NivelCombustivel:    f64ptr(55),
		DistanciaPercorrida: f64ptr(42010),
	}

	result, err := svc.Ingest(context.Background(), "veh-1", payload)
	require.NoError(t, err)
	require.False(t, result.Stale)
	require.Empty(t, result.Reading.Alerts)
	require.Equal(t, "veh-1", result.Snapshot.VehicleID)
	require.Equal(t, 42010.0, result.Snapshot.OdometerKm)
	require.Equal(t, "emp-1", *result.Reading.EmployeeID)

	vehicles.AssertExpectations(t)
	readings.AssertExpectations(t)
	hub.AssertExpectations(t)
	bus.AssertNotCalled(t, "PublishMessage")
}

func TestIngestBroadcastPayloadShape(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	snapshots := new(MockSnapshotCache)
	hub := new(MockBroadcaster)
	bus := new(MockBusClient)

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(testVehicle(), nil)
	readings.On("Append", mock.Anything, mock.Anything).Return(nil)
	vehicles.On("ProjectSnapshot", mock.Anything, "veh-1", mock.Anything).
		Return(projectedVehicle(testVehicle(), model.Metrics{Speed: f64ptr(60)}, time.Now()), nil)
	snapshots.On("SetSnapshot", mock.Anything, mock.Anything).Return(nil)

	var published []byte
	hub.On("Publish", "veh-1", mock.Anything).Run(func(args mock.Arguments) {
		published = args.Get(1).([]byte)
	})

	svc := newTestIngest(vehicles, readings, snapshots, hub, bus)

	_, err := svc.Ingest(context.Background(), "veh-1", &TelemetryPayload{Velocidade: f64ptr(60)})
	require.NoError(t, err)
	require.NotNil(t, published)

	var update SnapshotUpdate
	require.NoError(t, json.Unmarshal(published, &update))
	require.Equal(t, "telemetry:updated", update.Event)
	require.Equal(t, "veh-1", update.VehicleID)
	require.Equal(t, 60.0, *update.Snapshot.Speed)
}

func TestIngestStaleReadingIsPersistedButNotBroadcast(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	snapshots := new(MockSnapshotCache)
	hub := new(MockBroadcaster)
	bus := new(MockBusClient)

	newer := time.Now()
	current := testVehicle()
	current.SnapshotAt = &newer
	current.Snapshot.Speed = f64ptr(95)

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(current, nil)
	readings.On("Append", mock.Anything, mock.Anything).Return(nil)
	vehicles.On("ProjectSnapshot", mock.Anything, "veh-1", mock.Anything).Return(nil, nil)

	svc := newTestIngest(vehicles, readings, snapshots, hub, bus)

	result, err := svc.Ingest(context.Background(), "veh-1", &TelemetryPayload{Velocidade: f64ptr(50)})
	require.NoError(t, err)
	require.True(t, result.Stale)

	// The device sees the snapshot that beat it in, not its own values.
	require.Equal(t, 95.0, *result.Snapshot.Metrics.Speed)

	readings.AssertExpectations(t)
	hub.AssertNotCalled(t, "Publish")
	snapshots.AssertNotCalled(t, "SetSnapshot")
}

func TestIngestValidationFailureSkipsPersistence(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	snapshots := new(MockSnapshotCache)
	hub := new(MockBroadcaster)
	bus := new(MockBusClient)

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(testVehicle(), nil)

	svc := newTestIngest(vehicles, readings, snapshots, hub, bus)

	_, err := svc.Ingest(context.Background(), "veh-1", &TelemetryPayload{Velocidade: f64ptr(400)})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	readings.AssertNotCalled(t, "Append")
	hub.AssertNotCalled(t, "Publish")
}

func TestIngestUnknownVehicle(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	snapshots := new(MockSnapshotCache)
	hub := new(MockBroadcaster)
	bus := new(MockBusClient)

	vehicles.On("FindByUID", mock.Anything, "missing").Return(nil, repository.ErrNotFound)

	svc := newTestIngest(vehicles, readings, snapshots, hub, bus)

	_, err := svc.Ingest(context.Background(), "missing", &TelemetryPayload{})
	require.ErrorIs(t, err, repository.ErrNotFound)
	readings.AssertNotCalled(t, "Append")
}

func TestIngestPersistenceFailureSkipsBroadcast(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	snapshots := new(MockSnapshotCache)
	hub := new(MockBroadcaster)
	bus := new(MockBusClient)

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(testVehicle(), nil)
	readings.On("Append", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	svc := newTestIngest(vehicles, readings, snapshots, hub, bus)

	_, err := svc.Ingest(context.Background(), "veh-1", &TelemetryPayload{Velocidade: f64ptr(60)})
	require.Error(t, err)
	vehicles.AssertNotCalled(t, "ProjectSnapshot")
	hub.AssertNotCalled(t, "Publish")
}

func TestIngestCacheFailureDoesNotFailRequest(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	snapshots := new(MockSnapshotCache)
	hub := new(MockBroadcaster)
	bus := new(MockBusClient)

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(testVehicle(), nil)
	readings.On("Append", mock.Anything, mock.Anything).Return(nil)
	vehicles.On("ProjectSnapshot", mock.Anything, "veh-1", mock.Anything).
		Return(projectedVehicle(testVehicle(), model.Metrics{Speed: f64ptr(60)}, time.Now()), nil)
	snapshots.On("SetSnapshot", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	hub.On("Publish", "veh-1", mock.Anything).Once()

	svc := newTestIngest(vehicles, readings, snapshots, hub, bus)

	result, err := svc.Ingest(context.Background(), "veh-1", &TelemetryPayload{Velocidade: f64ptr(60)})
	require.NoError(t, err)
	require.False(t, result.Stale)
	hub.AssertExpectations(t)
}

func TestIngestCriticalAlertsForwardedToQueue(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	snapshots := new(MockSnapshotCache)
	hub := new(MockBroadcaster)
	bus := &MockBusClient{published: make(chan struct{}, 4)}

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(testVehicle(), nil)
	readings.On("Append", mock.Anything, mock.Anything).Return(nil)
	vehicles.On("ProjectSnapshot", mock.Anything, "veh-1", mock.Anything).
		Return(projectedVehicle(testVehicle(), model.Metrics{Speed: f64ptr(150), Temperature: f64ptr(105)}, time.Now()), nil)
	snapshots.On("SetSnapshot", mock.Anything, mock.Anything).Return(nil)
	hub.On("Publish", "veh-1", mock.Anything)
	bus.On("PublishMessage", mock.Anything, mock.AnythingOfType("model.Alert"), "fleet-alerts").Return(nil)

	svc := newTestIngest(vehicles, readings, snapshots, hub, bus)

	// Speed 150 raises a critical alert; temperature 105 a high one. Only
	// the critical alert goes to the queue.
	result, err := svc.Ingest(context.Background(), "veh-1", &TelemetryPayload{
		Velocidade:  f64ptr(150),
		Temperatura: f64ptr(105),
	})
	require.NoError(t, err)
	require.Len(t, result.Reading.Alerts, 2)

	select {
	case <-bus.published:
	case <-time.After(2 * time.Second):
		t.Fatal("critical alert was not published to the queue")
	}
	bus.AssertNumberOfCalls(t, "PublishMessage", 1)
}

func TestIngestBroadcastsCommittedOdometer(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	snapshots := new(MockSnapshotCache)
	hub := new(MockBroadcaster)
	bus := new(MockBusClient)

	// The lookup sees an odometer of 42000, but by the time this reading's
	// projection commits, a concurrent reading with a distance update has
	// already advanced the row to 42500. The broadcast must carry the
	// committed value, never the stale lookup.
	lookedUp := testVehicle()
	lookedUp.OdometerKm = 42000

	committedRow := testVehicle()
	committedRow.OdometerKm = 42500
	committedRow.Snapshot = model.Metrics{Speed: f64ptr(70)}
	at := time.Now()
	committedRow.SnapshotAt = &at

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(lookedUp, nil)
	readings.On("Append", mock.Anything, mock.Anything).Return(nil)
	vehicles.On("ProjectSnapshot", mock.Anything, "veh-1", mock.Anything).Return(committedRow, nil)

	var cachedSnapshot *model.VehicleSnapshot
	snapshots.On("SetSnapshot", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		cachedSnapshot = args.Get(1).(*model.VehicleSnapshot)
	}).Return(nil)

	var published []byte
	hub.On("Publish", "veh-1", mock.Anything).Run(func(args mock.Arguments) {
		published = args.Get(1).([]byte)
	})

	svc := newTestIngest(vehicles, readings, snapshots, hub, bus)

	// The reading itself carries no distance update.
	result, err := svc.Ingest(context.Background(), "veh-1", &TelemetryPayload{Velocidade: f64ptr(70)})
	require.NoError(t, err)
	require.Equal(t, 42500.0, result.Snapshot.OdometerKm)
	require.Equal(t, 42500.0, cachedSnapshot.OdometerKm)

	var update SnapshotUpdate
	require.NoError(t, json.Unmarshal(published, &update))
	require.Equal(t, 42500.0, update.OdometerKm)
}

func TestIngestStaleReadBackFailureStillSucceeds(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	snapshots := new(MockSnapshotCache)
	hub := new(MockBroadcaster)
	bus := new(MockBusClient)

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(testVehicle(), nil).Once()
	readings.On("Append", mock.Anything, mock.Anything).Return(nil)
	vehicles.On("ProjectSnapshot", mock.Anything, "veh-1", mock.Anything).Return(nil, nil)
	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(nil, errors.New("connection reset")).Once()

	svc := newTestIngest(vehicles, readings, snapshots, hub, bus)

	// The reading is durable by the time the re-read fails; the device must
	// still get a success with the stale flag set.
	result, err := svc.Ingest(context.Background(), "veh-1", &TelemetryPayload{Velocidade: f64ptr(50)})
	require.NoError(t, err)
	require.True(t, result.Stale)
	require.Equal(t, 50.0, *result.Snapshot.Metrics.Speed)
	hub.AssertNotCalled(t, "Publish")
}

func TestIngestConcurrentVehiclesNoCrossTalk(t *testing.T) {
	vehicles := new(MockVehicleRepository)
	readings := new(MockTelemetryRepository)
	snapshots := new(MockSnapshotCache)
	hub := new(MockBroadcaster)
	bus := new(MockBusClient)

	vehicleA := testVehicle()
	vehicleB := testVehicle()
	vehicleB.UUID = "veh-2"

	vehicles.On("FindByUID", mock.Anything, "veh-1").Return(vehicleA, nil)
	vehicles.On("FindByUID", mock.Anything, "veh-2").Return(vehicleB, nil)
	readings.On("Append", mock.Anything, mock.Anything).Return(nil)
	vehicles.On("ProjectSnapshot", mock.Anything, "veh-1", mock.Anything).
		Return(projectedVehicle(vehicleA, model.Metrics{Speed: f64ptr(30)}, time.Now()), nil)
	vehicles.On("ProjectSnapshot", mock.Anything, "veh-2", mock.Anything).
		Return(projectedVehicle(vehicleB, model.Metrics{Speed: f64ptr(60)}, time.Now()), nil)
	snapshots.On("SetSnapshot", mock.Anything, mock.Anything).Return(nil)

	var mu sync.Mutex
	received := map[string][]float64{}
	hub.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		var update SnapshotUpdate
		require.NoError(t, json.Unmarshal(args.Get(1).([]byte), &update))
		mu.Lock()
		received[update.VehicleID] = append(received[update.VehicleID], *update.Snapshot.Speed)
		mu.Unlock()
	})

	svc := newTestIngest(vehicles, readings, snapshots, hub, bus)

	const perVehicle = 10
	var wg sync.WaitGroup
	for i := 0; i < perVehicle; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), "veh-1", &TelemetryPayload{Velocidade: f64ptr(30)})
			require.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), "veh-2", &TelemetryPayload{Velocidade: f64ptr(60)})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, received["veh-1"], perVehicle)
	require.Len(t, received["veh-2"], perVehicle)
	for _, speed := range received["veh-1"] {
		require.Equal(t, 30.0, speed)
	}
	for _, speed := range received["veh-2"] {
		require.Equal(t, 60.0, speed)
	}
}
