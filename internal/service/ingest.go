package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Project-Caravana/telemetry-service/internal/alerts"
	"github.com/Project-Caravana/telemetry-service/internal/cache"
	"github.com/Project-Caravana/telemetry-service/internal/messagebus"
	"github.com/Project-Caravana/telemetry-service/internal/metrics"
	"github.com/Project-Caravana/telemetry-service/internal/model"
	"github.com/Project-Caravana/telemetry-service/internal/repository"
)

// Broadcaster pushes a committed snapshot update to live subscribers.
type Broadcaster interface {
	Publish(vehicleID string, message []byte)
}

// SnapshotUpdate is the event pushed to websocket subscribers after a reading
// commits and wins the snapshot race.
type SnapshotUpdate struct {
	Event      string        `json:"event"`
	VehicleID  string        `json:"vehicleId"`
	Snapshot   model.Metrics `json:"snapshot"`
	OdometerKm float64       `json:"odometer"`
	Alerts     []model.Alert `json:"alerts,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// IngestResult is what the ingestion returns to the submitting device: the
// stored reading, whatever alerts it raised, and the vehicle's snapshot
// after projection. On a stale reading the snapshot is the newer state that
// beat this reading in.
type IngestResult struct {
	Reading  *model.TelemetryReading
	Snapshot model.VehicleSnapshot
	Stale    bool
}

// IngestService runs the ingestion pipeline: validate, evaluate alerts,
// persist, project the snapshot, then fan out.
type IngestService struct {
	vehicles   repository.VehicleRepository
	readings   repository.TelemetryRepository
	cache      cache.SnapshotCache
	hub        Broadcaster
	bus        messagebus.Client
	alertQueue string
	log        *logrus.Logger
	metrics    *metrics.MetricsCollector

	// vehicleLocks serializes project+publish per vehicle so broadcast order
	// matches snapshot commit order. Persistence stays outside the lock.
	vehicleLocks sync.Map
}

// NewIngestService creates the ingestion pipeline service.
func NewIngestService(
	vehicles repository.VehicleRepository,
	readings repository.TelemetryRepository,
	snapshots cache.SnapshotCache,
	hub Broadcaster,
	bus messagebus.Client,
	alertQueue string,
	log *logrus.Logger,
) *IngestService {
	return &IngestService{
		vehicles:   vehicles,
		readings:   readings,
		cache:      snapshots,
		hub:        hub,
		bus:        bus,
		alertQueue: alertQueue,
		log:        log,
		metrics:    metrics.GetMetricsCollector(),
	}
}

func (s *IngestService) lockVehicle(vehicleID string) *sync.Mutex {
	mu, _ := s.vehicleLocks.LoadOrStore(vehicleID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Ingest processes one telemetry submission end to end. The reading is
// persisted with its alerts even when it loses the snapshot race; a stale
// reading is a normal outcome, not an error.
func (s *IngestService) Ingest(ctx context.Context, vehicleID string, payload *TelemetryPayload) (*IngestResult, error) {
	vehicle, err := s.vehicles.FindByUID(ctx, vehicleID)
	if err != nil {
		if err == repository.ErrNotFound {
			s.metrics.Inc(metrics.CounterIngestNotFound)
		}
		return nil, err
	}

	if err := payload.Validate(); err != nil {
		s.metrics.Inc(metrics.CounterIngestValidationFailed)
		return nil, err
	}

	now := time.Now().UTC()
	reading := payload.toReading(vehicle, now)
	reading.Alerts = alerts.Evaluate(reading.Metrics, now)

	if err := s.readings.Append(ctx, reading); err != nil {
		s.metrics.Inc(metrics.CounterIngestFailed)
		return nil, fmt.Errorf("appending reading for vehicle %s: %w", vehicleID, err)
	}
	s.metrics.Inc(metrics.CounterIngestAccepted)
	if n := len(reading.Alerts); n > 0 {
		s.metrics.Add(metrics.CounterAlertsGenerated, int64(n))
		s.log.WithFields(logrus.Fields{
			"vehicle_id": vehicleID,
			"reading_id": reading.UUID,
			"alerts":     n,
		}).Warn("Telemetry reading raised alerts")
	}

	mu := s.lockVehicle(vehicleID)
	mu.Lock()
	updated, err := s.vehicles.ProjectSnapshot(ctx, vehicleID, reading)
	if err != nil {
		mu.Unlock()
		s.metrics.Inc(metrics.CounterIngestFailed)
		return nil, fmt.Errorf("projecting snapshot for vehicle %s: %w", vehicleID, err)
	}

	if updated == nil {
		mu.Unlock()
		s.metrics.Inc(metrics.CounterIngestStale)
		s.publishAlerts(vehicleID, reading)
		// Return the state that beat us in, so the device sees the truth.
		current, ferr := s.vehicles.FindByUID(ctx, vehicleID)
		if ferr != nil {
			// The reading is already durable; a failed read-back must not
			// turn the request into an error.
			s.log.WithError(ferr).WithField("vehicle_id", vehicleID).Warn("Failed to re-read snapshot after stale projection")
			fallback := model.VehicleSnapshot{
				VehicleID:  vehicleID,
				Metrics:    reading.Metrics,
				OdometerKm: vehicle.OdometerKm,
				UpdatedAt:  &reading.CreatedAt,
			}
			return &IngestResult{Reading: reading, Snapshot: fallback, Stale: true}, nil
		}
		return &IngestResult{Reading: reading, Snapshot: current.SnapshotView(), Stale: true}, nil
	}

	// Snapshot comes from the committed row so the odometer cannot run
	// behind a concurrent reading that carried a distance update.
	snapshot := updated.SnapshotView()

	if cerr := s.cache.SetSnapshot(ctx, &snapshot); cerr != nil {
		s.log.WithError(cerr).WithField("vehicle_id", vehicleID).Warn("Failed to cache snapshot")
	}
	s.broadcast(vehicleID, &snapshot, reading)
	mu.Unlock()

	s.publishAlerts(vehicleID, reading)

	return &IngestResult{Reading: reading, Snapshot: snapshot, Stale: false}, nil
}

// broadcast pushes the committed update onto the vehicle's live topic.
// Called with the vehicle lock held so ordering follows commit order.
func (s *IngestService) broadcast(vehicleID string, snapshot *model.VehicleSnapshot, reading *model.TelemetryReading) {
	update := SnapshotUpdate{
		Event:      "telemetry:updated",
		VehicleID:  vehicleID,
		Snapshot:   snapshot.Metrics,
		OdometerKm: snapshot.OdometerKm,
		Alerts:     reading.Alerts,
		UpdatedAt:  reading.CreatedAt,
	}
	body, err := json.Marshal(update)
	if err != nil {
		s.log.WithError(err).Error("Failed to marshal snapshot update")
		return
	}
	s.hub.Publish(vehicleID, body)
}

// publishAlerts forwards critical alerts to the fleet alert queue. Delivery
// is best effort and never blocks or fails the ingestion response.
func (s *IngestService) publishAlerts(vehicleID string, reading *model.TelemetryReading) {
	var critical []model.Alert
	for _, a := range reading.Alerts {
		if a.Severity == model.SeverityCritical {
			critical = append(critical, a)
		}
	}
	if len(critical) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, alert := range critical {
			if err := s.bus.PublishMessage(ctx, alert, s.alertQueue); err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{
					"vehicle_id": vehicleID,
					"alert_type": alert.Type,
				}).Error("Failed to publish critical alert")
			}
		}
	}()
}
