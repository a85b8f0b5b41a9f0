package metrics

import (
	"sync"
	"time"
)

// Counter names
const (
	CounterIngestAccepted         = "ingest_accepted_total"
	CounterIngestValidationFailed = "ingest_validation_failed_total"
	CounterIngestNotFound         = "ingest_vehicle_not_found_total"
	CounterIngestStale            = "ingest_stale_readings_total"
	CounterIngestFailed           = "ingest_failed_total"
	CounterAlertsGenerated        = "alerts_generated_total"
	CounterBroadcastPublished     = "broadcast_published_total"
	CounterBroadcastDropped       = "broadcast_dropped_total"
	CounterSubscriptions          = "broadcast_subscriptions_total"
	CounterHTTPRequests           = "http_requests_total"
	CounterHTTPRequestErrors      = "http_request_errors_total"
)

// MetricsCollector provides a centralized way to collect and retrieve metrics
type MetricsCollector struct {
	mutex     sync.RWMutex
	counters  map[string]int64
	gauges    map[string]float64
	startTime time.Time
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:  make(map[string]int64),
		gauges:    make(map[string]float64),
		startTime: time.Now(),
	}
}

// Inc increments a counter by one
func (m *MetricsCollector) Inc(name string) {
	m.Add(name, 1)
}

// Add increments a counter by delta
func (m *MetricsCollector) Add(name string, delta int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counters[name] += delta
}

// SetGauge sets a gauge value
func (m *MetricsCollector) SetGauge(name string, value float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.gauges[name] = value
}

// Count returns the current value of a counter
func (m *MetricsCollector) Count(name string) int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.counters[name]
}

// GetMetrics returns all collected metrics in a structured format
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	gauges := make(map[string]float64, len(m.gauges))
	for k, v := range m.gauges {
		gauges[k] = v
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(m.startTime).Seconds(),
		"counters":       counters,
		"gauges":         gauges,
	}
}

// Global metrics collector instance
var globalCollector *MetricsCollector
var once sync.Once

// GetMetricsCollector returns the global metrics collector instance
func GetMetricsCollector() *MetricsCollector {
	once.Do(func() {
		globalCollector = NewMetricsCollector()
	})
	return globalCollector
}
