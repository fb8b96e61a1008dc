package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/nsfs/pkg/metrics"
)

// posixMetrics is the Prometheus implementation of metrics.POSIXMetrics.
type posixMetrics struct {
	callsTotal       *prometheus.CounterVec
	callDuration     *prometheus.HistogramVec
	callsInFlight    *prometheus.GaugeVec
	bytesTransferred *prometheus.CounterVec
	operationSize    *prometheus.HistogramVec
	activeSessions   prometheus.Gauge
}

// NewPOSIXMetrics creates a new Prometheus-backed POSIXMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (Enable not called).
func NewPOSIXMetrics() metrics.POSIXMetrics {
	if !metrics.Enabled() {
		return metrics.NewNoopPOSIXMetrics()
	}

	reg := metrics.Registry()

	return &posixMetrics{
		callsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nsfs_posix_calls_total",
				Help: "Total number of POSIX calls by operation, status, and errno",
			},
			[]string{"operation", "status", "errno"},
		),
		callDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nsfs_posix_call_duration_milliseconds",
				Help: "Duration of POSIX calls in milliseconds",
				Buckets: []float64{
					0.01, // 10µs
					0.1,  // 100µs
					1,    // 1ms
					10,   // 10ms
					100,  // 100ms
					1000, // 1s
				},
			},
			[]string{"operation"},
		),
		callsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nsfs_posix_calls_in_flight",
				Help: "Current number of POSIX calls being served",
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nsfs_posix_bytes_transferred_total",
				Help: "Total bytes transferred by read/write calls",
			},
			[]string{"operation", "direction"},
		),
		operationSize: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nsfs_posix_operation_size_bytes",
				Help: "Distribution of read/write request sizes",
				Buckets: []float64{
					4096,     // 4KB
					65536,    // 64KB
					1048576,  // 1MB
					16777216, // 16MB
				},
			},
			[]string{"operation"},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nsfs_posix_active_sessions",
				Help: "Current number of client sessions",
			},
		),
	}
}

func (m *posixMetrics) RecordCall(operation string, durationSeconds float64, errnoName string) {
	status := "success"
	if errnoName != "" {
		status = "error"
	}

	m.callsTotal.WithLabelValues(operation, status, errnoName).Inc()
	m.callDuration.WithLabelValues(operation).Observe(durationSeconds * 1000) // Convert to milliseconds
}

func (m *posixMetrics) RecordCallStart(operation string) {
	m.callsInFlight.WithLabelValues(operation).Inc()
}

func (m *posixMetrics) RecordCallEnd(operation string) {
	m.callsInFlight.WithLabelValues(operation).Dec()
}

func (m *posixMetrics) RecordBytesTransferred(operation string, direction string, bytes uint64) {
	m.bytesTransferred.WithLabelValues(operation, direction).Add(float64(bytes))
}

func (m *posixMetrics) RecordOperationSize(operation string, bytes uint64) {
	m.operationSize.WithLabelValues(operation).Observe(float64(bytes))
}

func (m *posixMetrics) SetActiveSessions(count int32) {
	m.activeSessions.Set(float64(count))
}
