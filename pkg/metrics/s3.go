package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/nsfs/pkg/store/content/s3"
)

// s3Metrics is the Prometheus implementation of s3.S3Metrics interface.
//
// This implementation collects metrics about S3 operations including:
//   - Operation counts and latency per API call
//   - Bytes transferred
//   - Whole-object rewrites caused by partial writes
//   - Storage stats cache effectiveness
type s3Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	rewritesTotal     *prometheus.CounterVec
	rewriteBytes      *prometheus.HistogramVec
	statsCacheHits    prometheus.Counter
	statsCacheMisses  prometheus.Counter
}

// NewS3Metrics creates a new Prometheus-backed S3Metrics instance.
//
// Returns nil if metrics are not enabled (Enable not called), which
// causes the S3 content store to use its built-in no-op implementation.
func NewS3Metrics() s3.S3Metrics {
	if !Enabled() {
		return nil
	}

	reg := Registry()

	return &s3Metrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nsfs_s3_operations_total",
				Help: "Total number of S3 operations by operation type and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nsfs_s3_operation_duration_seconds",
				Help: "Duration of S3 operations in seconds",
				Buckets: []float64{
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
					10.0,  // 10s
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nsfs_s3_bytes_transferred_total",
				Help: "Total bytes transferred in S3 operations",
			},
			[]string{"operation"}, // read or write
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nsfs_s3_errors_total",
				Help: "Total number of S3 operation errors by operation type",
			},
			[]string{"operation"},
		),
		rewritesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nsfs_s3_object_rewrites_total",
				Help: "Total number of whole-object rewrites by reason (write, truncate)",
			},
			[]string{"reason"},
		),
		rewriteBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nsfs_s3_object_rewrite_bytes",
				Help: "Size of rewritten objects in bytes",
				Buckets: []float64{
					4096,      // 4KB
					65536,     // 64KB
					524288,    // 512KB
					1048576,   // 1MB
					10485760,  // 10MB
					104857600, // 100MB
				},
			},
			[]string{"reason"},
		),
		statsCacheHits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nsfs_s3_stats_cache_hits_total",
				Help: "Total number of S3 storage stats cache hits",
			},
		),
		statsCacheMisses: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nsfs_s3_stats_cache_misses_total",
				Help: "Total number of S3 storage stats cache misses",
			},
		),
	}
}

// ObserveOperation implements s3.S3Metrics.ObserveOperation
func (m *s3Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.errorsTotal.WithLabelValues(operation).Inc()
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBytes implements s3.S3Metrics.RecordBytes
func (m *s3Metrics) RecordBytes(operation string, bytes int64) {
	m.bytesTransferred.WithLabelValues(operation).Add(float64(bytes))
}

// RecordRewrite implements s3.S3Metrics.RecordRewrite
func (m *s3Metrics) RecordRewrite(reason string, objectBytes int64) {
	m.rewritesTotal.WithLabelValues(reason).Inc()
	m.rewriteBytes.WithLabelValues(reason).Observe(float64(objectBytes))
}

// RecordStatsCacheHit implements s3.S3Metrics.RecordStatsCacheHit
func (m *s3Metrics) RecordStatsCacheHit() {
	m.statsCacheHits.Inc()
}

// RecordStatsCacheMiss implements s3.S3Metrics.RecordStatsCacheMiss
func (m *s3Metrics) RecordStatsCacheMiss() {
	m.statsCacheMisses.Inc()
}
