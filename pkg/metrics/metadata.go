package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetadataMetrics provides observability for namespace operations.
//
// Implementations can collect metrics about namespace operations including
// lookups, inserts, removals, dentry cache performance, and open file counts.
//
// This interface is optional - if not provided to the namespace tree or a
// metadata store, operations proceed without metrics collection (zero overhead).
//
// Example usage:
//
//	// With metrics enabled
//	m := metrics.NewMetadataMetrics("badger")
//	tree, err := namespace.New(ctx, store, namespace.Options{Metrics: m})
//
//	// Without metrics (no-op)
//	tree, err := namespace.New(ctx, store, namespace.Options{})
type MetadataMetrics interface {
	// RecordOperation records a completed namespace operation with its name,
	// duration, and outcome.
	//
	// Parameters:
	//   - operation: Operation name (e.g., "Lookup", "Insert", "Children")
	//   - duration: Time taken to complete the operation
	//   - err: Error if operation failed, nil if successful
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordCacheHit records a cache hit.
	//
	// Parameters:
	//   - cacheType: Type of cache (e.g., "dentry")
	RecordCacheHit(cacheType string)

	// RecordCacheMiss records a cache miss.
	//
	// Parameters:
	//   - cacheType: Type of cache (e.g., "dentry")
	RecordCacheMiss(cacheType string)

	// SetOpenFiles updates the count of open file descriptors across all
	// sessions.
	//
	// Parameters:
	//   - count: Current number of open descriptors
	SetOpenFiles(count int64)

	// RecordStorageOperation records a low-level storage operation.
	// This is useful for database-backed stores (BadgerDB, etc.)
	//
	// Parameters:
	//   - operation: Storage operation (e.g., "get", "set", "delete", "scan")
	//   - duration: Time taken
	//   - err: Error if failed
	RecordStorageOperation(operation string, duration time.Duration, err error)
}

// metadataMetrics is the Prometheus implementation of MetadataMetrics.
type metadataMetrics struct {
	storeType          string
	operationsTotal    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	openFiles          prometheus.Gauge
	storageOpsTotal    *prometheus.CounterVec
	storageOpsDuration *prometheus.HistogramVec
}

// NewMetadataMetrics creates a new Prometheus-backed MetadataMetrics instance.
//
// Parameters:
//   - storeType: Type of metadata store (e.g., "memory", "badger")
//     Used as a label to distinguish metrics from different store implementations.
//
// Returns a no-op implementation if metrics are not enabled (Enable not called).
func NewMetadataMetrics(storeType string) MetadataMetrics {
	if !Enabled() {
		return noopMetadataMetrics{}
	}

	reg := Registry()

	return &metadataMetrics{
		storeType: storeType,
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nsfs_metadata_operations_total",
				Help: "Total number of metadata operations by store type, operation, and status",
			},
			[]string{"store_type", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nsfs_metadata_operation_duration_seconds",
				Help: "Duration of metadata operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.025,  // 25ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.25,   // 250ms
					0.5,    // 500ms
					1.0,    // 1s
				},
			},
			[]string{"store_type", "operation"},
		),
		cacheHits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nsfs_metadata_cache_hits_total",
				Help: "Total number of metadata cache hits by store type and cache type",
			},
			[]string{"store_type", "cache_type"},
		),
		cacheMisses: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nsfs_metadata_cache_misses_total",
				Help: "Total number of metadata cache misses by store type and cache type",
			},
			[]string{"store_type", "cache_type"},
		),
		openFiles: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nsfs_metadata_open_files",
				Help: "Current number of open file descriptors",
				ConstLabels: prometheus.Labels{
					"store_type": storeType,
				},
			},
		),
		storageOpsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nsfs_metadata_storage_operations_total",
				Help: "Total number of low-level storage operations (get, set, delete, scan)",
			},
			[]string{"store_type", "operation", "status"},
		),
		storageOpsDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nsfs_metadata_storage_operation_duration_seconds",
				Help: "Duration of low-level storage operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.025,  // 25ms
					0.05,   // 50ms
					0.1,    // 100ms
				},
			},
			[]string{"store_type", "operation"},
		),
	}
}

func (m *metadataMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(m.storeType, operation, status).Inc()
	m.operationDuration.WithLabelValues(m.storeType, operation).Observe(duration.Seconds())
}

func (m *metadataMetrics) RecordCacheHit(cacheType string) {
	m.cacheHits.WithLabelValues(m.storeType, cacheType).Inc()
}

func (m *metadataMetrics) RecordCacheMiss(cacheType string) {
	m.cacheMisses.WithLabelValues(m.storeType, cacheType).Inc()
}

func (m *metadataMetrics) SetOpenFiles(count int64) {
	m.openFiles.Set(float64(count))
}

func (m *metadataMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.storageOpsTotal.WithLabelValues(m.storeType, operation, status).Inc()
	m.storageOpsDuration.WithLabelValues(m.storeType, operation).Observe(duration.Seconds())
}

// noopMetadataMetrics is a no-op implementation of MetadataMetrics with zero overhead.
type noopMetadataMetrics struct{}

// NewNoopMetadataMetrics returns a MetadataMetrics that discards everything.
func NewNoopMetadataMetrics() MetadataMetrics {
	return noopMetadataMetrics{}
}

func (noopMetadataMetrics) RecordOperation(operation string, duration time.Duration, err error) {}
func (noopMetadataMetrics) RecordCacheHit(cacheType string)                                     {}
func (noopMetadataMetrics) RecordCacheMiss(cacheType string)                                    {}
func (noopMetadataMetrics) SetOpenFiles(count int64)                                            {}
func (noopMetadataMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
}
