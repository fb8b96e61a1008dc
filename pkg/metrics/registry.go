// Package metrics collects Prometheus metrics for the namespace, POSIX
// sessions and content stores, and serves them over HTTP.
//
// Collection is off until Enable is called. Before that every constructor
// returns a no-op (or nil) collector, so components take their metrics
// unconditionally:
//
//	metrics.Enable()
//	meta := metrics.NewMetadataMetrics("badger")
//	s3m := metrics.NewS3Metrics()
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry   *prometheus.Registry
	enableOnce sync.Once
)

// Enable creates the process-wide registry with the Go runtime and process
// collectors already registered. Calls after the first do nothing.
func Enable() {
	enableOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: "nsfs"}),
		)
		registry = reg
	})
}

// Registry returns the registry, or nil while collection is off.
func Registry() *prometheus.Registry {
	return registry
}

// Enabled reports whether Enable has been called.
func Enabled() bool {
	return registry != nil
}
