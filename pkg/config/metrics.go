package config

import (
	"github.com/marmos91/nsfs/pkg/metrics"
	promMetrics "github.com/marmos91/nsfs/pkg/metrics/prometheus"
	contentS3 "github.com/marmos91/nsfs/pkg/store/content/s3"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled).
	// It is created by CreateFileSystem so /healthz and the status page can
	// reach the file system.
	Server *metrics.Server

	// POSIX is the per-call collector for sessions (never nil, uses noop if disabled)
	POSIX metrics.POSIXMetrics

	// Metadata collects namespace and metadata store metrics (never nil)
	Metadata metrics.MetadataMetrics

	// S3 collects S3 content store metrics (nil if disabled)
	S3 contentS3.S3Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Enables the process-wide Prometheus registry
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			POSIX:    metrics.NewNoopPOSIXMetrics(),
			Metadata: metrics.NewNoopMetadataMetrics(),
		}
	}

	metrics.Enable()

	return &MetricsResult{
		POSIX:    promMetrics.NewPOSIXMetrics(),
		Metadata: metrics.NewMetadataMetrics(cfg.Metadata.Type),
		S3:       metrics.NewS3Metrics(),
	}
}
