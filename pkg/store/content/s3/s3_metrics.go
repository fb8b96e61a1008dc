package s3

import (
	"io"
	"time"
)

// S3Metrics provides observability for S3 operations.
//
// Implementations collect operation latency, throughput, and the write
// amplification caused by rewriting whole objects for partial updates.
// Metrics are optional: a nil S3Metrics in the config selects a no-op.
type S3Metrics interface {
	// ObserveOperation records an S3 API call with its duration and outcome
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes transferred; operation is "read" or "write"
	RecordBytes(operation string, bytes int64)

	// RecordRewrite records a read-modify-write of a whole object caused by
	// a partial write or truncate. objectBytes is the size uploaded.
	RecordRewrite(reason string, objectBytes int64)

	// RecordStatsCacheHit / RecordStatsCacheMiss track GetStorageStats
	// cache effectiveness.
	RecordStatsCacheHit()
	RecordStatsCacheMiss()
}

// noopMetrics is a default no-op metrics implementation
type noopMetrics struct{}

func (noopMetrics) ObserveOperation(operation string, duration time.Duration, err error) {}
func (noopMetrics) RecordBytes(operation string, bytes int64)                            {}
func (noopMetrics) RecordRewrite(reason string, objectBytes int64)                       {}
func (noopMetrics) RecordStatsCacheHit()                                                 {}
func (noopMetrics) RecordStatsCacheMiss()                                                {}

// metricsReadCloser wraps an object body to count bytes read
type metricsReadCloser struct {
	io.ReadCloser
	metrics   S3Metrics
	operation string
	bytesRead int64
}

func (m *metricsReadCloser) Read(p []byte) (n int, err error) {
	n, err = m.ReadCloser.Read(p)
	if n > 0 {
		m.bytesRead += int64(n)
	}
	return n, err
}

func (m *metricsReadCloser) Close() error {
	err := m.ReadCloser.Close()
	if m.bytesRead > 0 {
		m.metrics.RecordBytes(m.operation, m.bytesRead)
	}
	return err
}
