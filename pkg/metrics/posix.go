package metrics

// POSIXMetrics provides observability for POSIX calls served by sessions.
//
// Implementations can collect metrics about call rates, latency, errno
// distribution, and data throughput. This interface is optional - if not
// provided to the file system, a no-op implementation is used with zero
// overhead.
//
// Example usage:
//
//	// With metrics enabled
//	fs, err := posix.New(tree, content, host, posix.Options{Metrics: prometheus.NewPOSIXMetrics()})
//
//	// Without metrics (no-op)
//	fs, err := posix.New(tree, content, host, posix.Options{})
type POSIXMetrics interface {
	// RecordCall records a completed call with its outcome.
	//
	// Parameters:
	//   - operation: Call name (e.g., "open", "readdir", "lseek")
	//   - duration: Time taken to serve the call
	//   - errnoName: Symbolic errno (e.g., "ENOENT"), empty on success
	RecordCall(operation string, durationSeconds float64, errnoName string)

	// RecordCallStart increments the in-flight call counter.
	RecordCallStart(operation string)

	// RecordCallEnd decrements the in-flight call counter.
	RecordCallEnd(operation string)

	// RecordBytesTransferred records bytes read or written.
	//
	// Parameters:
	//   - operation: "read", "write", "pread" or "pwrite"
	//   - direction: "read" or "write"
	//   - bytes: Number of bytes transferred
	RecordBytesTransferred(operation string, direction string, bytes uint64)

	// RecordOperationSize records the requested size of a read or write.
	RecordOperationSize(operation string, bytes uint64)

	// SetActiveSessions updates the current session count.
	SetActiveSessions(count int32)
}

// NewNoopPOSIXMetrics returns a POSIXMetrics that discards everything.
func NewNoopPOSIXMetrics() POSIXMetrics {
	return noopPOSIXMetrics{}
}

// noopPOSIXMetrics is a no-op implementation of POSIXMetrics with zero overhead.
type noopPOSIXMetrics struct{}

func (noopPOSIXMetrics) RecordCall(operation string, durationSeconds float64, errnoName string) {}
func (noopPOSIXMetrics) RecordCallStart(operation string)                                       {}
func (noopPOSIXMetrics) RecordCallEnd(operation string)                                         {}
func (noopPOSIXMetrics) RecordBytesTransferred(operation string, direction string, bytes uint64) {
}
func (noopPOSIXMetrics) RecordOperationSize(operation string, bytes uint64) {}
func (noopPOSIXMetrics) SetActiveSessions(count int32)                      {}
