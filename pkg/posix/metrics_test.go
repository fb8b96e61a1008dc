package posix

import (
	"sync"
)

// recordingMetrics keeps the last outcome of every call.
type recordingMetrics struct {
	mu       sync.Mutex
	last     map[string]string
	inFlight map[string]int
	bytes    map[string]uint64
	active   int32
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		last:     make(map[string]string),
		inFlight: make(map[string]int),
		bytes:    make(map[string]uint64),
	}
}

func (m *recordingMetrics) RecordCall(operation string, _ float64, errnoName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[operation] = errnoName
}

func (m *recordingMetrics) RecordCallStart(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight[operation]++
}

func (m *recordingMetrics) RecordCallEnd(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight[operation]--
}

func (m *recordingMetrics) RecordBytesTransferred(_ string, direction string, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes[direction] += bytes
}

func (m *recordingMetrics) RecordOperationSize(string, uint64) {}

func (m *recordingMetrics) SetActiveSessions(count int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = count
}

func (m *recordingMetrics) lastErrno(op string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[op]
}

func (m *recordingMetrics) sessions() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *recordingMetrics) transferred(direction string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytes[direction]
}

func (m *recordingMetrics) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.inFlight {
		total += n
	}
	return total
}
