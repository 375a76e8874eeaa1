package clientmetrics

import (
	"sync"
	"time"
)

// StreamMetrics tracks what an event source has read from the harness.
type StreamMetrics struct {
	mu           sync.Mutex
	connectTime  time.Time
	eventsRecv   int64
	bytesRecv    int64
	decodeErrors int64
	errors       int64
}

// New creates a new StreamMetrics instance.
func New() *StreamMetrics {
	return &StreamMetrics{}
}

// MarkConnected records the connection time.
func (m *StreamMetrics) MarkConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectTime = time.Now()
}

// IncrementReceived counts one delivered event of the given raw size.
func (m *StreamMetrics) IncrementReceived(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsRecv++
	m.bytesRecv += bytes
}

// IncrementDecodeErrors counts a message that could not be turned into an event.
func (m *StreamMetrics) IncrementDecodeErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decodeErrors++
}

// IncrementErrors counts a transport failure.
func (m *StreamMetrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	ConnectionDuration time.Duration
	EventsReceived     int64
	BytesReceived      int64
	DecodeErrors       int64
	Errors             int64
}

// Snapshot returns a consistent snapshot of all counters. A nil receiver yields zeros.
func (m *StreamMetrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := time.Duration(0)
	if !m.connectTime.IsZero() {
		duration = time.Since(m.connectTime)
	}

	return Snapshot{
		ConnectionDuration: duration,
		EventsReceived:     m.eventsRecv,
		BytesReceived:      m.bytesRecv,
		DecodeErrors:       m.decodeErrors,
		Errors:             m.errors,
	}
}
