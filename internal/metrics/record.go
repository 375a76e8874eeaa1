package metrics

import (
	"time"
)

// LatencyRecord is a single request observation reported by the harness.
type LatencyRecord struct {
	Timestamp  int64  // milliseconds since the Unix epoch
	RequestID  string // opaque
	Latency    int64  // nanoseconds
	StatusCode string
}

// Time returns the record timestamp as a UTC instant.
func (r LatencyRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}

// LatencyMs converts the latency to fractional milliseconds.
func (r LatencyRecord) LatencyMs() float64 {
	return float64(r.Latency) / float64(time.Millisecond)
}
