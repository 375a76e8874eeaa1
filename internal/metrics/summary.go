package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Summary describes one stats snapshot as it was exported.
type Summary struct {
	Records      int            `json:"records"`
	Points       int            `json:"points"`
	Batches      int            `json:"batches"`
	MinLatencyMs float64        `json:"min_latency_ms"`
	MaxLatencyMs float64        `json:"max_latency_ms"`
	P50LatencyMs float64        `json:"p50_latency_ms"`
	P99LatencyMs float64        `json:"p99_latency_ms"`
	Statuses     map[string]int `json:"statuses,omitempty"`
}

// Summarize computes the latency distribution of a single snapshot.
// batchSize is the chunk size used for submission; non-positive means MaxBatchSize.
func Summarize(records []LatencyRecord, batchSize int) Summary {
	if batchSize <= 0 {
		batchSize = MaxBatchSize
	}
	points := 2 * len(records)
	s := Summary{
		Records: len(records),
		Points:  points,
		Batches: (points + batchSize - 1) / batchSize,
	}
	if len(records) == 0 {
		return s
	}

	// Track latencies from 1µs up to 60s with 3 significant figures.
	hist := hdrhistogram.New(1, 60_000_000, 3)
	var minLatency, maxLatency time.Duration
	s.Statuses = make(map[string]int)

	for i, rec := range records {
		latency := time.Duration(rec.Latency)
		if i == 0 || latency < minLatency {
			minLatency = latency
		}
		if latency > maxLatency {
			maxLatency = latency
		}
		if latency > 0 {
			us := latency.Microseconds()
			if us < hist.LowestTrackableValue() {
				us = hist.LowestTrackableValue()
			}
			if us > hist.HighestTrackableValue() {
				us = hist.HighestTrackableValue()
			}
			_ = hist.RecordValue(us)
		}
		s.Statuses[rec.StatusCode]++
	}

	s.MinLatencyMs = float64(minLatency) / float64(time.Millisecond)
	s.MaxLatencyMs = float64(maxLatency) / float64(time.Millisecond)
	if hist.TotalCount() > 0 {
		s.P50LatencyMs = quantileMs(hist, 50, minLatency, maxLatency)
		s.P99LatencyMs = quantileMs(hist, 99, minLatency, maxLatency)
	}
	return s
}

// quantileMs reads a quantile and keeps it within the observed range. Bucket
// rounding and the 1µs floor can otherwise push it past the true extremes.
func quantileMs(hist *hdrhistogram.Histogram, q float64, lo, hi time.Duration) float64 {
	v := time.Duration(hist.ValueAtQuantile(q)) * time.Microsecond
	v = max(lo, min(v, hi))
	return float64(v) / float64(time.Millisecond)
}
