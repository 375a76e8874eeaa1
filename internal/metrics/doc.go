// Package metrics converts load-test latency observations into CloudWatch metric points.
//
// The harness reports each completed request as a [LatencyRecord]: a fixed four-field
// tuple of timestamp (milliseconds since the epoch), request id, latency (nanoseconds)
// and status code. The package turns those records into [MetricPoint] values and
// groups the points into backend-sized batches.
//
// # Building Points
//
// [BuildPoints] emits exactly two points per record, in input order:
//
//	points := metrics.BuildPoints(records)
//	// points[2*i]   -> "ResultStatus-<status>", 1, Count
//	// points[2*i+1] -> "ResultLatency", latency in ms, Milliseconds
//
// Latency is converted from nanoseconds to fractional milliseconds without rounding,
// so a record with 1_500_000ns yields 1.5.
//
// # Batching
//
// CloudWatch accepts at most [MaxBatchSize] datums per PutMetricData call. [Chunk]
// splits any slice into contiguous groups no larger than that:
//
//	for _, batch := range metrics.Chunk(points, metrics.MaxBatchSize) {
//		sink.Submit(namespace, batch)
//	}
//
// An empty slice yields no groups at all.
//
// # Summaries
//
// [Summarize] computes a per-snapshot latency summary (min, max, P50, P99 and a
// status breakdown) for log output. Summaries never span snapshots.
package metrics
