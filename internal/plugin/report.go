package plugin

import (
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/torosent/crankwatch/internal/metrics"
)

// Record tuple positions inside a latency entry.
const (
	fieldTimestamp = iota
	fieldRequestID
	fieldLatency
	fieldStatusCode
)

// Report is a stats snapshot as delivered by the harness.
type Report struct {
	doc gjson.Result
}

// ParseReport wraps raw stats event data. Invalid JSON yields an empty report.
func ParseReport(data []byte) Report {
	if !gjson.ValidBytes(data) {
		return Report{}
	}
	return Report{doc: gjson.ParseBytes(data)}
}

// Extractor pulls latency records out of a report. ok is false when the report
// does not carry the shape the extractor understands.
type Extractor func(Report) (records []metrics.LatencyRecord, ok bool)

// FieldExtractor reads the array at the given gjson path.
func FieldExtractor(path string) Extractor {
	return func(r Report) ([]metrics.LatencyRecord, bool) {
		field := r.doc.Get(path)
		if !field.IsArray() {
			return nil, false
		}
		entries := field.Array()
		records := make([]metrics.LatencyRecord, 0, len(entries))
		for _, entry := range entries {
			records = append(records, decodeRecord(entry))
		}
		return records, true
	}
}

// DefaultExtractors cover the report shapes of current and older harness versions,
// most recent first.
func DefaultExtractors() []Extractor {
	return []Extractor{
		FieldExtractor("aggregate.latencies"),
		FieldExtractor("latencies"),
		FieldExtractor("_entries"),
	}
}

// Latencies returns the records from the first extractor that recognizes the report.
// A report nobody recognizes has no records.
func Latencies(r Report, extractors []Extractor) []metrics.LatencyRecord {
	for _, extract := range extractors {
		if records, ok := extract(r); ok {
			return records
		}
	}
	return nil
}

// decodeRecord reads [timestamp, requestId, latency, statusCode]. Missing
// positions decode as zero values.
func decodeRecord(entry gjson.Result) metrics.LatencyRecord {
	get := func(i int) gjson.Result {
		return entry.Get(strconv.Itoa(i))
	}
	return metrics.LatencyRecord{
		Timestamp:  get(fieldTimestamp).Int(),
		RequestID:  get(fieldRequestID).String(),
		Latency:    get(fieldLatency).Int(),
		StatusCode: get(fieldStatusCode).String(),
	}
}
