package metrics

import (
	"encoding/json"
	"time"
)

// Unit is the CloudWatch standard unit attached to a point.
type Unit string

const (
	UnitCount        Unit = "Count"
	UnitMilliseconds Unit = "Milliseconds"
)

const (
	// StorageResolution requests high-resolution (1 second) storage for every point.
	StorageResolution = 1

	StatusMetricPrefix = "ResultStatus-"
	LatencyMetricName  = "ResultLatency"

	isoMillis = "2006-01-02T15:04:05.000Z"
)

// MetricPoint is one timestamped observation destined for the backend.
// Points carry no dimensions.
type MetricPoint struct {
	Name      string
	Timestamp time.Time
	Value     float64
	Unit      Unit
}

type wirePoint struct {
	MetricName        string     `json:"MetricName"`
	Dimensions        []struct{} `json:"Dimensions"`
	Timestamp         string     `json:"Timestamp"`
	Value             float64    `json:"Value"`
	StorageResolution int        `json:"StorageResolution"`
	Unit              Unit       `json:"Unit"`
}

// MarshalJSON renders the point in the PutMetricData wire shape.
func (p MetricPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePoint{
		MetricName:        p.Name,
		Dimensions:        []struct{}{},
		Timestamp:         FormatTimestamp(p.Timestamp),
		Value:             p.Value,
		StorageResolution: StorageResolution,
		Unit:              p.Unit,
	})
}

// FormatTimestamp renders t as an ISO-8601 UTC instant with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// BuildPoints converts records into metric points, two per record, in input order.
func BuildPoints(records []LatencyRecord) []MetricPoint {
	points := make([]MetricPoint, 0, 2*len(records))
	for _, rec := range records {
		ts := rec.Time()
		points = append(points,
			MetricPoint{
				Name:      StatusMetricPrefix + rec.StatusCode,
				Timestamp: ts,
				Value:     1,
				Unit:      UnitCount,
			},
			MetricPoint{
				Name:      LatencyMetricName,
				Timestamp: ts,
				Value:     rec.LatencyMs(),
				Unit:      UnitMilliseconds,
			},
		)
	}
	return points
}

// ErrorPoint builds the single count point reported for a harness error event.
// The identifier is used verbatim as the metric name.
func ErrorPoint(name string, now time.Time) MetricPoint {
	return MetricPoint{
		Name:      name,
		Timestamp: now.UTC(),
		Value:     1,
		Unit:      UnitCount,
	}
}
