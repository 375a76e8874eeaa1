package cloudwatch

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/torosent/crankwatch/internal/metrics"
)

// Datums converts points to SDK datums, preserving order.
func Datums(points []metrics.MetricPoint) []types.MetricDatum {
	datums := make([]types.MetricDatum, 0, len(points))
	for _, p := range points {
		datums = append(datums, types.MetricDatum{
			MetricName:        aws.String(p.Name),
			Dimensions:        []types.Dimension{},
			Timestamp:         aws.Time(p.Timestamp.UTC()),
			Value:             aws.Float64(p.Value),
			StorageResolution: aws.Int32(metrics.StorageResolution),
			Unit:              types.StandardUnit(p.Unit),
		})
	}
	return datums
}

// PutMetricDataInput assembles the request for one batch.
func PutMetricDataInput(namespace string, points []metrics.MetricPoint) *cloudwatch.PutMetricDataInput {
	return &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(namespace),
		MetricData: Datums(points),
	}
}

// Points converts datums back to points. Dimensions and storage resolution are
// not carried; every datum this package builds has none and 1 respectively.
func Points(datums []types.MetricDatum) []metrics.MetricPoint {
	points := make([]metrics.MetricPoint, 0, len(datums))
	for _, d := range datums {
		points = append(points, metrics.MetricPoint{
			Name:      aws.ToString(d.MetricName),
			Timestamp: aws.ToTime(d.Timestamp),
			Value:     aws.ToFloat64(d.Value),
			Unit:      metrics.Unit(d.Unit),
		})
	}
	return points
}
