package cloudwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/torosent/crankwatch/internal/metrics"
)

// WriterClient prints each request as one JSON line instead of sending it.
// It backs the --dry-run mode.
type WriterClient struct {
	mu  sync.Mutex
	enc *json.Encoder
}

var _ Client = &WriterClient{}

// NewWriterClient returns a Client that writes requests to w.
func NewWriterClient(w io.Writer) *WriterClient {
	return &WriterClient{enc: json.NewEncoder(w)}
}

type wireRequest struct {
	Namespace  string                `json:"Namespace"`
	MetricData []metrics.MetricPoint `json:"MetricData"`
}

// PutMetricData writes the request and reports success.
func (w *WriterClient) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := wireRequest{
		Namespace:  aws.ToString(params.Namespace),
		MetricData: Points(params.MetricData),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}
