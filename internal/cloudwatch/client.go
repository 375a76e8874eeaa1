// Package cloudwatch delivers metric batches to Amazon CloudWatch.
package cloudwatch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

// Client is the subset of the CloudWatch API the sink needs.
type Client interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ Client = &cloudwatch.Client{}

// ClientConfig selects where the client sends data. Empty fields defer to the
// SDK's default resolution chain (environment, shared config, IMDS).
type ClientConfig struct {
	Region   string
	Endpoint string
}

// NewClient builds a CloudWatch client from the ambient AWS environment.
func NewClient(ctx context.Context, cfg ClientConfig) (*cloudwatch.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(&http.Client{Transport: http.DefaultTransport}),
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
