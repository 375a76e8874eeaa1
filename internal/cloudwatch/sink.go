package cloudwatch

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/smithy-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/torosent/crankwatch/internal/metrics"
	"github.com/torosent/crankwatch/internal/tracing"
)

// SinkOptions tunes a Sink. Zero values are usable.
type SinkOptions struct {
	Logger logrus.FieldLogger
	Tracer trace.Tracer
	// RatePerSecond caps PutMetricData calls per second; 0 means unlimited.
	RatePerSecond float64
	// Registerer receives the sink's counters; nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// Sink submits batches without blocking the caller. Every Submit starts its own
// request; outcomes are logged and counted, never returned.
type Sink struct {
	client  Client
	log     logrus.FieldLogger
	tracer  trace.Tracer
	limiter *rate.Limiter
	wg      sync.WaitGroup

	batchesSubmitted *prometheus.CounterVec
	batchesFailed    *prometheus.CounterVec
	pointsSubmitted  *prometheus.CounterVec
}

// NewSink wraps client.
func NewSink(client Client, opts SinkOptions) *Sink {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("crankwatch")
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	s := &Sink{
		client:  client,
		log:     opts.Logger.WithField("component", "cloudwatch-sink"),
		tracer:  opts.Tracer,
		limiter: limiter,
		batchesSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crankwatch_batches_submitted_total",
				Help: "number of PutMetricData calls that succeeded, by namespace",
			},
			[]string{"namespace"},
		),
		batchesFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crankwatch_batches_failed_total",
				Help: "number of PutMetricData calls that failed, by namespace and error code",
			},
			[]string{"namespace", "code"},
		),
		pointsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crankwatch_points_submitted_total",
				Help: "number of metric points accepted by CloudWatch, by namespace",
			},
			[]string{"namespace"},
		),
	}
	if opts.Registerer != nil {
		opts.Registerer.MustRegister(s.batchesSubmitted, s.batchesFailed, s.pointsSubmitted)
	}
	return s
}

// Submit hands batch to the backend and returns immediately. The batch is
// copied, so callers may reuse it. Batches larger than metrics.MaxBatchSize
// are split; each part is an independent request.
func (s *Sink) Submit(namespace string, batch []metrics.MetricPoint) {
	if len(batch) == 0 {
		return
	}
	owned := make([]metrics.MetricPoint, len(batch))
	copy(owned, batch)

	for _, chunk := range metrics.Chunk(owned, metrics.MaxBatchSize) {
		s.wg.Add(1)
		go func(points []metrics.MetricPoint) {
			defer s.wg.Done()
			s.put(context.Background(), namespace, points)
		}(chunk)
	}
}

func (s *Sink) put(ctx context.Context, namespace string, points []metrics.MetricPoint) {
	if err := s.limiter.Wait(ctx); err != nil {
		s.fail(namespace, len(points), err)
		return
	}

	ctx, span := tracing.StartSubmitSpan(ctx, s.tracer, namespace, len(points))
	_, err := s.client.PutMetricData(ctx, PutMetricDataInput(namespace, points))
	if err != nil {
		tracing.EndSpan(span, err, attribute.String("aws.error.code", errorCode(err)))
		s.fail(namespace, len(points), err)
		return
	}
	tracing.EndSpan(span, nil)

	s.batchesSubmitted.WithLabelValues(namespace).Inc()
	s.pointsSubmitted.WithLabelValues(namespace).Add(float64(len(points)))
	s.log.WithFields(logrus.Fields{
		"namespace": namespace,
		"points":    len(points),
	}).Debug("PutMetricData succeeded")
}

func (s *Sink) fail(namespace string, points int, err error) {
	code := errorCode(err)
	s.batchesFailed.WithLabelValues(namespace, code).Inc()
	s.log.WithError(err).WithFields(logrus.Fields{
		"namespace": namespace,
		"points":    points,
		"code":      code,
	}).Error("Error reporting metrics to CloudWatch via putMetricData")
}

// Wait blocks until every submitted request has finished.
func (s *Sink) Wait() {
	s.wg.Wait()
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return "unknown"
}
