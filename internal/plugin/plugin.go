// Package plugin turns harness events into CloudWatch metric submissions.
package plugin

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/torosent/crankwatch/internal/config"
	"github.com/torosent/crankwatch/internal/events"
	"github.com/torosent/crankwatch/internal/metrics"
)

// Submitter delivers one batch. Implementations must not block on the network
// and must not report failures back to the caller.
type Submitter interface {
	Submit(namespace string, batch []metrics.MetricPoint)
}

// Plugin reacts to "stats" and "error" events for a single namespace.
type Plugin struct {
	cfg        config.PluginConfig
	sink       Submitter
	log        logrus.FieldLogger
	now        func() time.Time
	extractors []Extractor
}

// Option customizes a Plugin.
type Option func(*Plugin)

// WithLogger sets the logger used for completion lines.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Plugin) {
		if log != nil {
			p.log = log
		}
	}
}

// WithClock overrides the time source used to stamp error points.
func WithClock(now func() time.Time) Option {
	return func(p *Plugin) {
		if now != nil {
			p.now = now
		}
	}
}

// WithExtractors replaces the ordered list of report shapes.
func WithExtractors(extractors ...Extractor) Option {
	return func(p *Plugin) {
		if len(extractors) > 0 {
			p.extractors = extractors
		}
	}
}

// New validates host.plugins.cloudwatch and subscribes to source. On error
// nothing is subscribed and sink is never used.
func New(host map[string]interface{}, source events.Source, sink Submitter, opts ...Option) (*Plugin, error) {
	cfg, err := config.LoadPlugin(host)
	if err != nil {
		return nil, err
	}

	p := &Plugin{
		cfg:        cfg,
		sink:       sink,
		log:        logrus.StandardLogger(),
		now:        time.Now,
		extractors: DefaultExtractors(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithFields(logrus.Fields{
		"plugin":    config.PluginName,
		"namespace": cfg.Namespace,
	})

	source.Subscribe(events.KindError, p.handleError)
	source.Subscribe(events.KindStats, p.handleStats)
	return p, nil
}

// Namespace returns the namespace every batch is filed under.
func (p *Plugin) Namespace() string {
	return p.cfg.Namespace
}

func (p *Plugin) handleError(ev events.Event) {
	point := metrics.ErrorPoint(events.ErrorIdentifier(ev.Data), p.now())
	p.sink.Submit(p.cfg.Namespace, []metrics.MetricPoint{point})
}

func (p *Plugin) handleStats(ev events.Event) {
	records := Latencies(ParseReport(ev.Data), p.extractors)
	points := metrics.BuildPoints(records)
	for _, batch := range metrics.Chunk(points, metrics.MaxBatchSize) {
		p.sink.Submit(p.cfg.Namespace, batch)
	}

	summary := metrics.Summarize(records, metrics.MaxBatchSize)
	p.log.WithFields(logrus.Fields{
		"snapshot":       ulid.MustNew(ulid.Timestamp(p.now()), rand.Reader).String(),
		"records":        summary.Records,
		"points":         summary.Points,
		"batches":        summary.Batches,
		"min_latency_ms": summary.MinLatencyMs,
		"p50_latency_ms": summary.P50LatencyMs,
		"p99_latency_ms": summary.P99LatencyMs,
		"max_latency_ms": summary.MaxLatencyMs,
	}).Info("Metrics reported to CloudWatch")
}
