package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/torosent/crankwatch/internal/clientmetrics"
	"github.com/torosent/crankwatch/internal/cloudwatch"
	"github.com/torosent/crankwatch/internal/config"
	"github.com/torosent/crankwatch/internal/events"
	"github.com/torosent/crankwatch/internal/plugin"
	"github.com/torosent/crankwatch/internal/sse"
	"github.com/torosent/crankwatch/internal/tracing"
	"github.com/torosent/crankwatch/internal/websocket"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer shutdown(logger, "tracing", provider.Shutdown)

	pluginCfg, err := config.LoadPlugin(cfg.Host)
	if err != nil {
		return err
	}

	var client cloudwatch.Client
	if cfg.DryRun {
		client = cloudwatch.NewWriterClient(stdout)
	} else {
		client, err = cloudwatch.NewClient(ctx, cloudwatch.ClientConfig{
			Region:   pluginCfg.Region,
			Endpoint: pluginCfg.Endpoint,
		})
		if err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	if cfg.MetricsAddr != "" {
		server := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsHandler(registry),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("metrics server stopped")
			}
		}()
		defer shutdown(logger, "metrics server", server.Shutdown)
	}

	sink := cloudwatch.NewSink(client, cloudwatch.SinkOptions{
		Logger:        logger,
		Tracer:        provider.Tracer(),
		RatePerSecond: cfg.SubmitRate,
		Registerer:    registry,
	})

	emitter := events.NewEmitter()
	p, err := plugin.New(cfg.Host, emitter, sink, plugin.WithLogger(logger))
	if err != nil {
		return err
	}

	log := logger.WithFields(logrus.Fields{
		"namespace": p.Namespace(),
		"source":    cfg.Source.Location,
		"dry_run":   cfg.DryRun,
	})
	log.Info("Listening for harness events")

	snapshot, streamErr := stream(ctx, cfg.Source, stdin, emitter)
	sink.Wait()

	log.WithFields(logrus.Fields{
		"events":        snapshot.EventsReceived,
		"bytes":         snapshot.BytesReceived,
		"decode_errors": snapshot.DecodeErrors,
		"duration":      snapshot.ConnectionDuration.Round(time.Millisecond),
	}).Info("Event source finished")

	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		return streamErr
	}
	return nil
}

// stream reads events from the configured source until it ends.
func stream(ctx context.Context, src config.SourceConfig, stdin io.Reader, pub events.Publisher) (clientmetrics.Snapshot, error) {
	switch src.Kind() {
	case config.SourceWebSocket:
		client := websocket.NewClient(websocket.Config{
			URL:              src.Location,
			Headers:          makeHeaders(src.Headers),
			HandshakeTimeout: src.Timeout,
		})
		err := client.Stream(ctx, pub)
		return client.Metrics(), err

	case config.SourceSSE:
		client := sse.NewClient(sse.Config{
			URL:            src.Location,
			Headers:        makeHeaders(src.Headers),
			ConnectTimeout: src.Timeout,
		})
		err := client.Stream(ctx, pub)
		return client.Metrics(), err

	case config.SourceFile:
		f, err := os.Open(src.Location)
		if err != nil {
			return clientmetrics.Snapshot{}, fmt.Errorf("open source: %w", err)
		}
		defer f.Close()
		m := clientmetrics.New()
		err = events.ReadStream(ctx, f, pub, m)
		return m.Snapshot(), err

	default:
		m := clientmetrics.New()
		err := events.ReadStream(ctx, stdin, pub, m)
		return m.Snapshot(), err
	}
}

func newLogger(cfg *config.Config, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if strings.EqualFold(cfg.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

func makeHeaders(headers map[string]string) http.Header {
	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	return h
}

func shutdown(logger logrus.FieldLogger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.WithError(err).Warnf("%s shutdown", name)
	}
}
