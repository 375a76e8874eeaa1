package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type SourceKind string

const (
	SourceStdin     SourceKind = "stdin"
	SourceFile      SourceKind = "file"
	SourceWebSocket SourceKind = "websocket"
	SourceSSE       SourceKind = "sse"
)

// Config holds the runtime settings of the exporter process.
type Config struct {
	ScriptFile  string                 `mapstructure:"-"`
	Host        map[string]interface{} `mapstructure:"-"` // "config" section of the load-test script
	Source      SourceConfig           `mapstructure:"source"`
	DryRun      bool                   `mapstructure:"dry_run"`
	SubmitRate  float64                `mapstructure:"submit_rate"`
	MetricsAddr string                 `mapstructure:"metrics_addr"`
	LogLevel    string                 `mapstructure:"log_level"`
	LogFormat   string                 `mapstructure:"log_format"`
	Tracing     TracingConfig          `mapstructure:"tracing"`
}

type SourceConfig struct {
	Location string            `mapstructure:"location"` // "-", a file path, ws(s):// or http(s):// URL
	Headers  map[string]string `mapstructure:"headers"`
	Timeout  time.Duration     `mapstructure:"timeout"` // connect timeout for network sources
}

// Kind derives the transport from the location.
func (s SourceConfig) Kind() SourceKind {
	loc := strings.TrimSpace(s.Location)
	if loc == "" || loc == "-" {
		return SourceStdin
	}
	u, err := url.Parse(loc)
	if err != nil {
		return SourceFile
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return SourceWebSocket
	case "http", "https":
		return SourceSSE
	default:
		return SourceFile
	}
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Enabled reports whether an OTLP endpoint is configured directly or through the environment.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks runtime settings. The plugin section of Host is validated separately
// by ValidatePlugin when the plugin is constructed.
func (c Config) Validate() error {
	var issues []string

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		issues = append(issues, fmt.Sprintf("log_level: %v", err))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("log_format must be 'text' or 'json', got %q", c.LogFormat))
	}
	if c.SubmitRate < 0 {
		issues = append(issues, "submit_rate must be >= 0")
	}

	issues = append(issues, validateSourceConfig(c.Source)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateSourceConfig(src SourceConfig) []string {
	var issues []string
	if src.Timeout < 0 {
		issues = append(issues, "source: timeout must be >= 0")
	}
	switch src.Kind() {
	case SourceWebSocket, SourceSSE:
		u, err := url.Parse(strings.TrimSpace(src.Location))
		if err != nil || u.Host == "" {
			issues = append(issues, fmt.Sprintf("source: %q is not a valid URL", src.Location))
		}
	case SourceStdin, SourceFile:
		if len(src.Headers) > 0 {
			issues = append(issues, "source: headers only apply to websocket and sse sources")
		}
	}
	return issues
}

func validateTracingConfig(tc TracingConfig) []string {
	var issues []string
	switch strings.ToLower(tc.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", tc.Protocol))
	}
	if tc.SampleRate < 0 || tc.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", tc.SampleRate))
	}
	return issues
}
