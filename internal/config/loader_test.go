package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeScript(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestLoaderDefaults(t *testing.T) {
	cfg, err := NewLoader().Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Location != "-" || cfg.Source.Kind() != SourceStdin {
		t.Errorf("expected stdin source, got %q (%s)", cfg.Source.Location, cfg.Source.Kind())
	}
	if cfg.Source.Timeout != 30*time.Second {
		t.Errorf("expected 30s source timeout, got %s", cfg.Source.Timeout)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("unexpected log defaults %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Tracing.Protocol != "grpc" || cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("unexpected tracing defaults %+v", cfg.Tracing)
	}
	if cfg.Host != nil {
		t.Errorf("expected nil host without a script, got %v", cfg.Host)
	}
	if err := ValidatePlugin(cfg.Host); !errors.Is(err, ErrConfigMissing) {
		t.Errorf("ValidatePlugin() = %v, want ErrConfigMissing", err)
	}
}

func TestLoaderHelp(t *testing.T) {
	_, err := NewLoader().Load([]string{"--help"})
	if !errors.Is(err, ErrHelpRequested) {
		t.Fatalf("Load(--help) error = %v, want ErrHelpRequested", err)
	}
}

func TestLoaderReadsYAMLScript(t *testing.T) {
	path := writeScript(t, "script.yml", `
config:
  target: "https://example.com"
  phases:
    - duration: 60
      arrivalRate: 5
  plugins:
    cloudwatch:
      namespace: "Checkout/LoadTest"
      region: "us-east-2"
crankwatch:
  source: "wss://harness.local/events"
  source_headers:
    Authorization: "Bearer abc"
  source_timeout: "5s"
  submit_rate: 50
  log_level: debug
  log_format: json
  tracing:
    endpoint: "collector:4317"
    insecure: true
    sample_rate: 0.5
`)

	cfg, err := NewLoader().Load([]string{"--script", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ScriptFile != path {
		t.Errorf("ScriptFile = %q, want %q", cfg.ScriptFile, path)
	}

	plugin, err := LoadPlugin(cfg.Host)
	if err != nil {
		t.Fatalf("LoadPlugin() error = %v", err)
	}
	if diff := cmp.Diff(PluginConfig{Namespace: "Checkout/LoadTest", Region: "us-east-2"}, plugin); diff != "" {
		t.Errorf("plugin config mismatch (-want +got):\n%s", diff)
	}

	if cfg.Source.Kind() != SourceWebSocket {
		t.Errorf("expected websocket source, got %s", cfg.Source.Kind())
	}
	// viper lowercases keys.
	if cfg.Source.Headers["authorization"] != "Bearer abc" {
		t.Errorf("expected authorization header, got %v", cfg.Source.Headers)
	}
	if cfg.Source.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.Source.Timeout)
	}
	if cfg.SubmitRate != 50 {
		t.Errorf("expected submit rate 50, got %v", cfg.SubmitRate)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("unexpected logging %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	wantTracing := TracingConfig{Endpoint: "collector:4317", Protocol: "grpc", SampleRate: 0.5, Insecure: true}
	if diff := cmp.Diff(wantTracing, cfg.Tracing); diff != "" {
		t.Errorf("tracing mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoaderReadsJSONScriptWithWrongNamespaceType(t *testing.T) {
	path := writeScript(t, "script.json", `{"config": {"plugins": {"cloudwatch": {"namespace": 12}}}}`)

	cfg, err := NewLoader().Load([]string{"--script", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := ValidatePlugin(cfg.Host); !errors.Is(err, ErrParamWrongType) {
		t.Errorf("ValidatePlugin() = %v, want ErrParamWrongType", err)
	}
}

func TestLoaderMissingScript(t *testing.T) {
	_, err := NewLoader().Load([]string{"--script", filepath.Join(t.TempDir(), "missing.yml")})
	if err == nil {
		t.Fatal("expected error for missing script")
	}
}

func TestLoaderFlagOverrides(t *testing.T) {
	path := writeScript(t, "script.yml", `
config:
  plugins:
    cloudwatch:
      namespace: "FromScript"
crankwatch:
  source: "events.ndjson"
  dry_run: false
`)

	cfg, err := NewLoader().Load([]string{
		"--script", path,
		"--namespace", "FromFlag",
		"--endpoint", "http://localhost:4566",
		"--source", "https://harness.local/stream",
		"--source-header", "X-Run=42",
		"--dry-run",
		"--submit-rate", "10",
		"--metrics-addr", ":9090",
		"--log-level", "WARN",
		"--tracing-endpoint", "collector:4318",
		"--tracing-protocol", "HTTP",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	plugin, err := LoadPlugin(cfg.Host)
	if err != nil {
		t.Fatalf("LoadPlugin() error = %v", err)
	}
	if diff := cmp.Diff(PluginConfig{Namespace: "FromFlag", Endpoint: "http://localhost:4566"}, plugin); diff != "" {
		t.Errorf("plugin config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Source.Kind() != SourceSSE {
		t.Errorf("expected sse source, got %s", cfg.Source.Kind())
	}
	if cfg.Source.Headers["X-Run"] != "42" {
		t.Errorf("expected X-Run header, got %v", cfg.Source.Headers)
	}
	if !cfg.DryRun {
		t.Error("expected dry run")
	}
	if cfg.SubmitRate != 10 || cfg.MetricsAddr != ":9090" {
		t.Errorf("unexpected submit rate/metrics addr %v/%q", cfg.SubmitRate, cfg.MetricsAddr)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected normalized log level, got %q", cfg.LogLevel)
	}
	if cfg.Tracing.Protocol != "http" || cfg.Tracing.Endpoint != "collector:4318" {
		t.Errorf("unexpected tracing %+v", cfg.Tracing)
	}
}

func TestLoaderNamespaceFlagWithoutScript(t *testing.T) {
	cfg, err := NewLoader().Load([]string{"--namespace", "Adhoc"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	plugin, err := LoadPlugin(cfg.Host)
	if err != nil {
		t.Fatalf("LoadPlugin() error = %v", err)
	}
	if plugin.Namespace != "Adhoc" {
		t.Errorf("Namespace = %q, want Adhoc", plugin.Namespace)
	}
}

func TestLoaderRejectsMalformedSourceHeader(t *testing.T) {
	_, err := NewLoader().Load([]string{"--source-header", "novalue"})
	if err == nil {
		t.Fatal("expected error for header without '='")
	}
}
