package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crankwatch",
		Short:         "Export load-test latency events to Amazon CloudWatch",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Script and plugin flags
	flags.String("script", "", "Path to the load-test script (JSON or YAML) holding config.plugins.cloudwatch")
	flags.String("namespace", "", "CloudWatch namespace (overrides config.plugins.cloudwatch.namespace)")
	flags.String("region", "", "AWS region (overrides config.plugins.cloudwatch.region)")
	flags.String("endpoint", "", "CloudWatch endpoint URL override (overrides config.plugins.cloudwatch.endpoint)")

	// Event source flags
	flags.String("source", "-", "Event source: '-' for stdin, a file path, a ws(s):// URL or an http(s):// SSE URL")
	flags.StringSlice("source-header", nil, "Additional source request header in key=value form")
	flags.Duration("source-timeout", 30*time.Second, "Connect timeout for websocket and SSE sources")

	// Submission flags
	flags.Bool("dry-run", false, "Write PutMetricData calls to stdout instead of CloudWatch")
	flags.Float64("submit-rate", 0, "Maximum PutMetricData calls per second (0 means unlimited)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	// Logging flags
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "Log format: 'text' or 'json'")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint for submission traces")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported with traces")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the script file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	for flag, param := range map[string]string{
		"namespace": ParamNamespace,
		"region":    ParamRegion,
		"endpoint":  ParamEndpoint,
	} {
		if !fs.Changed(flag) {
			continue
		}
		val, err := fs.GetString(flag)
		if err != nil {
			return err
		}
		setPluginParam(cfg, param, val)
	}

	if fs.Changed("source") {
		val, err := fs.GetString("source")
		if err != nil {
			return err
		}
		cfg.Source.Location = val
	}
	if fs.Changed("source-header") {
		values, err := fs.GetStringSlice("source-header")
		if err != nil {
			return err
		}
		for _, raw := range values {
			key, val, ok := strings.Cut(raw, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return fmt.Errorf("source-header %q: expected key=value", raw)
			}
			cfg.Source.Headers[key] = strings.TrimSpace(val)
		}
	}
	if fs.Changed("source-timeout") {
		val, err := fs.GetDuration("source-timeout")
		if err != nil {
			return err
		}
		cfg.Source.Timeout = val
	}
	if fs.Changed("dry-run") {
		val, err := fs.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.DryRun = val
	}
	if fs.Changed("submit-rate") {
		val, err := fs.GetFloat64("submit-rate")
		if err != nil {
			return err
		}
		cfg.SubmitRate = val
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = val
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = val
	}
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	return nil
}
