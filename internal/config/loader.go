package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from a load-test script and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and the optional script file to produce a Config.
//
// The script's "config" section becomes Config.Host and is handed to the plugin as-is.
// An optional top-level "crankwatch" section carries runtime settings; flags override both.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	cfg := &Config{
		Source: SourceConfig{
			Location: "-",
			Headers:  map[string]string{},
			Timeout:  30 * time.Second,
		},
		LogLevel:  "info",
		LogFormat: "text",
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}

	scriptPath := flagSet.Lookup("script").Value.String()
	if scriptPath != "" {
		scriptViper := viper.New()
		scriptViper.SetConfigFile(scriptPath)
		if err := scriptViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read script %s: %w", scriptPath, err)
		}
		cfg.ScriptFile = scriptPath

		settings := scriptViper.AllSettings()
		host, err := hostSection(settings)
		if err != nil {
			return nil, err
		}
		cfg.Host = host
		if raw, ok := lookupSetting(settings, "crankwatch"); ok {
			runtime, err := toStringKeyMap(raw)
			if err != nil {
				return nil, fmt.Errorf("crankwatch: %w", err)
			}
			if err := applyConfigSettings(cfg, runtime); err != nil {
				return nil, err
			}
		}
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Source.Location = strings.TrimSpace(cfg.Source.Location)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if cfg.Source.Headers == nil {
		cfg.Source.Headers = map[string]string{}
	}

	return cfg, nil
}

// hostSection extracts the script's "config" section. A script without one yields nil,
// which the plugin reports as missing configuration.
func hostSection(settings map[string]interface{}) (map[string]interface{}, error) {
	raw, ok := lookupSetting(settings, "config")
	if !ok || raw == nil {
		return nil, nil
	}
	host, err := toStringKeyMap(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return host, nil
}

// applyConfigSettings applies the script's "crankwatch" section to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "source"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("source: %w", err)
		}
		cfg.Source.Location = val
	}

	if raw, ok := lookupSetting(settings, "source_headers", "source-headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("source_headers: %w", err)
		}
		for k, v := range hdrs {
			cfg.Source.Headers[k] = v
		}
	}

	if raw, ok := lookupSetting(settings, "source_timeout", "source-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("source_timeout: %w", err)
		}
		cfg.Source.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "dry_run", "dry-run"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dry_run: %w", err)
		}
		cfg.DryRun = val
	}

	if raw, ok := lookupSetting(settings, "submit_rate", "submit-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("submit_rate: %w", err)
		}
		cfg.SubmitRate = val
	}

	if raw, ok := lookupSetting(settings, "metrics_addr", "metrics-addr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metrics_addr: %w", err)
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "log_level", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		cfg.LogLevel = val
	}

	if raw, ok := lookupSetting(settings, "log_format", "log-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_format: %w", err)
		}
		cfg.LogFormat = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tc, err := parseTracingConfig(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tc
	}

	return nil
}

func parseTracingConfig(value interface{}, base TracingConfig) (TracingConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return base, err
	}
	tc := base
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		if tc.Endpoint, err = asString(raw); err != nil {
			return base, fmt.Errorf("endpoint: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		if tc.Protocol, err = asString(raw); err != nil {
			return base, fmt.Errorf("protocol: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "service_name", "service-name"); ok {
		if tc.ServiceName, err = asString(raw); err != nil {
			return base, fmt.Errorf("service_name: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "sample-rate"); ok {
		if tc.SampleRate, err = asFloat64(raw); err != nil {
			return base, fmt.Errorf("sample_rate: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		if tc.Insecure, err = asBool(raw); err != nil {
			return base, fmt.Errorf("insecure: %w", err)
		}
	}
	return tc, nil
}

// setPluginParam writes value into host.plugins.cloudwatch[param], creating the
// intermediate sections when they are absent.
func setPluginParam(cfg *Config, param, value string) {
	if cfg.Host == nil {
		cfg.Host = map[string]interface{}{}
	}
	plugins := childSection(cfg.Host, "plugins")
	section := childSection(plugins, PluginName)
	section[param] = value
}

func childSection(parent map[string]interface{}, key string) map[string]interface{} {
	if raw, ok := lookupSetting(parent, key); ok {
		if child, err := toStringKeyMap(raw); err == nil {
			parent[strings.ToLower(key)] = child
			return child
		}
	}
	child := map[string]interface{}{}
	parent[strings.ToLower(key)] = child
	return child
}
