package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/torosent/crankwatch/internal/config"
)

func TestMakeHeaders(t *testing.T) {
	input := map[string]string{
		"Authorization": "Bearer token",
		"X-Custom":      "value",
	}
	got := makeHeaders(input)
	if got.Get("Authorization") != "Bearer token" {
		t.Errorf("Authorization = %q, want Bearer token", got.Get("Authorization"))
	}
	if got.Get("X-Custom") != "value" {
		t.Errorf("X-Custom = %q, want value", got.Get("X-Custom"))
	}
}

type dryRunRequest struct {
	Namespace  string
	MetricData []struct {
		MetricName string
		Value      float64
		Unit       string
	}
}

func decodeRequests(t *testing.T, out string) []dryRunRequest {
	t.Helper()
	var reqs []dryRunRequest
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var req dryRunRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			t.Fatalf("invalid dry-run line %q: %v", scanner.Text(), err)
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func TestRunDryRunFromStdin(t *testing.T) {
	input := strings.Join([]string{
		`{"event":"stats","data":{"aggregate":{"latencies":[[1700000000000,"a",1500000,200],[1700000000001,"b",2500000,503]]}}}`,
		`{"event":"error","data":"ETIMEDOUT"}`,
	}, "\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"--namespace", "loadtest", "--dry-run", "--log-format", "json"}, strings.NewReader(input), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v\nstderr:\n%s", err, stderr.String())
	}

	reqs := decodeRequests(t, stdout.String())
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d:\n%s", len(reqs), stdout.String())
	}

	var names []string
	for _, req := range reqs {
		if req.Namespace != "loadtest" {
			t.Errorf("namespace = %q, want loadtest", req.Namespace)
		}
		for _, d := range req.MetricData {
			names = append(names, d.MetricName)
		}
	}
	sort.Strings(names)
	want := []string{"ETIMEDOUT", "ResultLatency", "ResultLatency", "ResultStatus-200", "ResultStatus-503"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("metric names mismatch (-want +got):\n%s", diff)
	}

	if !strings.Contains(stderr.String(), "Metrics reported to CloudWatch") {
		t.Errorf("expected completion log line, got:\n%s", stderr.String())
	}
}

func TestRunDryRunFromScriptAndFile(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "script.yml")
	if err := os.WriteFile(script, []byte("config:\n  target: http://localhost\n  plugins:\n    cloudwatch:\n      namespace: from-script\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	eventsFile := filepath.Join(dir, "events.ndjson")
	if err := os.WriteFile(eventsFile, []byte(`{"event":"error","data":"ECONNRESET"}`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	err := run([]string{"--script", script, "--source", eventsFile, "--dry-run"}, strings.NewReader(""), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v\nstderr:\n%s", err, stderr.String())
	}

	reqs := decodeRequests(t, stdout.String())
	if len(reqs) != 1 || reqs[0].Namespace != "from-script" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	if got := reqs[0].MetricData[0].MetricName; got != "ECONNRESET" {
		t.Errorf("metric name = %q, want ECONNRESET", got)
	}
}

func TestRunRequiresNamespace(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"--dry-run"}, strings.NewReader(""), &stdout, &stderr)
	if !errors.Is(err, config.ErrConfigMissing) {
		t.Fatalf("run() error = %v, want ErrConfigMissing", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected no output, got %q", stdout.String())
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"--namespace", "ns", "--log-level", "loud"}, strings.NewReader(""), &stdout, &stderr)
	var validationErr config.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("run() error = %v, want ValidationError", err)
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--help"}, strings.NewReader(""), &stdout, &stderr); err != nil {
		t.Fatalf("run(--help) error = %v", err)
	}
}

func TestRunMissingSourceFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "missing.ndjson")
	err := run([]string{"--namespace", "ns", "--dry-run", "--source", missing}, strings.NewReader(""), &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "open source") {
		t.Fatalf("run() error = %v, want open source failure", err)
	}
}

func TestNewLoggerFormat(t *testing.T) {
	tests := []struct {
		format string
		json   bool
	}{
		{format: "", json: false},
		{format: "text", json: false},
		{format: "json", json: true},
		{format: "JSON", json: true},
		{format: "Json", json: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			logger, err := newLogger(&config.Config{LogLevel: "info", LogFormat: tt.format}, io.Discard)
			if err != nil {
				t.Fatalf("newLogger() error = %v", err)
			}
			_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
			if isJSON != tt.json {
				t.Errorf("JSON formatter = %v, want %v (formatter %T)", isJSON, tt.json, logger.Formatter)
			}
		})
	}
}
