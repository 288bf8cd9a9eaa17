package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func captureJSON(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	prev := globalLogger
	prevLevel := logLevel
	t.Cleanup(func() {
		globalLogger = prev
		logLevel = prevLevel
	})

	var buf bytes.Buffer
	logLevel = level
	globalLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level}))
	return &buf
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestErrorWithErrIncludesError(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)

	ErrorWithErr(context.Background(), "fetch failed", errors.New("boom"), "series", "BTC/USDT@1m")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if rec["error"] != "boom" {
		t.Errorf("error field = %v", rec["error"])
	}
	if rec["series"] != "BTC/USDT@1m" {
		t.Errorf("series field = %v", rec["series"])
	}
}

func TestDebugSuppressedWithoutDetailedLogging(t *testing.T) {
	buf := captureJSON(t, slog.LevelDebug)
	prev := detailedLogging
	detailedLogging = false
	defer func() { detailedLogging = prev }()

	Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestRefreshLevelFollowsOutcome(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)

	Refresh(context.Background(), "ETH/USDT@5m", "incremental", "stale", 0)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if rec["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", rec["level"])
	}
	if rec["outcome"] != "stale" {
		t.Errorf("outcome = %v", rec["outcome"])
	}
}

func TestZapReturnsLogger(t *testing.T) {
	if Zap() == nil {
		t.Fatal("Zap() returned nil")
	}
	if Zap() != Zap() {
		t.Error("Zap() should return a shared instance")
	}
}

func TestLoadConfigFromEnvDefaultsToStderr(t *testing.T) {
	t.Setenv("LOG_OUTPUT", "")
	t.Setenv("LOG_FORMAT", "")
	cfg := LoadConfigFromEnv()
	if cfg.Output != "stderr" || cfg.Format != "json" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestDetailedLoggingAddsCallerSource(t *testing.T) {
	buf := captureJSON(t, slog.LevelDebug)
	prev := detailedLogging
	detailedLogging = true
	defer func() { detailedLogging = prev }()

	Debug(context.Background(), "visible")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	src, ok := rec["source"].(map[string]any)
	if !ok {
		t.Fatalf("missing source group: %v", rec)
	}
	if fn, _ := src["function"].(string); !strings.HasSuffix(fn, "TestDetailedLoggingAddsCallerSource") {
		t.Errorf("source function = %q", fn)
	}
}
