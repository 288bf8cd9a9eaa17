// Package trace wires OpenTelemetry spans around refreshes and gateway calls.
// Spans are exported as pretty-printed JSON to stderr, stdout or a file.
package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "livechart"

type Config struct {
	Enabled     bool
	Output      string  // "stderr", "stdout" or a file path
	SampleRatio float64 // fraction of root spans kept, 0..1
}

var (
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	output         io.Closer
	enabled        bool
)

// LoadConfigFromEnv reads LOG_TRACING_ENABLED (default "false"),
// TRACE_OUTPUT (default "stderr") and TRACE_SAMPLE_RATIO (default 1).
func LoadConfigFromEnv() Config {
	cfg := Config{
		Enabled:     getEnv("LOG_TRACING_ENABLED", "false") == "true",
		Output:      getEnv("TRACE_OUTPUT", "stderr"),
		SampleRatio: 1,
	}
	if v, err := strconv.ParseFloat(os.Getenv("TRACE_SAMPLE_RATIO"), 64); err == nil && v >= 0 && v <= 1 {
		cfg.SampleRatio = v
	}
	return cfg
}

func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

func InitWithConfig(cfg Config) error {
	enabled = cfg.Enabled
	if !enabled {
		return nil
	}

	w, err := openOutput(cfg.Output)
	if err != nil {
		enabled = false
		return err
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		enabled = false
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		enabled = false
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer(serviceName)
	return nil
}

func openOutput(dest string) (io.Writer, error) {
	switch dest {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace output: %w", err)
	}
	output = f
	return f, nil
}

// Shutdown flushes pending spans and closes a file output.
func Shutdown(ctx context.Context) error {
	var err error
	if tracerProvider != nil {
		err = tracerProvider.Shutdown(ctx)
		tracerProvider = nil
	}
	if output != nil {
		if cerr := output.Close(); err == nil {
			err = cerr
		}
		output = nil
	}
	tracer = nil
	enabled = false
	return err
}

// StartSpan is a no-op returning ctx's current span while tracing is off.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

func Enabled() bool {
	return enabled
}

func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
