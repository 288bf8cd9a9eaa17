package logger

import (
	"context"
	"log/slog"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	lctrace "livechart/internal/trace"
)

// Debug is dropped unless LOG_DETAILED is on.
func Debug(ctx context.Context, msg string, args ...any) {
	DebugSkip(ctx, 1, msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelInfo, 1, msg, args)
}

func Warn(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelWarn, 1, msg, args)
}

func Error(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelError, 1, msg, args)
}

// ErrorWithErr logs at ERROR and marks the active span as failed.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	ErrorWithErrSkip(ctx, 1, msg, err, args...)
}

// The *Skip variants attribute the line skip frames above their caller.
// Decorators use them so the source points at the wrapped call site.

func DebugSkip(ctx context.Context, skip int, msg string, args ...any) {
	if !detailedLogging {
		return
	}
	emit(ctx, slog.LevelDebug, skip+1, msg, args)
}

func InfoSkip(ctx context.Context, skip int, msg string, args ...any) {
	emit(ctx, slog.LevelInfo, skip+1, msg, args)
}

func WarnSkip(ctx context.Context, skip int, msg string, args ...any) {
	emit(ctx, slog.LevelWarn, skip+1, msg, args)
}

func ErrorWithErrSkip(ctx context.Context, skip int, msg string, err error, args ...any) {
	markSpanFailed(ctx, err)
	emit(ctx, slog.LevelError, skip+1, msg, append([]any{"error", err}, args...))
}

// Refresh logs the outcome of one series refresh and records it as an
// event on the active span. Anything but "applied" is logged at WARN.
func Refresh(ctx context.Context, series, mode, outcome string, bars int, fields ...any) {
	if ctx != nil {
		trace.SpanFromContext(ctx).AddEvent("series_refresh", trace.WithAttributes(
			attribute.String("series", series),
			attribute.String("mode", mode),
			attribute.String("outcome", outcome),
			attribute.Int("bars", bars),
		))
	}

	level := slog.LevelInfo
	if outcome != "applied" {
		level = slog.LevelWarn
	}
	args := append([]any{
		"type", "REFRESH",
		"series", series,
		"mode", mode,
		"outcome", outcome,
		"bars", bars,
	}, fields...)
	emit(ctx, level, 1, "Series refreshed", args)
}

func markSpanFailed(ctx context.Context, err error) {
	if ctx == nil || err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// emit writes one record. skip counts frames above emit's caller.
func emit(ctx context.Context, level slog.Level, skip int, msg string, args []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !globalLogger.Enabled(ctx, level) {
		return
	}

	if traceID, spanID, ok := lctrace.GetTraceFields(ctx); ok {
		args = append([]any{"trace_id", traceID, "span_id", spanID}, args...)
	}
	if detailedLogging {
		if pc, file, line, ok := runtime.Caller(skip + 1); ok {
			name := ""
			if fn := runtime.FuncForPC(pc); fn != nil {
				name = fn.Name()
			}
			args = append(args, slog.Group("source",
				slog.String("function", name),
				slog.String("file", file),
				slog.Int("line", line),
			))
		}
	}

	globalLogger.Log(ctx, level, msg, args...)
}
