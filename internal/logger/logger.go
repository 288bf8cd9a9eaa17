// Package logger is the process-wide structured logger.
//
// Call sites log through the ctx-first helpers (Info, Warn, ErrorWithErr...)
// so that trace and span ids of the active span are attached. Components
// that want a *zap.Logger, like the gin access log, get one from Zap that
// writes to the same stream at the same level.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger    = slog.Default()
	logLevel        = slog.LevelInfo
	detailedLogging bool
	activeConfig    = LogConfig{Format: "json", Output: "stderr"}

	zapOnce   sync.Once
	zapLogger *zap.Logger
)

type LogConfig struct {
	Level           string // DEBUG, INFO, WARN, ERROR
	Format          string // json or text
	Output          string // stderr or stdout
	DetailedLogging bool   // debug lines and caller source
}

func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

// LoadConfigFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT and LOG_DETAILED.
// Logs go to stderr by default so stdout stays free for command output.
func LoadConfigFromEnv() LogConfig {
	return LogConfig{
		Level:           getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format:          getEnvOrDefault("LOG_FORMAT", "json"),
		Output:          getEnvOrDefault("LOG_OUTPUT", "stderr"),
		DetailedLogging: getEnvOrDefault("LOG_DETAILED", "false") == "true",
	}
}

func InitWithConfig(config LogConfig) error {
	logLevel = parseLogLevel(config.Level)
	detailedLogging = config.DetailedLogging
	activeConfig = config

	// source is attached in emit so decorators can point past themselves
	opts := &slog.HandlerOptions{Level: logLevel}
	w := writer(config.Output)

	var handler slog.Handler
	if strings.EqualFold(config.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	return nil
}

func writer(output string) io.Writer {
	if strings.EqualFold(output, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}

// Zap returns the shared zap logger. It is built on first use from the
// config active at that time.
func Zap() *zap.Logger {
	zapOnce.Do(func() {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "time"
		encCfg.MessageKey = "msg"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		var enc zapcore.Encoder
		if strings.EqualFold(activeConfig.Format, "text") {
			enc = zapcore.NewConsoleEncoder(encCfg)
		} else {
			enc = zapcore.NewJSONEncoder(encCfg)
		}
		sink := zapcore.Lock(zapcore.AddSync(writer(activeConfig.Output)))
		zapLogger = zap.New(zapcore.NewCore(enc, sink, zapLevel(logLevel)))
	})
	return zapLogger
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Sync flushes the zap logger if it was built.
func Sync() {
	if zapLogger != nil {
		_ = zapLogger.Sync()
	}
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(level)))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
