package tradingobs

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"livechart/internal/interfaces"
	"livechart/internal/logger"
	"livechart/internal/metrics"
	"livechart/internal/trace"
	"livechart/internal/types"
)

// observableTrading wraps a TradingControl with observability (logging, tracing, metrics)
type observableTrading struct {
	tc interfaces.TradingControl
}

// Compile-time interface check
var _ interfaces.TradingControl = (*observableTrading)(nil)

// Wrap wraps a trading backend client with observability middleware
func Wrap(tc interfaces.TradingControl) interfaces.TradingControl {
	return &observableTrading{tc: tc}
}

func observe(op string, start time.Time, err error) {
	metrics.BackendLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendErrors.WithLabelValues(op).Inc()
	}
}

// Start sends the start command with observability
func (o *observableTrading) Start(ctx context.Context, instrument, resolution string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "trading.Start")
	defer span.End()
	span.SetAttributes(attribute.String("instrument", instrument), attribute.String("resolution", resolution))

	logger.InfoSkip(ctx, 1, "Starting live trading", "symbol", instrument, "timeframe", resolution)

	start := time.Now()
	msg, err := o.tc.Start(ctx, instrument, resolution)
	observe("start", start, err)
	if err != nil {
		o.logCommandErr(ctx, "Start rejected", "Failed to start live trading", err, instrument)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Live trading started", "symbol", instrument, "message", msg)
	return msg, nil
}

// Stop sends the stop command with observability
func (o *observableTrading) Stop(ctx context.Context, instrument string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "trading.Stop")
	defer span.End()
	span.SetAttributes(attribute.String("instrument", instrument))

	logger.InfoSkip(ctx, 1, "Stopping live trading", "symbol", instrument)

	start := time.Now()
	msg, err := o.tc.Stop(ctx, instrument)
	observe("stop", start, err)
	if err != nil {
		o.logCommandErr(ctx, "Stop rejected", "Failed to stop live trading", err, instrument)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Live trading stopped", "symbol", instrument, "message", msg)
	return msg, nil
}

func (o *observableTrading) logCommandErr(ctx context.Context, rejectedMsg, failedMsg string, err error, instrument string) {
	var rej *types.ControlRejectedError
	if errors.As(err, &rej) {
		logger.WarnSkip(ctx, 2, rejectedMsg, "symbol", instrument, "reason", rej.Reason)
		return
	}
	logger.ErrorWithErrSkip(ctx, 2, failedMsg, err, "symbol", instrument)
}

func (o *observableTrading) Status(ctx context.Context) (types.Status, error) {
	ctx, span := trace.StartSpan(ctx, "trading.Status")
	defer span.End()

	start := time.Now()
	st, err := o.tc.Status(ctx)
	observe("status", start, err)
	if err != nil {
		logger.WarnSkip(ctx, 1, "Failed to fetch trading status", "error", err)
		return types.Status{}, err
	}

	logger.DebugSkip(ctx, 1, "Trading status fetched",
		"balance", st.Balance.String(),
		"positions", len(st.Positions),
		"trades", len(st.TradeHistory),
		"active", st.ActiveSymbols,
	)
	return st, nil
}

func (o *observableTrading) ListLogs(ctx context.Context, source types.LogSource) ([]types.LogFile, error) {
	ctx, span := trace.StartSpan(ctx, "trading.ListLogs")
	defer span.End()
	span.SetAttributes(attribute.String("source", string(source)))

	start := time.Now()
	files, err := o.tc.ListLogs(ctx, source)
	observe("list_logs", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list trade logs", err, "source", source)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Trade logs listed", "source", source, "count", len(files))
	return files, nil
}

func (o *observableTrading) ReadLog(ctx context.Context, source types.LogSource, fileID string) (types.LogContent, error) {
	ctx, span := trace.StartSpan(ctx, "trading.ReadLog")
	defer span.End()
	span.SetAttributes(attribute.String("source", string(source)), attribute.String("file", fileID))

	start := time.Now()
	content, err := o.tc.ReadLog(ctx, source, fileID)
	observe("read_log", start, err)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			logger.WarnSkip(ctx, 1, "Trade log not found", "source", source, "file", fileID)
		} else {
			logger.ErrorWithErrSkip(ctx, 1, "Failed to read trade log", err, "source", source, "file", fileID)
		}
		return types.LogContent{}, err
	}

	logger.DebugSkip(ctx, 1, "Trade log read", "source", source, "file", fileID, "trades", len(content.Trades))
	return content, nil
}
