package marketdataobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"livechart/internal/interfaces"
	"livechart/internal/logger"
	"livechart/internal/metrics"
	"livechart/internal/trace"
	"livechart/internal/types"
)

// observableMarketData wraps a MarketData with logging, tracing and metrics
type observableMarketData struct {
	source string
	md     interfaces.MarketData
}

// Compile-time interface check
var _ interfaces.MarketData = (*observableMarketData)(nil)

// Wrap wraps a market data source; source labels its spans and metrics.
func Wrap(source string, md interfaces.MarketData) interfaces.MarketData {
	return &observableMarketData{
		source: source,
		md:     md,
	}
}

func (o *observableMarketData) Instruments(ctx context.Context) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.Instruments")
	defer span.End()
	span.SetAttributes(attribute.String("source", o.source))

	start := time.Now()
	out, err := o.md.Instruments(ctx)
	metrics.MarketDataLatency.WithLabelValues(o.source, "instruments").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MarketDataErrors.WithLabelValues(o.source, "instruments").Inc()
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list instruments", err, "source", o.source)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Instruments listed", "source", o.source, "count", len(out))
	return out, nil
}

func (o *observableMarketData) Bars(ctx context.Context, instrument, resolution string, limit int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.Bars")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", o.source),
		attribute.String("instrument", instrument),
		attribute.String("resolution", resolution),
		attribute.Int("limit", limit),
	)

	logger.DebugSkip(ctx, 1, "Fetching bars", "source", o.source, "instrument", instrument, "resolution", resolution, "limit", limit)

	start := time.Now()
	out, err := o.md.Bars(ctx, instrument, resolution, limit)
	metrics.MarketDataLatency.WithLabelValues(o.source, "bars").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MarketDataErrors.WithLabelValues(o.source, "bars").Inc()
		span.RecordError(err)
		logger.WarnSkip(ctx, 1, "Failed to fetch bars", "error", err, "source", o.source, "instrument", instrument, "resolution", resolution)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Bars fetched", "source", o.source, "instrument", instrument, "count", len(out))
	return out, nil
}
