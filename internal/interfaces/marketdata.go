package interfaces

import (
	"context"

	"livechart/internal/types"
)

// MarketData is the read-only market-data collaborator.
type MarketData interface {
	// Instruments lists tradable instrument symbols.
	Instruments(ctx context.Context) ([]string, error)

	// Bars returns up to limit most recent candles, oldest first.
	Bars(ctx context.Context, instrument, resolution string, limit int) ([]types.Candle, error)
}
