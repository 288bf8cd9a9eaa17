package interfaces

import (
	"context"

	"livechart/internal/types"
)

// TradingControl is the trading-control backend. Start and Stop return the
// backend's confirmation message, or a *types.ControlRejectedError.
type TradingControl interface {
	Start(ctx context.Context, instrument, resolution string) (string, error)
	Stop(ctx context.Context, instrument string) (string, error)
	Status(ctx context.Context) (types.Status, error)
	ListLogs(ctx context.Context, source types.LogSource) ([]types.LogFile, error)
	ReadLog(ctx context.Context, source types.LogSource, fileID string) (types.LogContent, error)
}

// StatusSource is the slice of TradingControl the poller needs.
type StatusSource interface {
	Status(ctx context.Context) (types.Status, error)
}
