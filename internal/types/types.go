package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV row as returned by a market-data source.
type Candle struct {
	OpenTime               time.Time
	Open, High, Low, Close decimal.Decimal
	Volume                 decimal.Decimal
}

// Bar is the projection of a Candle kept by the bar store.
type Bar struct {
	Time  time.Time       `json:"time"`
	Close decimal.Decimal `json:"close"`
}

// BarFromCandle keeps only the fields the live series renders.
func BarFromCandle(c Candle) Bar {
	return Bar{Time: c.OpenTime, Close: c.Close}
}

// SeriesKey identifies the bar sequence currently held by the store.
type SeriesKey struct {
	Instrument string `json:"instrument"`
	Resolution string `json:"resolution"`
}

func (k SeriesKey) IsZero() bool { return k.Instrument == "" && k.Resolution == "" }

func (k SeriesKey) String() string { return k.Instrument + "@" + k.Resolution }

// AcquisitionMode selects how a refresh is applied to the bar store.
type AcquisitionMode int

const (
	ModeSnapshot AcquisitionMode = iota
	ModeIncremental
)

func (m AcquisitionMode) String() string {
	if m == ModeIncremental {
		return "incremental"
	}
	return "snapshot"
}

func (m AcquisitionMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Side is the direction of a trade
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide normalizes a backend side string, returning "" when unrecognized
func ParseSide(s string) Side {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy
	case "sell":
		return SideSell
	default:
		return ""
	}
}

// TradeRecord is one executed (paper) trade reported by the trading backend.
// PnL is only set on closing trades; Success is only set by backtest logs.
type TradeRecord struct {
	Symbol    string              `json:"symbol"`
	Side      Side                `json:"type"`
	Price     decimal.Decimal     `json:"price"`
	Quantity  decimal.Decimal     `json:"quantity"`
	Size      decimal.Decimal     `json:"size"`
	Timestamp time.Time           `json:"timestamp"`
	PnL       decimal.NullDecimal `json:"pnl"`
	Success   *bool               `json:"success,omitempty"`
}

// AnnotationPoint places a trade marker on the rendered series.
type AnnotationPoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
	Side  Side            `json:"side"`
}

type LogStatistics struct {
	TotalTrades int             `json:"total_trades"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	WinRate     decimal.Decimal `json:"win_rate"`
}

type PositionInfo struct {
	EntryPrice decimal.Decimal `json:"entry_price"`
	SizeUSDT   decimal.Decimal `json:"size_usdt"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryTime  time.Time       `json:"entry_time"`
	Type       string          `json:"type"`
}

// Status is the trading backend's view of the paper account.
type Status struct {
	Balance       decimal.Decimal         `json:"balance"`
	Positions     map[string]PositionInfo `json:"positions"`
	TradeHistory  []TradeRecord           `json:"trade_history"`
	ActiveSymbols []string                `json:"active_symbols"`
}

// TradesFor returns the trade history entries for one instrument, in order.
func (s Status) TradesFor(instrument string) []TradeRecord {
	out := make([]TradeRecord, 0, len(s.TradeHistory))
	for _, t := range s.TradeHistory {
		if t.Symbol == instrument {
			out = append(out, t)
		}
	}
	return out
}

// LogSource names one of the trade-log sets kept by the trading backend.
type LogSource string

const (
	LogSourceLive     LogSource = "live"
	LogSourceBacktest LogSource = "backtest"
)

func ParseLogSource(s string) (LogSource, error) {
	switch LogSource(strings.ToLower(s)) {
	case LogSourceLive, "":
		return LogSourceLive, nil
	case LogSourceBacktest:
		return LogSourceBacktest, nil
	default:
		return "", fmt.Errorf("unknown log source %q", s)
	}
}

type LogFile struct {
	ID        string    `json:"file"`
	Source    LogSource `json:"source"`
	Symbol    string    `json:"symbol,omitempty"`
	Timeframe string    `json:"timeframe,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
}

// LogContent is a trade log as read from the backend. Statistics holds the
// backend's own summary object verbatim and may be nil.
type LogContent struct {
	Trades     []TradeRecord  `json:"trades"`
	Statistics map[string]any `json:"statistics,omitempty"`
}
