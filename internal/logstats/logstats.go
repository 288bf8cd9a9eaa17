package logstats

import (
	"math"

	"github.com/shopspring/decimal"

	"livechart/internal/types"
)

// Hints carries totals precomputed by the trading backend. When both are
// set they are trusted over recounting from trade PnL.
type Hints struct {
	Total *int
	Wins  *int
}

func (h Hints) complete() bool { return h.Total != nil && h.Wins != nil }

// Reduce summarizes a trade log.
//
// Without complete hints a win is a trade with pnl > 0 and a loss is any other
// trade carrying a pnl; trades without pnl (entries) count only toward the
// total. WinRate is a percentage rounded to 2 places, and 0 for an empty log.
func Reduce(trades []types.TradeRecord, hints Hints) types.LogStatistics {
	var total, wins, losses int

	if hints.complete() {
		total = *hints.Total
		wins = *hints.Wins
		losses = total - wins
	} else {
		total = len(trades)
		for _, t := range trades {
			if !t.PnL.Valid {
				continue
			}
			if t.PnL.Decimal.IsPositive() {
				wins++
			} else {
				losses++
			}
		}
	}

	return types.LogStatistics{
		TotalTrades: total,
		Wins:        wins,
		Losses:      losses,
		WinRate:     winRate(wins, total),
	}
}

func winRate(wins, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(wins)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
}

// HintsFrom extracts totals from a backend statistics object. Live logs report
// "total_trades"/"wins", backtest logs "total_trades"/"winning_trades".
func HintsFrom(stats map[string]any) Hints {
	var h Hints
	if stats == nil {
		return h
	}
	if v, ok := intField(stats, "total_trades"); ok {
		h.Total = &v
	}
	if v, ok := intField(stats, "wins"); ok {
		h.Wins = &v
	} else if v, ok := intField(stats, "winning_trades"); ok {
		h.Wins = &v
	}
	return h
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
