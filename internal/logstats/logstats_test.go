package logstats

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"livechart/internal/types"
)

func withPnL(v int64) types.TradeRecord {
	return types.TradeRecord{Side: types.SideSell, PnL: decimal.NewNullDecimal(decimal.NewFromInt(v))}
}

func intp(v int) *int { return &v }

func TestReduce_FromPnL(t *testing.T) {
	got := Reduce([]types.TradeRecord{withPnL(5), withPnL(-2), withPnL(0)}, Hints{})

	assert.Equal(t, 3, got.TotalTrades)
	assert.Equal(t, 1, got.Wins)
	assert.Equal(t, 2, got.Losses)
	assert.Equal(t, "33.33", got.WinRate.String())
}

func TestReduce_EntriesWithoutPnLCountOnlyInTotal(t *testing.T) {
	trades := []types.TradeRecord{
		{Side: types.SideBuy},
		withPnL(3),
		{Side: types.SideBuy},
		withPnL(-1),
	}

	got := Reduce(trades, Hints{})

	assert.Equal(t, 4, got.TotalTrades)
	assert.Equal(t, 1, got.Wins)
	assert.Equal(t, 1, got.Losses)
	assert.Equal(t, "25", got.WinRate.String())
}

func TestReduce_EmptyHasZeroWinRate(t *testing.T) {
	got := Reduce(nil, Hints{})

	assert.Equal(t, 0, got.TotalTrades)
	assert.True(t, got.WinRate.IsZero())
}

func TestReduce_TrustsCompleteHints(t *testing.T) {
	// the server counts wins differently than the pnl sign would
	got := Reduce([]types.TradeRecord{withPnL(-1), withPnL(-1)}, Hints{Total: intp(2), Wins: intp(1)})

	assert.Equal(t, 2, got.TotalTrades)
	assert.Equal(t, 1, got.Wins)
	assert.Equal(t, 1, got.Losses)
	assert.Equal(t, "50", got.WinRate.String())
}

func TestReduce_PartialHintsAreIgnored(t *testing.T) {
	got := Reduce([]types.TradeRecord{withPnL(1)}, Hints{Total: intp(10)})

	assert.Equal(t, 1, got.TotalTrades)
	assert.Equal(t, 1, got.Wins)
}

func TestReduce_HintsWithZeroTotal(t *testing.T) {
	got := Reduce(nil, Hints{Total: intp(0), Wins: intp(0)})

	assert.Equal(t, 0, got.TotalTrades)
	assert.True(t, got.WinRate.IsZero())
}

func TestHintsFrom(t *testing.T) {
	tests := []struct {
		name      string
		stats     map[string]any
		wantTotal *int
		wantWins  *int
	}{
		{"live", map[string]any{"total_trades": 4.0, "wins": 2.0, "losses": 2.0, "winRate": 50.0}, intp(4), intp(2)},
		{"backtest", map[string]any{"total_trades": 10.0, "winning_trades": 7.0, "accuracy": 70.0}, intp(10), intp(7)},
		{"nil", nil, nil, nil},
		{"wrong types", map[string]any{"total_trades": "4"}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := HintsFrom(tt.stats)
			assert.Equal(t, tt.wantTotal, h.Total)
			assert.Equal(t, tt.wantWins, h.Wins)
		})
	}
}
