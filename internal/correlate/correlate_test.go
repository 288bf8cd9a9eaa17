package correlate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livechart/internal/types"
)

var (
	t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCorrelate_SnapsToBarWithinTolerance(t *testing.T) {
	bars := []types.Bar{{Time: t0, Close: dec("99.9")}, {Time: t1, Close: dec("100.0000000")}}
	tradeTime := t0.Add(90 * time.Minute)
	trades := []types.TradeRecord{{Symbol: "BTC/USDT", Side: types.SideBuy, Price: dec("100.0000001"), Timestamp: tradeTime}}

	got := Correlate(bars, trades, "BTC/USDT")

	require.Len(t, got, 1)
	assert.True(t, got[0].Time.Equal(t1))
	assert.True(t, got[0].Price.Equal(dec("100")))
	assert.Equal(t, types.SideBuy, got[0].Side)
}

func TestCorrelate_FallsBackToTradeWhenNoBarMatches(t *testing.T) {
	bars := []types.Bar{{Time: t0, Close: dec("99.9")}}
	trades := []types.TradeRecord{{Symbol: "ETH/USDT", Side: types.SideSell, Price: dec("3100.5"), Timestamp: t2}}

	got := Correlate(bars, trades, "ETH/USDT")

	require.Len(t, got, 1)
	assert.True(t, got[0].Time.Equal(t2))
	assert.True(t, got[0].Price.Equal(dec("3100.5")))
	assert.Equal(t, types.SideSell, got[0].Side)
}

func TestCorrelate_ToleranceIsExclusive(t *testing.T) {
	bars := []types.Bar{{Time: t0, Close: dec("100")}}
	trades := []types.TradeRecord{{Symbol: "X", Price: dec("100.000001"), Timestamp: t2}}

	got := Correlate(bars, trades, "X")

	require.Len(t, got, 1)
	assert.True(t, got[0].Time.Equal(t2))
}

func TestCorrelate_TieBreakPicksEarliestBar(t *testing.T) {
	bars := []types.Bar{
		{Time: t0, Close: dec("50")},
		{Time: t1, Close: dec("50")},
		{Time: t2, Close: dec("50.0000001")},
	}
	trades := []types.TradeRecord{{Symbol: "X", Side: types.SideBuy, Price: dec("50"), Timestamp: t2}}

	for i := 0; i < 3; i++ {
		got := Correlate(bars, trades, "X")
		require.Len(t, got, 1)
		assert.True(t, got[0].Time.Equal(t0))
	}
}

func TestCorrelate_FiltersByInstrumentAndKeepsOrder(t *testing.T) {
	bars := []types.Bar{{Time: t0, Close: dec("10")}, {Time: t1, Close: dec("11")}}
	trades := []types.TradeRecord{
		{Symbol: "A", Side: types.SideSell, Price: dec("11"), Timestamp: t2},
		{Symbol: "B", Side: types.SideBuy, Price: dec("10"), Timestamp: t2},
		{Symbol: "A", Side: types.SideBuy, Price: dec("10"), Timestamp: t2},
	}

	got := Correlate(bars, trades, "A")

	require.Len(t, got, 2)
	assert.Equal(t, types.SideSell, got[0].Side)
	assert.True(t, got[0].Time.Equal(t1))
	assert.Equal(t, types.SideBuy, got[1].Side)
	assert.True(t, got[1].Time.Equal(t0))
}

func TestCorrelate_IsPureAndIdempotent(t *testing.T) {
	bars := []types.Bar{{Time: t0, Close: dec("10")}, {Time: t1, Close: dec("11")}}
	trades := []types.TradeRecord{
		{Symbol: "A", Side: types.SideBuy, Price: dec("10"), Timestamp: t2},
		{Symbol: "A", Side: types.SideSell, Price: dec("12"), Timestamp: t2},
	}
	barsCopy := append([]types.Bar(nil), bars...)
	tradesCopy := append([]types.TradeRecord(nil), trades...)

	first := Correlate(bars, trades, "A")
	second := Correlate(bars, trades, "A")

	assert.Equal(t, first, second)
	assert.Equal(t, barsCopy, bars)
	assert.Equal(t, tradesCopy, trades)
}

func TestCorrelator_CustomTolerance(t *testing.T) {
	bars := []types.Bar{{Time: t0, Close: dec("100")}}
	trades := []types.TradeRecord{{Symbol: "X", Price: dec("100.4"), Timestamp: t2}}

	got := New(dec("0.5")).Correlate(bars, trades, "X")

	require.Len(t, got, 1)
	assert.True(t, got[0].Time.Equal(t0))
}

func TestNew_NonPositiveToleranceFallsBack(t *testing.T) {
	assert.True(t, New(decimal.Zero).Tolerance.Equal(DefaultTolerance))
}

func TestPartition(t *testing.T) {
	points := []types.AnnotationPoint{
		{Side: types.SideBuy, Time: t0},
		{Side: types.SideSell, Time: t1},
		{Side: types.SideBuy, Time: t2},
	}

	buys, sells := Partition(points)

	require.Len(t, buys, 2)
	require.Len(t, sells, 1)
	assert.True(t, buys[1].Time.Equal(t2))
	assert.True(t, sells[0].Time.Equal(t1))
}
