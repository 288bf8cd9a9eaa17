package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"livechart/internal/live"
	"livechart/internal/poller"
	"livechart/internal/store"
	"livechart/internal/types"
)

func TestJournalEntry(t *testing.T) {
	f := live.Frame{
		View: poller.View{
			Key:         types.SeriesKey{Instrument: "BTC/USDT", Resolution: "1m"},
			Mode:        types.ModeIncremental,
			Session:     "abc",
			LastRefresh: time.Now(),
			Bars: []types.Bar{
				{Close: decimal.RequireFromString("10")},
				{Close: decimal.RequireFromString("10.5")},
			},
		},
		Annotations: []types.AnnotationPoint{{Side: types.SideBuy}},
	}

	e := journalEntry(f)
	assert.Equal(t, "BTC/USDT@1m", e.Series)
	assert.Equal(t, "incremental", e.Mode)
	assert.Equal(t, 2, e.Bars)
	assert.Equal(t, "10.5", e.LastClose)
	assert.Equal(t, 1, e.Annotations)
	assert.True(t, completed(f))

	assert.False(t, completed(live.Frame{}))
	assert.True(t, completed(live.Frame{View: poller.View{LastError: "timeout"}}))
}

func TestInitializeJournal(t *testing.T) {
	cfg := store.Default()
	cfg.Export.Journal = false
	assert.Nil(t, initializeJournal(cfg))

	cfg.Export.Journal = true
	cfg.Export.Dir = t.TempDir()
	j := initializeJournal(cfg)
	if assert.NotNil(t, j) {
		assert.Equal(t, cfg.Export.Dir, j.Dir())
	}
}

func TestInitializeMarketDataKiteNeedsCredentials(t *testing.T) {
	t.Setenv("LC_TEST_KITE_KEY", "")
	cfg := store.Default()
	cfg.Market.Source = store.MarketSourceKite
	cfg.Market.Kite.APIKeyEnv = "LC_TEST_KITE_KEY"
	cfg.Market.Kite.AccessTokenEnv = "LC_TEST_KITE_TOKEN"

	_, err := initializeMarketData(cfg)
	assert.Error(t, err)

	cfg.Market.Source = store.MarketSourceBinance
	md, err := initializeMarketData(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, md)
}
