package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livechart/internal/types"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL, 2*time.Second)
	c.retry.InitialWait = time.Millisecond
	return c
}

func TestInstrumentsFiltersTradingSpot(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		_, _ = w.Write([]byte(`{"symbols":[
			{"symbol":"ETHUSDT","status":"TRADING","baseAsset":"ETH","quoteAsset":"USDT","isSpotTradingAllowed":true},
			{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT","isSpotTradingAllowed":true},
			{"symbol":"LUNAUSDT","status":"BREAK","baseAsset":"LUNA","quoteAsset":"USDT","isSpotTradingAllowed":true},
			{"symbol":"XYZUSDT","status":"TRADING","baseAsset":"XYZ","quoteAsset":"USDT","isSpotTradingAllowed":false}
		]}`))
	})

	got, err := c.Instruments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, got)
}

func TestBarsParsesKlines(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "5m", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			[1714564800000,"100.1","101.0","99.5","100.5","12.3",1714565099999,"0",10,"0","0","0"],
			[1714565100000,"100.5","102.0","100.0","101.25","8.0",1714565399999,"0",7,"0","0","0"]
		]`))
	})

	got, err := c.Bars(context.Background(), "BTC/USDT", "5m", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.UnixMilli(1714564800000).UTC(), got[0].OpenTime)
	assert.Equal(t, "100.5", got[0].Close.String())
	assert.Equal(t, "101.25", got[1].Close.String())
	assert.Equal(t, "12.3", got[0].Volume.String())
}

func TestBarsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `<html>`,
		"short row":     `[[1714564800000,"1","2"]]`,
		"bad close":     `[[1714564800000,"1","2","0.5","abc","3"]]`,
		"bad open time": `[["yesterday","1","2","0.5","1","3"]]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.Bars(context.Background(), "BTC/USDT", "1m", 100)
			assert.ErrorIs(t, err, types.ErrMalformedResponse)
		})
	}
}

func TestBarsNetworkFailureSingleAttempt(t *testing.T) {
	var hits atomic.Int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Bars(context.Background(), "BTC/USDT", "1m", 100)
	assert.True(t, errors.Is(err, types.ErrNetworkFailure))
	assert.Equal(t, int32(1), hits.Load())
}

func TestInstrumentsNetworkFailureIsRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Instruments(context.Background())
	assert.ErrorIs(t, err, types.ErrNetworkFailure)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBarsClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	_, err := c.Bars(context.Background(), "NOPE/USDT", "1m", 100)
	assert.ErrorIs(t, err, types.ErrNetworkFailure)
	assert.Equal(t, int32(1), hits.Load())
}

func TestBarsRejectsLimit(t *testing.T) {
	c := New("http://127.0.0.1:0", time.Second)
	_, err := c.Bars(context.Background(), "BTC/USDT", "1m", 0)
	assert.Error(t, err)
	_, err = c.Bars(context.Background(), "BTC/USDT", "1m", 5000)
	assert.Error(t, err)
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Symbol("BTC/USDT"))
	assert.Equal(t, "ETHBTC", Symbol("eth/btc"))
}
