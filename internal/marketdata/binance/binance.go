// Package binance reads spot instruments and klines from the Binance REST API.
package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"livechart/internal/api"
	"livechart/internal/interfaces"
	"livechart/internal/types"
)

const (
	DefaultBaseURL = "https://api.binance.com"

	// Binance rejects kline requests above this limit.
	maxKlineLimit = 1000
)

// Client reads spot klines and the exchange catalog from the public REST API.
type Client struct {
	http  *api.Client
	retry *api.RetryConfig // catalog fetches only
}

var _ interfaces.MarketData = (*Client)(nil)

// New returns a Binance client. Extra options are applied after the base URL
// and timeout.
func New(baseURL string, timeout time.Duration, opts ...api.ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	all := append([]api.ClientOption{
		api.WithBaseURL(strings.TrimRight(baseURL, "/")),
		api.WithTimeout(timeout),
		api.WithHeader("Accept", "application/json"),
		api.WithName("binance"),
	}, opts...)
	return &Client{
		http:  api.NewClient(all...),
		retry: api.DefaultRetryConfig(),
	}
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol               string `json:"symbol"`
		Status               string `json:"status"`
		BaseAsset            string `json:"baseAsset"`
		QuoteAsset           string `json:"quoteAsset"`
		IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
	} `json:"symbols"`
}

// Instruments lists spot pairs currently trading, as BASE/QUOTE, sorted.
func (c *Client) Instruments(ctx context.Context) ([]string, error) {
	req := api.NewRequest(http.MethodGet, "/api/v3/exchangeInfo").WithContext(ctx)
	resp, err := c.http.DoWithRetry(req, c.retry)
	if err != nil {
		return nil, fmt.Errorf("binance exchangeInfo: %w", err)
	}

	var info exchangeInfo
	if err := resp.ParseJSON(&info); err != nil {
		return nil, fmt.Errorf("binance exchangeInfo: %w", err)
	}

	out := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" || !s.IsSpotTradingAllowed {
			continue
		}
		out = append(out, s.BaseAsset+"/"+s.QuoteAsset)
	}
	sort.Strings(out)
	return out, nil
}

// Bars returns the most recent limit klines for instrument, oldest first.
// The last kline is usually still open and is reported again on the next call.
func (c *Client) Bars(ctx context.Context, instrument, resolution string, limit int) ([]types.Candle, error) {
	if limit <= 0 || limit > maxKlineLimit {
		return nil, fmt.Errorf("binance klines: limit %d out of range", limit)
	}

	q := url.Values{}
	q.Set("symbol", Symbol(instrument))
	q.Set("interval", resolution)
	q.Set("limit", strconv.Itoa(limit))

	// one attempt per tick; the next tick is the retry
	req := api.NewRequest(http.MethodGet, "/api/v3/klines?"+q.Encode()).WithContext(ctx)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", instrument, resolution, err)
	}

	candles, err := parseKlines(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", instrument, resolution, err)
	}
	return candles, nil
}

// Symbol converts "BTC/USDT" to Binance's "BTCUSDT".
func Symbol(instrument string) string {
	return strings.ToUpper(strings.ReplaceAll(instrument, "/", ""))
}

// parseKlines decodes the array-of-arrays kline payload:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKlines(body []byte) ([]types.Candle, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedResponse, err)
	}

	out := make([]types.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: kline %d has %d fields", types.ErrMalformedResponse, i, len(row))
		}
		openMs, err := toInt64(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: kline %d open time: %v", types.ErrMalformedResponse, i, err)
		}

		var vals [5]decimal.Decimal
		for j := range vals {
			v, err := toDecimal(row[j+1])
			if err != nil {
				return nil, fmt.Errorf("%w: kline %d field %d: %v", types.ErrMalformedResponse, i, j+1, err)
			}
			vals[j] = v
		}

		out = append(out, types.Candle{
			OpenTime: time.UnixMilli(openMs).UTC(),
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}
	return out, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case string:
		return decimal.NewFromString(n)
	case json.Number:
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected %T", v)
	}
}
