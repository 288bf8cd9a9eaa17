// Package kite serves market data for exchange-listed instruments through the
// Kite Connect historical candle API.
package kite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"livechart/internal/interfaces"
	"livechart/internal/logger"
	"livechart/internal/types"
)

var (
	ErrUnsupportedResolution = errors.New("resolution not supported by kite")
	ErrUnknownInstrument     = errors.New("unknown instrument")
)

type Params struct {
	APIKey      string
	AccessToken string
	Exchange    string
}

// historyAPI is the part of *kiteconnect.Client used here.
type historyAPI interface {
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

type Kite struct {
	p      Params
	kc     historyAPI
	mapper *instrumentMapper
	now    func() time.Time
}

var _ interfaces.MarketData = (*Kite)(nil)

func New(p Params) (*Kite, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("missing API key/access token")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newWithAPI(p, kc), nil
}

func newWithAPI(p Params, kc historyAPI) *Kite {
	if p.Exchange == "" {
		p.Exchange = "NSE"
	}
	return &Kite{p: p, kc: kc, mapper: newInstrumentMapper(), now: time.Now}
}

// interval maps a resolution to the Kite interval name and the widest window
// Kite serves for it in one request.
type interval struct {
	name      string
	maxWindow time.Duration
}

const day = 24 * time.Hour

var intervals = map[string]interval{
	"1m":  {"minute", 60 * day},
	"3m":  {"3minute", 100 * day},
	"5m":  {"5minute", 100 * day},
	"15m": {"15minute", 200 * day},
	"30m": {"30minute", 200 * day},
	"1h":  {"60minute", 400 * day},
	"1d":  {"day", 2000 * day},
}

// minLookback covers weekends and exchange holidays for short series.
const minLookback = 5 * day

// Instruments lists equity trading symbols of the configured exchange.
func (k *Kite) Instruments(ctx context.Context) ([]string, error) {
	if err := k.loadInstruments(ctx); err != nil {
		return nil, err
	}
	return k.mapper.symbols(), nil
}

func (k *Kite) loadInstruments(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrNetworkFailure, err)
	}
	list, err := k.kc.GetInstrumentsByExchange(k.p.Exchange)
	if err != nil {
		return fmt.Errorf("%w: kite instruments %s: %v", types.ErrNetworkFailure, k.p.Exchange, err)
	}

	tokens := make(map[string]int, len(list))
	for _, in := range list {
		if in.InstrumentType != "" && in.InstrumentType != "EQ" {
			continue
		}
		tokens[in.Tradingsymbol] = in.InstrumentToken
	}
	k.mapper.replaceAll(tokens)
	logger.Debug(ctx, "Kite instruments loaded", "exchange", k.p.Exchange, "count", len(tokens))
	return nil
}

// Bars returns the last limit candles for a trading symbol, oldest first.
func (k *Kite) Bars(ctx context.Context, instrument, resolution string, limit int) ([]types.Candle, error) {
	iv, ok := intervals[resolution]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedResolution, resolution)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("kite bars: limit %d out of range", limit)
	}

	symbol := strings.ToUpper(instrument)
	token, ok := k.mapper.getToken(symbol)
	if !ok && k.mapper.size() == 0 {
		if err := k.loadInstruments(ctx); err != nil {
			return nil, err
		}
		token, ok = k.mapper.getToken(symbol)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownInstrument, instrument, k.p.Exchange)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNetworkFailure, err)
	}

	to := k.now()
	from := to.Add(-lookback(resolution, iv, limit))
	rows, err := k.kc.GetHistoricalData(token, iv.name, from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("%w: kite history %s %s: %v", types.ErrNetworkFailure, instrument, iv.name, err)
	}

	candles := make([]types.Candle, 0, len(rows))
	for _, r := range rows {
		candles = append(candles, types.Candle{
			OpenTime: r.Date.Time.UTC(),
			Open:     decimal.NewFromFloat(r.Open),
			High:     decimal.NewFromFloat(r.High),
			Low:      decimal.NewFromFloat(r.Low),
			Close:    decimal.NewFromFloat(r.Close),
			Volume:   decimal.NewFromInt(int64(r.Volume)),
		})
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// lookback sizes the request window: four bar lengths per requested bar, at
// least minLookback, at most what Kite serves for the interval.
func lookback(resolution string, iv interval, limit int) time.Duration {
	d, _ := types.ResolutionDuration(resolution)
	w := d * time.Duration(limit) * 4
	if w < minLookback {
		w = minLookback
	}
	if w > iv.maxWindow {
		w = iv.maxWindow
	}
	return w
}
