package kite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"

	"livechart/internal/types"
)

type historyCall struct {
	token    int
	interval string
	from, to time.Time
}

type fakeKite struct {
	instruments kiteconnect.Instruments
	rows        []kiteconnect.HistoricalData
	err         error
	loads       int
	calls       []historyCall
}

func (f *fakeKite) GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.instruments, nil
}

func (f *fakeKite) GetHistoricalData(token int, interval string, from, to time.Time, _ bool, _ bool) ([]kiteconnect.HistoricalData, error) {
	f.calls = append(f.calls, historyCall{token, interval, from, to})
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

var now = time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

func newFake() (*Kite, *fakeKite) {
	fk := &fakeKite{
		instruments: kiteconnect.Instruments{
			{InstrumentToken: 738561, Tradingsymbol: "RELIANCE", InstrumentType: "EQ", Exchange: "NSE"},
			{InstrumentToken: 2953217, Tradingsymbol: "TCS", InstrumentType: "EQ", Exchange: "NSE"},
			{InstrumentToken: 111, Tradingsymbol: "NIFTY24MAYFUT", InstrumentType: "FUT", Exchange: "NSE"},
		},
	}
	k := newWithAPI(Params{Exchange: "NSE"}, fk)
	k.now = func() time.Time { return now }
	return k, fk
}

func row(minute int, close float64) kiteconnect.HistoricalData {
	return kiteconnect.HistoricalData{
		Date:   models.Time{Time: now.Add(time.Duration(minute-10) * time.Minute)},
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 10,
	}
}

func TestInstrumentsKeepsEquities(t *testing.T) {
	k, _ := newFake()

	got, err := k.Instruments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE", "TCS"}, got)
}

func TestBarsMapsIntervalAndTrims(t *testing.T) {
	k, fk := newFake()
	fk.rows = []kiteconnect.HistoricalData{row(1, 2900), row(2, 2901.5), row(3, 2902)}

	got, err := k.Bars(context.Background(), "reliance", "1m", 2)
	require.NoError(t, err)

	require.Len(t, fk.calls, 1)
	assert.Equal(t, 738561, fk.calls[0].token)
	assert.Equal(t, "minute", fk.calls[0].interval)
	assert.Equal(t, now, fk.calls[0].to)
	assert.Equal(t, now.Add(-minLookback), fk.calls[0].from)

	require.Len(t, got, 2)
	assert.Equal(t, "2901.5", got[0].Close.String())
	assert.Equal(t, "2902", got[1].Close.String())
	assert.Equal(t, 1, fk.loads)
}

func TestBarsLazyLoadsInstrumentsOnce(t *testing.T) {
	k, fk := newFake()

	_, err := k.Bars(context.Background(), "TCS", "1d", 100)
	require.NoError(t, err)
	_, err = k.Bars(context.Background(), "TCS", "1d", 100)
	require.NoError(t, err)

	assert.Equal(t, 1, fk.loads)
	assert.Equal(t, "day", fk.calls[1].interval)
	assert.Equal(t, now.Add(-400*day), fk.calls[1].from)
}

func TestBarsErrors(t *testing.T) {
	k, fk := newFake()

	_, err := k.Bars(context.Background(), "RELIANCE", "1w", 10)
	assert.ErrorIs(t, err, ErrUnsupportedResolution)

	_, err = k.Bars(context.Background(), "NOPE", "1m", 10)
	assert.ErrorIs(t, err, ErrUnknownInstrument)

	fk.err = errors.New("TokenException")
	_, err = k.Bars(context.Background(), "RELIANCE", "1m", 10)
	assert.ErrorIs(t, err, types.ErrNetworkFailure)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fk.err = nil
	_, err = k.Bars(ctx, "RELIANCE", "1m", 10)
	assert.ErrorIs(t, err, types.ErrNetworkFailure)
}

func TestLookbackBounds(t *testing.T) {
	assert.Equal(t, minLookback, lookback("1m", intervals["1m"], 2))
	assert.Equal(t, 4*100*time.Hour, lookback("1h", intervals["1h"], 100))
	assert.Equal(t, 60*day, lookback("1m", intervals["1m"], 1_000_000))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Params{APIKey: "key"})
	assert.Error(t, err)

	k, err := New(Params{APIKey: "key", AccessToken: "token"})
	require.NoError(t, err)
	assert.Equal(t, "NSE", k.p.Exchange)
}

func TestMapperReplaceAllDropsOldSymbols(t *testing.T) {
	m := newInstrumentMapper()
	m.replaceAll(map[string]int{"RELIANCE": 1, "TCS": 2})
	m.replaceAll(map[string]int{"RELIANCE": 3, "INFY": 4})

	assert.Equal(t, []string{"INFY", "RELIANCE"}, m.symbols())
	tok, ok := m.getToken("RELIANCE")
	assert.True(t, ok)
	assert.Equal(t, 3, tok)
	_, ok = m.getToken("TCS")
	assert.False(t, ok)
	assert.Equal(t, 2, m.size())
}

func TestInstrumentReloadNeverHidesKnownSymbol(t *testing.T) {
	k, _ := newFake()
	_, err := k.Instruments(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				k.mapper.replaceAll(map[string]int{"RELIANCE": 738561, "TCS": 2953217})
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		_, ok := k.mapper.getToken("RELIANCE")
		if !ok {
			close(done)
			wg.Wait()
			t.Fatalf("RELIANCE missing during reload at read %d", i)
		}
	}
	close(done)
	wg.Wait()
}
