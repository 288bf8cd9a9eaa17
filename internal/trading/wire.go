package trading

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"livechart/internal/types"
)

type controlReply struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type wirePosition struct {
	EntryPrice decimal.Decimal `json:"entry_price"`
	SizeUSDT   decimal.Decimal `json:"size_usdt"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryTime  json.RawMessage `json:"entry_time"`
	Type       string          `json:"type"`
}

type wireStatus struct {
	PaperBalance  decimal.Decimal         `json:"paper_balance"`
	Positions     map[string]wirePosition `json:"positions"`
	TradeHistory  []wireTrade             `json:"trade_history"`
	ActiveSymbols []string                `json:"active_symbols"`
}

// wireTrade covers both the live trade shape and the backtest row shape.
type wireTrade struct {
	Symbol    string              `json:"symbol"`
	Type      string              `json:"type"`
	Price     decimal.NullDecimal `json:"price"`
	Size      decimal.NullDecimal `json:"size"`
	Quantity  decimal.NullDecimal `json:"quantity"`
	PnL       decimal.NullDecimal `json:"pnl"`
	Timestamp json.RawMessage     `json:"timestamp"`
	Timeframe string              `json:"timeframe"`
	NextClose decimal.NullDecimal `json:"next_close"`
	Success   *bool               `json:"success"`
}

type wireLog struct {
	Trades     []wireTrade    `json:"trades"`
	Statistics map[string]any `json:"statistics"`
}

type wireBacktestRun struct {
	File      string `json:"file"`
	Timestamp string `json:"timestamp"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

func (w wireStatus) toStatus() (types.Status, error) {
	st := types.Status{
		Balance:       w.PaperBalance,
		Positions:     make(map[string]types.PositionInfo, len(w.Positions)),
		TradeHistory:  make([]types.TradeRecord, 0, len(w.TradeHistory)),
		ActiveSymbols: w.ActiveSymbols,
	}
	if st.ActiveSymbols == nil {
		st.ActiveSymbols = []string{}
	}
	for sym, p := range w.Positions {
		at, err := parseTimestamp(p.EntryTime)
		if err != nil {
			return types.Status{}, fmt.Errorf("%w: position %s entry_time: %v", types.ErrMalformedResponse, sym, err)
		}
		st.Positions[sym] = types.PositionInfo{
			EntryPrice: p.EntryPrice,
			SizeUSDT:   p.SizeUSDT,
			Quantity:   p.Quantity,
			EntryTime:  at,
			Type:       p.Type,
		}
	}
	for i, t := range w.TradeHistory {
		rec, err := t.toRecord(types.LogSourceLive)
		if err != nil {
			return types.Status{}, fmt.Errorf("%w: trade %d: %v", types.ErrMalformedResponse, i, err)
		}
		st.TradeHistory = append(st.TradeHistory, rec)
	}
	return st, nil
}

func (t wireTrade) toRecord(source types.LogSource) (types.TradeRecord, error) {
	ts, err := parseTimestamp(t.Timestamp)
	if err != nil {
		return types.TradeRecord{}, err
	}
	rec := types.TradeRecord{
		Symbol:    t.Symbol,
		Side:      types.ParseSide(t.Type),
		Price:     t.Price.Decimal,
		Quantity:  t.Quantity.Decimal,
		Size:      t.Size.Decimal,
		Timestamp: ts,
		PnL:       t.PnL,
		Success:   t.Success,
	}
	if source == types.LogSourceBacktest {
		// backtest rows are entry signals scored against the next close
		if rec.Side == "" {
			rec.Side = types.SideBuy
		}
		if !rec.PnL.Valid && t.NextClose.Valid && t.Price.Valid {
			rec.PnL = decimal.NewNullDecimal(t.NextClose.Decimal.Sub(t.Price.Decimal))
		}
	}
	return rec, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp accepts ISO strings with or without zone (UTC assumed),
// epoch milliseconds, and null.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, nil
	}
	if !strings.HasPrefix(s, `"`) {
		ms, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %s: %w", s, err)
		}
		return time.UnixMilli(int64(ms)).UTC(), nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return time.Time{}, err
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", str)
}

// sanitizeJSON rewrites bare NaN and Infinity tokens, which the backend emits
// for empty CSV cells, to null. String contents are left untouched.
func sanitizeJSON(b []byte) []byte {
	var (
		out      []byte
		inString bool
		escaped  bool
		last     int
	)
	for i := 0; i < len(b); i++ {
		c := b[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}

		var n int
		switch {
		case hasToken(b, i, "NaN"):
			n = 3
		case hasToken(b, i, "-Infinity"):
			n = 9
		case hasToken(b, i, "Infinity"):
			n = 8
		default:
			continue
		}
		out = append(out, b[last:i]...)
		out = append(out, "null"...)
		i += n - 1
		last = i + 1
	}
	if out == nil {
		return b
	}
	return append(out, b[last:]...)
}

func hasToken(b []byte, i int, tok string) bool {
	return len(b)-i >= len(tok) && string(b[i:i+len(tok)]) == tok
}

// parseLogName reads symbol and timeframe from "<SYMBOL>_<tf>.csv".
func parseLogName(name string) (symbol, timeframe string) {
	base := strings.TrimSuffix(name, ".csv")
	i := strings.LastIndex(base, "_")
	if i <= 0 {
		return base, ""
	}
	return base[:i], base[i+1:]
}
