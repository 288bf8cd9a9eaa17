package export

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"livechart/internal/types"
)

// SummaryRow aggregates one symbol's trades. The last row of a summary is
// the TOTAL row.
type SummaryRow struct {
	Symbol      string `json:"symbol" csv:"symbol"`
	Buys        int    `json:"buys" csv:"buys"`
	BuyAvg      string `json:"buy_avg" csv:"buy_avg"`
	Sells       int    `json:"sells" csv:"sells"`
	SellAvg     string `json:"sell_avg" csv:"sell_avg"`
	Closed      int    `json:"closed" csv:"closed"`
	Wins        int    `json:"wins" csv:"wins"`
	RealizedPnL string `json:"realized_pnl" csv:"realized_pnl"`
}

type aggRow struct {
	buys, sells  int
	buyValue     decimal.Decimal
	sellValue    decimal.Decimal
	closed, wins int
	realized     decimal.Decimal
}

// Summarize groups trades by symbol, sorted by symbol, followed by a TOTAL
// row. Average prices are unweighted; realized pnl sums the trades that
// carry one. Trades without a symbol are reported under "-".
func Summarize(trades []types.TradeRecord) []SummaryRow {
	aggs := map[string]*aggRow{}
	for _, t := range trades {
		sym := t.Symbol
		if sym == "" {
			sym = "-"
		}
		a := aggs[sym]
		if a == nil {
			a = &aggRow{}
			aggs[sym] = a
		}
		switch t.Side {
		case types.SideBuy:
			a.buys++
			a.buyValue = a.buyValue.Add(t.Price)
		case types.SideSell:
			a.sells++
			a.sellValue = a.sellValue.Add(t.Price)
		}
		if t.PnL.Valid {
			a.closed++
			a.realized = a.realized.Add(t.PnL.Decimal)
			if t.PnL.Decimal.IsPositive() {
				a.wins++
			}
		}
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]SummaryRow, 0, len(keys)+1)
	var total aggRow
	for _, k := range keys {
		a := aggs[k]
		rows = append(rows, a.row(k))
		total.buys += a.buys
		total.sells += a.sells
		total.buyValue = total.buyValue.Add(a.buyValue)
		total.sellValue = total.sellValue.Add(a.sellValue)
		total.closed += a.closed
		total.wins += a.wins
		total.realized = total.realized.Add(a.realized)
	}
	return append(rows, total.row("TOTAL"))
}

func (a aggRow) row(symbol string) SummaryRow {
	return SummaryRow{
		Symbol:      symbol,
		Buys:        a.buys,
		BuyAvg:      avg(a.buyValue, a.buys),
		Sells:       a.sells,
		SellAvg:     avg(a.sellValue, a.sells),
		Closed:      a.closed,
		Wins:        a.wins,
		RealizedPnL: a.realized.StringFixed(2),
	}
}

func avg(sum decimal.Decimal, n int) string {
	if n == 0 {
		return ""
	}
	return sum.Div(decimal.NewFromInt(int64(n))).StringFixed(4)
}

// WriteSummary writes rows as csv or json. Unknown formats fall back to csv.
func WriteSummary(w io.Writer, rows []SummaryRow, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return gocsv.Marshal(rows, w)
}
