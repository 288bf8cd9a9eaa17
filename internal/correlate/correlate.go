// Package correlate places executed trades onto a bar series.
//
// A trade is matched to the first bar whose close is within an absolute
// tolerance of the trade price, so its marker sits exactly on the rendered
// line. Trades without a matching bar keep their own timestamp and price.
// In flat price regions several bars can match; the earliest one wins.
package correlate

import (
	"github.com/shopspring/decimal"

	"livechart/internal/types"
)

// DefaultTolerance is the absolute price distance treated as a match.
var DefaultTolerance = decimal.New(1, -6)

// matcher finds the bar a trade price belongs to.
type matcher interface {
	match(price decimal.Decimal) (types.Bar, bool)
}

// linearMatcher scans bars in order; series are a few hundred bars at most.
type linearMatcher struct {
	bars      []types.Bar
	tolerance decimal.Decimal
}

func (m linearMatcher) match(price decimal.Decimal) (types.Bar, bool) {
	for _, b := range m.bars {
		if b.Close.Sub(price).Abs().LessThan(m.tolerance) {
			return b, true
		}
	}
	return types.Bar{}, false
}

// Correlator matches trades to the bars they executed in
type Correlator struct {
	Tolerance decimal.Decimal
}

// New creates a correlator, falling back to DefaultTolerance when tolerance is not positive
func New(tolerance decimal.Decimal) Correlator {
	if !tolerance.IsPositive() {
		tolerance = DefaultTolerance
	}
	return Correlator{Tolerance: tolerance}
}

// Correlate returns one annotation per trade of instrument, in trade order.
// Neither bars nor trades are modified.
func (c Correlator) Correlate(bars []types.Bar, trades []types.TradeRecord, instrument string) []types.AnnotationPoint {
	tol := c.Tolerance
	if !tol.IsPositive() {
		tol = DefaultTolerance
	}
	m := linearMatcher{bars: bars, tolerance: tol}

	out := make([]types.AnnotationPoint, 0, len(trades))
	for _, t := range trades {
		if t.Symbol != instrument {
			continue
		}
		p := types.AnnotationPoint{Time: t.Timestamp, Price: t.Price, Side: t.Side}
		if b, ok := m.match(t.Price); ok {
			p.Time = b.Time
			p.Price = b.Close
		}
		out = append(out, p)
	}
	return out
}

// Correlate uses DefaultTolerance.
func Correlate(bars []types.Bar, trades []types.TradeRecord, instrument string) []types.AnnotationPoint {
	return Correlator{Tolerance: DefaultTolerance}.Correlate(bars, trades, instrument)
}

// Partition splits points into buy and sell markers, keeping order.
// Points with any other side are dropped.
func Partition(points []types.AnnotationPoint) (buys, sells []types.AnnotationPoint) {
	for _, p := range points {
		switch p.Side {
		case types.SideBuy:
			buys = append(buys, p)
		case types.SideSell:
			sells = append(sells, p)
		}
	}
	return buys, sells
}
