// Package live is the operator-facing session: series selection, trading
// commands, annotated frames and historical log review.
package live

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"livechart/internal/correlate"
	"livechart/internal/interfaces"
	"livechart/internal/logger"
	"livechart/internal/logstats"
	"livechart/internal/poller"
	"livechart/internal/types"
)

var ErrNoSelection = errors.New("no series selected")

const catalogTTL = 10 * time.Minute

// Frame is a controller view plus the trade overlay for its instrument.
type Frame struct {
	poller.View
	Annotations []types.AnnotationPoint `json:"annotations"`
	Trades      []types.TradeRecord     `json:"trades"`
}

// LogView is one historical log with its statistics. Statistics is nil when
// the log does not exist.
type LogView struct {
	File       string               `json:"file"`
	Source     types.LogSource      `json:"source"`
	Trades     []types.TradeRecord  `json:"trades"`
	Statistics *types.LogStatistics `json:"statistics"`
}

type Session struct {
	ctrl    *poller.Controller
	market  interfaces.MarketData
	trading interfaces.TradingControl
	corr    correlate.Correlator

	catalogMu sync.Mutex
	catalog   []string
	catalogAt time.Time
	now       func() time.Time
}

func NewSession(ctrl *poller.Controller, market interfaces.MarketData, trading interfaces.TradingControl, corr correlate.Correlator) *Session {
	return &Session{
		ctrl:    ctrl,
		market:  market,
		trading: trading,
		corr:    corr,
		now:     time.Now,
	}
}

func (s *Session) Select(instrument, resolution string) error {
	return s.ctrl.Select(types.SeriesKey{Instrument: instrument, Resolution: resolution})
}

func (s *Session) Deselect() {
	s.ctrl.Deselect()
}

// Refresh forces one refresh of the selected series.
func (s *Session) Refresh(ctx context.Context) error {
	return s.ctrl.Refresh(ctx)
}

// StartTrading starts paper trading the selected series. On success the
// series switches to incremental acquisition and keeps its current bars.
// A rejection leaves the series untouched.
func (s *Session) StartTrading(ctx context.Context) (string, error) {
	key := s.ctrl.Snapshot().Key
	if key.IsZero() {
		return "", ErrNoSelection
	}

	msg, err := s.trading.Start(ctx, key.Instrument, key.Resolution)
	if err != nil {
		return "", err
	}
	if !s.ctrl.EnterIncremental(key) {
		logger.Warn(ctx, "Selection changed while starting trading", "series", key.String())
	}
	return msg, nil
}

// StopTrading stops paper trading instrument, or the selected instrument
// when instrument is empty. Acquisition mode is not changed.
func (s *Session) StopTrading(ctx context.Context, instrument string) (string, error) {
	if instrument == "" {
		instrument = s.ctrl.Snapshot().Key.Instrument
	}
	if instrument == "" {
		return "", ErrNoSelection
	}
	return s.trading.Stop(ctx, instrument)
}

func (s *Session) Status(ctx context.Context) (types.Status, error) {
	return s.trading.Status(ctx)
}

// Frame returns the current view with trade annotations.
func (s *Session) Frame() Frame {
	return s.frame(s.ctrl.Snapshot())
}

func (s *Session) frame(v poller.View) Frame {
	f := Frame{View: v, Annotations: []types.AnnotationPoint{}, Trades: []types.TradeRecord{}}
	if v.Status == nil || v.Key.IsZero() {
		return f
	}
	f.Trades = v.Status.TradesFor(v.Key.Instrument)
	f.Annotations = s.corr.Correlate(v.Bars, f.Trades, v.Key.Instrument)
	return f
}

// Annotations correlates the current status trade history onto the current bars.
func (s *Session) Annotations() []types.AnnotationPoint {
	return s.Frame().Annotations
}

// Subscribe delivers a frame after every selection change and refresh.
func (s *Session) Subscribe(fn func(Frame)) func() {
	return s.ctrl.Subscribe(func(v poller.View) { fn(s.frame(v)) })
}

// SearchInstruments returns catalog instruments containing query, ignoring
// case and the pair separator. An empty query returns the whole catalog.
func (s *Session) SearchInstruments(ctx context.Context, query string, limit int) ([]string, error) {
	all, err := s.instruments(ctx)
	if err != nil {
		return nil, err
	}

	q := normalize(query)
	out := make([]string, 0, len(all))
	for _, in := range all {
		if q == "" || strings.Contains(normalize(in), q) {
			out = append(out, in)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "/", ""))
}

func (s *Session) instruments(ctx context.Context) ([]string, error) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	if s.catalog != nil && s.now().Sub(s.catalogAt) < catalogTTL {
		return s.catalog, nil
	}
	list, err := s.market.Instruments(ctx)
	if err != nil {
		if s.catalog != nil {
			logger.Warn(ctx, "Instrument refresh failed, serving cached catalog", "error", err)
			return s.catalog, nil
		}
		return nil, err
	}
	sort.Strings(list)
	s.catalog = list
	s.catalogAt = s.now()
	return list, nil
}

func (s *Session) ListLogs(ctx context.Context, source types.LogSource) ([]types.LogFile, error) {
	return s.trading.ListLogs(ctx, source)
}

// OpenLog reads a historical log and reduces its statistics. A missing log
// yields an empty view with nil statistics.
func (s *Session) OpenLog(ctx context.Context, source types.LogSource, fileID string) (LogView, error) {
	view := LogView{File: fileID, Source: source, Trades: []types.TradeRecord{}}

	content, err := s.trading.ReadLog(ctx, source, fileID)
	if errors.Is(err, types.ErrNotFound) {
		return view, nil
	}
	if err != nil {
		return LogView{}, fmt.Errorf("open log %s/%s: %w", source, fileID, err)
	}

	stats := logstats.Reduce(content.Trades, logstats.HintsFrom(content.Statistics))
	view.Trades = content.Trades
	view.Statistics = &stats
	return view, nil
}
