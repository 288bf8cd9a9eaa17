// Package poller drives the periodic refresh of the live bar series.
//
// A Controller is either Idle or Polling one series key. Every selection
// opens a new session with its own tag, context and schedule. Fetch results
// are applied only while their session is still the active one, so a slow
// response for a previous key can never land in the store of the current key.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"livechart/internal/barstore"
	"livechart/internal/interfaces"
	"livechart/internal/logger"
	"livechart/internal/metrics"
	"livechart/internal/trace"
	"livechart/internal/types"
)

var (
	ErrIdle           = errors.New("no series selected")
	ErrRefreshRunning = errors.New("refresh already in flight")
	ErrInvalidKey     = errors.New("invalid series key")
)

type State int

const (
	StateIdle State = iota
	StatePolling
)

func (s State) String() string {
	if s == StatePolling {
		return "polling"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Config struct {
	Interval         time.Duration
	SnapshotLimit    int
	IncrementalLimit int
}

func DefaultConfig() Config {
	return Config{Interval: 60 * time.Second, SnapshotLimit: 100, IncrementalLimit: 2}
}

// View is a read-only copy of the controller state.
type View struct {
	Key         types.SeriesKey       `json:"key"`
	Mode        types.AcquisitionMode `json:"mode"`
	State       State                 `json:"state"`
	Session     string                `json:"session,omitempty"`
	Bars        []types.Bar           `json:"bars"`
	Status      *types.Status         `json:"status,omitempty"`
	LastRefresh time.Time             `json:"last_refresh,omitempty"`
	LastError   string                `json:"last_error,omitempty"`
}

type session struct {
	tag      string
	key      types.SeriesKey
	ctx      context.Context
	cancel   context.CancelFunc
	handle   interfaces.Handle
	inFlight bool
}

type Controller struct {
	cfg    Config
	market interfaces.MarketData
	status interfaces.StatusSource
	sched  interfaces.Scheduler
	store  *barstore.Store
	now    func() time.Time

	mu          sync.Mutex
	active      *session
	mode        types.AcquisitionMode
	lastStatus  *types.Status
	lastRefresh time.Time
	lastErr     error

	obsMu     sync.Mutex
	observers map[int]func(View)
	nextObs   int
}

// New builds an idle controller. status may be nil, in which case no
// trading status is polled.
func New(cfg Config, market interfaces.MarketData, status interfaces.StatusSource, sched interfaces.Scheduler) *Controller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.SnapshotLimit <= 0 {
		cfg.SnapshotLimit = def.SnapshotLimit
	}
	if cfg.IncrementalLimit <= 0 {
		cfg.IncrementalLimit = def.IncrementalLimit
	}
	if sched == nil {
		sched = TickerScheduler{}
	}
	return &Controller{
		cfg:       cfg,
		market:    market,
		status:    status,
		sched:     sched,
		store:     barstore.New(),
		now:       time.Now,
		observers: map[int]func(View){},
	}
}

// Select starts polling key, replacing any current selection. Selecting the
// active key again is a no-op.
func (c *Controller) Select(key types.SeriesKey) error {
	if key.Instrument == "" || !types.ValidResolution(key.Resolution) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key.String())
	}

	c.mu.Lock()
	if c.active != nil && c.active.key == key {
		c.mu.Unlock()
		return nil
	}
	c.stopLocked()

	c.store.Reset()
	c.mode = types.ModeSnapshot
	c.lastErr = nil
	c.lastRefresh = time.Time{}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{tag: uuid.NewString(), key: key, ctx: ctx, cancel: cancel}
	c.active = s
	s.handle = c.sched.Every(c.cfg.Interval, func() { c.tick(s) })
	view := c.viewLocked()
	c.mu.Unlock()

	metrics.SeriesBars.Set(0)
	logger.Info(ctx, "Series selected", "series", key.String(), "session", s.tag, "interval", c.cfg.Interval.String())
	c.notify(view)
	return nil
}

// Deselect stops polling. No fetch is issued after it returns.
func (c *Controller) Deselect() {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}
	key := c.active.key
	c.stopLocked()
	c.store.Reset()
	c.mode = types.ModeSnapshot
	c.lastErr = nil
	view := c.viewLocked()
	c.mu.Unlock()

	metrics.SeriesBars.Set(0)
	logger.Info(context.Background(), "Series deselected", "series", key.String())
	c.notify(view)
}

func (c *Controller) stopLocked() {
	if c.active == nil {
		return
	}
	c.active.handle.Cancel()
	c.active.cancel()
	c.active = nil
}

// EnterIncremental switches the active session to incremental acquisition.
// It reports whether key was the active key.
func (c *Controller) EnterIncremental(key types.SeriesKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.active.key != key {
		return false
	}
	if c.mode != types.ModeIncremental {
		c.mode = types.ModeIncremental
		logger.Info(c.active.ctx, "Switched to incremental acquisition", "series", key.String())
	}
	return true
}

// Refresh runs one refresh of the active session now, under the same rules
// as a scheduled tick.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil {
		return ErrIdle
	}

	outcome, err := c.refresh(ctx, s)
	switch outcome {
	case metrics.OutcomeSkipped:
		return ErrRefreshRunning
	case metrics.OutcomeStale:
		return ErrIdle
	}
	return err
}

func (c *Controller) tick(s *session) {
	_, _ = c.refresh(context.Background(), s)
}

func (c *Controller) refresh(parent context.Context, s *session) (string, error) {
	c.mu.Lock()
	if c.active != s {
		c.mu.Unlock()
		return metrics.OutcomeStale, nil
	}
	mode := c.mode
	if s.inFlight {
		c.mu.Unlock()
		metrics.RefreshTotal.WithLabelValues(mode.String(), metrics.OutcomeSkipped).Inc()
		logger.Debug(s.ctx, "Refresh skipped, previous still in flight", "series", s.key.String())
		return metrics.OutcomeSkipped, nil
	}
	s.inFlight = true
	c.mu.Unlock()

	limit := c.cfg.SnapshotLimit
	if mode == types.ModeIncremental {
		limit = c.cfg.IncrementalLimit
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(parent, cancel)
	defer stop()

	ctx, span := trace.StartSpan(ctx, "poller.refresh")
	defer span.End()

	candles, fetchErr := c.market.Bars(ctx, s.key.Instrument, s.key.Resolution, limit)

	var (
		status    types.Status
		statusErr error
	)
	if c.status != nil {
		status, statusErr = c.status.Status(ctx)
	}

	c.mu.Lock()
	s.inFlight = false
	if c.active != s {
		c.mu.Unlock()
		metrics.RefreshTotal.WithLabelValues(mode.String(), metrics.OutcomeStale).Inc()
		logger.Debug(ctx, "Discarding stale refresh", "series", s.key.String(), "session", s.tag)
		return metrics.OutcomeStale, nil
	}
	if err := parent.Err(); err != nil {
		// the caller gave up; its cancellation says nothing about the feed
		c.mu.Unlock()
		metrics.RefreshTotal.WithLabelValues(mode.String(), metrics.OutcomeAbandoned).Inc()
		logger.Debug(ctx, "Refresh abandoned by caller", "series", s.key.String(), "error", err)
		return metrics.OutcomeAbandoned, err
	}

	if c.status != nil {
		if statusErr == nil {
			st := status
			c.lastStatus = &st
		} else {
			logger.Warn(ctx, "Status refresh failed, keeping previous", "error", statusErr)
		}
	}

	outcome := metrics.OutcomeApplied
	c.lastRefresh = c.now()
	if fetchErr != nil {
		outcome = metrics.OutcomeFailed
		c.store.Reset()
		c.lastErr = fetchErr
		span.RecordError(fetchErr)
	} else {
		bars := make([]types.Bar, len(candles))
		for i, cd := range candles {
			bars[i] = types.BarFromCandle(cd)
		}
		if mode == types.ModeIncremental {
			c.store.Merge(bars)
		} else {
			c.store.Replace(bars)
		}
		c.lastErr = nil
	}
	n := c.store.Len()
	view := c.viewLocked()
	c.mu.Unlock()

	metrics.RefreshTotal.WithLabelValues(mode.String(), outcome).Inc()
	metrics.SeriesBars.Set(float64(n))
	if fetchErr != nil {
		logger.Refresh(ctx, s.key.String(), mode.String(), outcome, n, "error", fetchErr)
	} else {
		logger.Refresh(ctx, s.key.String(), mode.String(), outcome, n, "fetched", len(candles))
	}

	c.notify(view)
	return outcome, fetchErr
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		Mode:        c.mode,
		State:       StateIdle,
		Bars:        c.store.CurrentBars(),
		LastRefresh: c.lastRefresh,
	}
	if c.active != nil {
		v.Key = c.active.key
		v.State = StatePolling
		v.Session = c.active.tag
	}
	if c.lastStatus != nil {
		st := *c.lastStatus
		v.Status = &st
	}
	if c.lastErr != nil {
		v.LastError = c.lastErr.Error()
	}
	return v
}

// Subscribe registers fn to receive the view after every selection change
// and every completed refresh. The returned func removes it.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

func (c *Controller) notify(v View) {
	c.obsMu.Lock()
	fns := make([]func(View), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Close stops polling. The controller can be reused with Select.
func (c *Controller) Close() {
	c.Deselect()
}
