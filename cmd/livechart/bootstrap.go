package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"livechart/internal/correlate"
	"livechart/internal/export"
	"livechart/internal/interfaces"
	"livechart/internal/live"
	"livechart/internal/logger"
	"livechart/internal/marketdata/binance"
	"livechart/internal/marketdata/kite"
	"livechart/internal/marketdata/marketdataobs"
	"livechart/internal/poller"
	"livechart/internal/push"
	"livechart/internal/server"
	"livechart/internal/store"
	"livechart/internal/trace"
	"livechart/internal/trading"
	"livechart/internal/trading/tradingobs"
)

// configPath is the YAML config location handed to the injector.
type configPath string

// App holds the components built by the injector.
type App struct {
	Config     *store.Config
	Market     interfaces.MarketData
	Trading    interfaces.TradingControl
	Controller *poller.Controller
	Session    *live.Session
	Gateway    *push.Gateway
	Journal    *export.Journal
	Server     *server.Server
}

// Close stops polling. The server is shut down separately.
func (a *App) Close() {
	a.Controller.Close()
}

// initializeSystem loads .env and starts logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func shutdownSystem() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(ctx)
	logger.Sync()
}

func loadConfig(path configPath) (*store.Config, error) {
	cfg, err := store.LoadConfig(string(path))
	if err != nil {
		logger.ErrorWithErr(context.Background(), "Failed to load config", err, "path", string(path))
		return nil, err
	}
	return cfg, nil
}

// initializeMarketData builds the configured market-data source with observability.
func initializeMarketData(cfg *store.Config) (interfaces.MarketData, error) {
	ctx := context.Background()

	switch cfg.Market.Source {
	case store.MarketSourceKite:
		k, err := kite.New(kite.Params{
			APIKey:      os.Getenv(cfg.Market.Kite.APIKeyEnv),
			AccessToken: os.Getenv(cfg.Market.Kite.AccessTokenEnv),
			Exchange:    cfg.Market.Kite.Exchange,
		})
		if err != nil {
			return nil, fmt.Errorf("kite market data: %w", err)
		}
		logger.Info(ctx, "Using Kite historical candles", "exchange", cfg.Market.Kite.Exchange)
		return marketdataobs.Wrap(store.MarketSourceKite, k), nil
	default:
		logger.Info(ctx, "Using Binance klines", "base_url", cfg.Market.Binance.BaseURL)
		b := binance.New(cfg.Market.Binance.BaseURL, cfg.MarketTimeout())
		return marketdataobs.Wrap(store.MarketSourceBinance, b), nil
	}
}

// initializeTrading builds the trading backend client with observability.
func initializeTrading(cfg *store.Config) interfaces.TradingControl {
	tc := trading.New(cfg.Backend.BaseURL, cfg.BackendTimeout(), cfg.Backend.MaxRetries)
	return tradingobs.Wrap(tc)
}

func initializeController(cfg *store.Config, md interfaces.MarketData, tc interfaces.TradingControl) *poller.Controller {
	return poller.New(poller.Config{
		Interval:         cfg.PollInterval(),
		SnapshotLimit:    cfg.SnapshotLimit,
		IncrementalLimit: cfg.IncrementalLimit,
	}, md, tc, nil)
}

func initializeSession(cfg *store.Config, ctrl *poller.Controller, md interfaces.MarketData, tc interfaces.TradingControl) *live.Session {
	return live.NewSession(ctrl, md, tc, correlate.New(cfg.Tolerance()))
}

func initializeGateway() *push.Gateway {
	return push.NewGateway(logger.Zap())
}

// initializeJournal returns nil when journaling is disabled.
func initializeJournal(cfg *store.Config) *export.Journal {
	if !cfg.Export.Journal {
		return nil
	}
	return export.NewJournal(cfg.Export.Dir)
}

func initializeServer(cfg *store.Config, session *live.Session, gw *push.Gateway) *server.Server {
	return server.New(cfg.Server.Listen, session, gw, logger.Zap())
}

// publishFrames forwards every session frame to the push gateway and the
// journal. The returned func unsubscribes.
func publishFrames(ctx context.Context, a *App) func() {
	return a.Session.Subscribe(func(f live.Frame) {
		if a.Gateway != nil {
			if err := a.Gateway.Publish("frame", f); err != nil {
				logger.Warn(ctx, "Failed to publish frame", "error", err)
			}
		}
		if a.Journal == nil || f.Key.IsZero() || !completed(f) {
			return
		}
		if err := a.Journal.Append(journalEntry(f)); err != nil {
			logger.Warn(ctx, "Failed to append journal entry", "error", err)
		}
	})
}

// completed reports whether f was produced by a finished refresh rather
// than a selection change.
func completed(f live.Frame) bool {
	return !f.LastRefresh.IsZero() || f.LastError != ""
}

func journalEntry(f live.Frame) export.JournalEntry {
	e := export.JournalEntry{
		Series:      f.Key.String(),
		Session:     f.Session,
		Mode:        f.Mode.String(),
		Bars:        len(f.Bars),
		LastError:   f.LastError,
		Annotations: len(f.Annotations),
	}
	if n := len(f.Bars); n > 0 {
		e.LastClose = f.Bars[n-1].Close.String()
	}
	return e
}

// compressOldJournals gzips journal days past the retention window once a day.
func compressOldJournals(ctx context.Context, a *App) {
	if a.Journal == nil || a.Config.Export.RetentionDays <= 0 {
		return
	}
	run := func() {
		n, err := a.Journal.CompressOlder(a.Config.Export.RetentionDays)
		if err != nil {
			logger.Warn(ctx, "Failed to compress old journals", "error", err)
			return
		}
		if n > 0 {
			logger.Info(ctx, "Compressed old journals", "files", n)
		}
	}
	run()

	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}

// awaitRefresh selects key and blocks until its first refresh completes.
func awaitRefresh(ctx context.Context, s *live.Session, instrument, resolution string) (live.Frame, error) {
	done := make(chan live.Frame, 1)
	unsubscribe := s.Subscribe(func(f live.Frame) {
		if f.Key.Instrument != instrument || f.Key.Resolution != resolution || !completed(f) {
			return
		}
		select {
		case done <- f:
		default:
		}
	})
	defer unsubscribe()

	if err := s.Select(instrument, resolution); err != nil {
		return live.Frame{}, err
	}

	select {
	case f := <-done:
		if f.LastError != "" && len(f.Bars) == 0 {
			return f, fmt.Errorf("refresh %s@%s: %s", instrument, resolution, f.LastError)
		}
		return f, nil
	case <-ctx.Done():
		return live.Frame{}, ctx.Err()
	}
}
