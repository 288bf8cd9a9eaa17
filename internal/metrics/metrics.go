package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes
const (
	OutcomeApplied = "applied"
	OutcomeFailed  = "failed"
	OutcomeStale   = "stale"
	OutcomeSkipped = "skipped"
	// OutcomeAbandoned is a manual refresh whose caller cancelled it.
	OutcomeAbandoned = "abandoned"
)

var (
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livechart_refresh_total",
		Help: "Series refreshes by acquisition mode and outcome",
	}, []string{"mode", "outcome"})

	SeriesBars = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livechart_series_bars",
		Help: "Bars currently held for the selected series",
	})

	MarketDataLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "livechart_marketdata_latency_seconds",
		Help:    "Latency of market data requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"source", "op"})

	MarketDataErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livechart_marketdata_errors_total",
		Help: "Failed market data requests",
	}, []string{"source", "op"})

	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "livechart_backend_latency_seconds",
		Help:    "Latency of trading backend requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	BackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livechart_backend_errors_total",
		Help: "Failed or rejected trading backend requests",
	}, []string{"op"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livechart_ws_connections",
		Help: "Active WebSocket push connections",
	})
)
