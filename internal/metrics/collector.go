// internal/metrics/collector.go
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rovshanmuradov/sniper-agent/internal/events"
)

const namespace = "sniper"

// Collector переводит события шины в метрики Prometheus. Метрики
// регистрируются в собственном реестре, поэтому коллекторов может быть несколько.
type Collector struct {
	registry *prometheus.Registry

	trades         *prometheus.CounterVec
	tradeDuration  *prometheus.HistogramVec
	feesSOL        prometheus.Counter
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	candidates     *prometheus.CounterVec
	openPositions  prometheus.Gauge
	positionExits  *prometheus.CounterVec
	sellFailures   prometheus.Counter
	activeSessions prometheus.Gauge
}

// NewCollector создает коллектор и регистрирует все метрики.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Total number of submitted trades",
		}, []string{"side", "status", "reason"}),
		tradeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_duration_seconds",
			Help:      "Time from submission to confirmation or failure",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"side"}),
		feesSOL: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_sol_total",
			Help:      "Service fees charged by confirmed trades, in SOL",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Discovery cycles by result",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one discovery cycle",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Screened candidates by verdict",
		}, []string{"verdict"}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Positions currently watched by monitors",
		}),
		positionExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_exits_total",
			Help:      "Closed positions by exit reason",
		}, []string{"reason"}),
		sellFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sell_failures_total",
			Help:      "Exit sells that failed and were retried on the next tick",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Running sniper sessions",
		}),
	}

	c.registry.MustRegister(
		c.trades, c.tradeDuration, c.feesSOL,
		c.cycles, c.cycleDuration, c.candidates,
		c.openPositions, c.positionExits, c.sellFailures,
		c.activeSessions,
	)
	return c
}

// Attach subscribes the collector to every event on the bus.
func (c *Collector) Attach(bus *events.Bus) events.Subscription {
	return bus.Subscribe(events.Any, c)
}

// Handle implements events.Handler.
func (c *Collector) Handle(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.TradeSubmittedEvent:
		status := "success"
		if !e.Success {
			status = "failure"
		}
		c.trades.WithLabelValues(e.Side, status, e.Reason).Inc()
		c.tradeDuration.WithLabelValues(e.Side).Observe(e.Duration.Seconds())
		if e.Success {
			c.feesSOL.Add(e.Fee.InexactFloat64())
		}
	case events.CycleCompletedEvent:
		result := "ok"
		if e.Err != nil {
			result = "error"
		}
		c.cycles.WithLabelValues(result).Inc()
		c.cycleDuration.Observe(e.Duration.Seconds())
	case events.CandidateScreenedEvent:
		verdict := "unsafe"
		switch {
		case e.Err != nil:
			verdict = "unavailable"
		case e.Safe:
			verdict = "safe"
		}
		c.candidates.WithLabelValues(verdict).Inc()
	case events.PositionEvent:
		switch e.Type() {
		case events.PositionOpened:
			c.openPositions.Inc()
		case events.PositionClosed:
			c.openPositions.Dec()
			c.positionExits.WithLabelValues(e.ExitReason).Inc()
		case events.PositionSellFailed:
			c.sellFailures.Inc()
		}
	case events.SessionEvent:
		switch e.Type() {
		case events.SessionStarted:
			c.activeSessions.Inc()
		case events.SessionStopped:
			c.activeSessions.Dec()
		}
	}
	return nil
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
