// Package metrics provides Prometheus metrics for the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "qqqm"

// Job outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeBlocked = "blocked"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Metrics holds every collector. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	GuardDenials *prometheus.CounterVec
	JobRuns      *prometheus.CounterVec
	Cash         prometheus.Gauge
	Equity       prometheus.Gauge
	OpenRisk     prometheus.Gauge
	MarkSeconds  prometheus.Histogram
}

// New creates the collectors and registers them on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GuardDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_denials_total",
			Help:      "Risk guard denials by check.",
		}, []string{"check"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by outcome.",
		}, []string{"job", "outcome"}),
		Cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "account_cash",
			Help:      "Cash of the latest account mark.",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "account_equity",
			Help:      "Equity of the latest account mark.",
		}),
		OpenRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_risk",
			Help:      "Sum of open risk item amounts.",
		}),
		MarkSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "account_mark_seconds",
			Help:      "Duration of account valuation.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.GuardDenials,
		m.JobRuns,
		m.Cash,
		m.Equity,
		m.OpenRisk,
		m.MarkSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GuardDenied counts a denial by check name.
func (m *Metrics) GuardDenied(check string) {
	if m == nil {
		return
	}
	m.GuardDenials.WithLabelValues(check).Inc()
}

// JobRun counts a job run with its outcome.
func (m *Metrics) JobRun(job, outcome string) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
}

// ObserveAccount records the latest cash and equity.
func (m *Metrics) ObserveAccount(cash, equity decimal.Decimal) {
	if m == nil {
		return
	}
	m.Cash.Set(cash.InexactFloat64())
	m.Equity.Set(equity.InexactFloat64())
}

// ObserveOpenRisk records the open risk sum.
func (m *Metrics) ObserveOpenRisk(risk decimal.Decimal) {
	if m == nil {
		return
	}
	m.OpenRisk.Set(risk.InexactFloat64())
}

// ObserveMark records how long an account valuation took.
func (m *Metrics) ObserveMark(d time.Duration) {
	if m == nil {
		return
	}
	m.MarkSeconds.Observe(d.Seconds())
}
