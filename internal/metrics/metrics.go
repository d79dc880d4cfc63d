package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dispatch engine
type Metrics struct {
	// Per-recipient outcomes
	RecipientsSentTotal   *prometheus.CounterVec
	RecipientsFailedTotal *prometheus.CounterVec

	// Dispatch runs
	DispatchRunsTotal       *prometheus.CounterVec
	DispatchDurationSeconds *prometheus.HistogramVec
	DispatchInFlight        prometheus.Gauge

	// API metrics
	APIRequestsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RecipientsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatchd_recipients_sent_total",
				Help: "Total number of successfully delivered recipients",
			},
			[]string{"provider"},
		),
		RecipientsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatchd_recipients_failed_total",
				Help: "Total number of failed recipient sends",
			},
			[]string{"provider"},
		),
		DispatchRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatchd_runs_total",
				Help: "Total number of dispatch runs by outcome",
			},
			[]string{"outcome"},
		),
		DispatchDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispatchd_run_duration_seconds",
				Help:    "Dispatch run duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"provider"},
		),
		DispatchInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dispatchd_runs_in_flight",
				Help: "Number of dispatch runs currently executing",
			},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatchd_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.RecipientsSentTotal,
		m.RecipientsFailedTotal,
		m.DispatchRunsTotal,
		m.DispatchDurationSeconds,
		m.DispatchInFlight,
		m.APIRequestsTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
