// Package metrics exposes the settlement engine's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coachpay/internal/domain"
	"coachpay/internal/service"
)

const namespace = "coachpay"

// Metrics holds every collector. It implements service.Metrics.
type Metrics struct {
	Requests         *prometheus.CounterVec
	LatencyMS        *prometheus.HistogramVec
	Anomalies        *prometheus.CounterVec
	AnomaliesDropped prometheus.Counter
	Settlements      *prometheus.CounterVec
	WebhookEvents    *prometheus.CounterVec
	SweepDuration    prometheus.Histogram
	SweepOrders      prometheus.Counter
}

var _ service.Metrics = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "anomalies_total",
			Help:      "Anomalies recorded by category and severity.",
		}, []string{"category", "severity"}),
		AnomaliesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "anomalies_dropped_total",
			Help:      "Anomalies dropped because the audit queue was full.",
		}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "outcomes_total",
			Help:      "Settlement attempt outcomes by resulting status.",
		}, []string{"status"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Processor webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of settlement sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		SweepOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "sweep_orders_total",
			Help:      "Orders processed by settlement sweeps.",
		}),
	}

	reg.MustRegister(
		m.Requests,
		m.LatencyMS,
		m.Anomalies,
		m.AnomaliesDropped,
		m.Settlements,
		m.WebhookEvents,
		m.SweepDuration,
		m.SweepOrders,
	)
	return m
}

func (m *Metrics) AnomalyRecorded(category domain.AnomalyCategory, severity domain.Severity) {
	m.Anomalies.WithLabelValues(string(category), string(severity)).Inc()
}

func (m *Metrics) AnomalyDropped() {
	m.AnomaliesDropped.Inc()
}

func (m *Metrics) SettlementOutcome(status domain.SettlementStatus) {
	m.Settlements.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) WebhookProcessed(eventType domain.WebhookEventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.WebhookEvents.WithLabelValues(string(eventType), outcome).Inc()
}

func (m *Metrics) SweepFinished(duration time.Duration, attempted int) {
	m.SweepDuration.Observe(duration.Seconds())
	m.SweepOrders.Add(float64(attempted))
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(handler string, status int, duration time.Duration) {
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(duration.Milliseconds()))
}

// Handler serves the collectors registered with g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
