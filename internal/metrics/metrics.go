// Package metrics provides Prometheus metrics for tenantly.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can be built without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	gatewayCalls     *prometheus.CounterVec
	gatewayDuration  *prometheus.HistogramVec
	guardDecisions   *prometheus.CounterVec
	realtimeEvents   *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	triageResults    *prometheus.CounterVec
}

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// New creates the metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantly_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantly_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"method", "path"},
		),
		requestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenantly_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		gatewayCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantly_gateway_calls_total",
				Help: "Total number of gateway calls by operation and outcome",
			},
			[]string{"op", "status"},
		),
		gatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantly_gateway_call_duration_seconds",
				Help:    "Gateway call duration in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"op"},
		),
		guardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantly_guard_decisions_total",
				Help: "Navigation guard decisions by outcome",
			},
			[]string{"outcome"},
		),
		realtimeEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantly_realtime_events_total",
				Help: "Realtime change events published by table and type",
			},
			[]string{"table", "type"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenantly_active_sessions",
				Help: "Number of signed-in sessions held by the server",
			},
		),
		triageResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantly_triage_results_total",
				Help: "AI triage attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) IncRequestsInFlight() {
	if m == nil {
		return
	}
	m.requestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	if m == nil {
		return
	}
	m.requestsInFlight.Dec()
}

// RecordGatewayCall records one gateway operation and whether it failed.
func (m *Metrics) RecordGatewayCall(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.gatewayCalls.WithLabelValues(op, status).Inc()
	m.gatewayDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordGuardDecision counts a navigation decision. outcome is "allow" or
// "redirect".
func (m *Metrics) RecordGuardDecision(outcome string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRealtimeEvent(table, eventType string) {
	if m == nil {
		return
	}
	m.realtimeEvents.WithLabelValues(table, eventType).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) RecordTriage(outcome string) {
	if m == nil {
		return
	}
	m.triageResults.WithLabelValues(outcome).Inc()
}
