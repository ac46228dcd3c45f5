// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus instrumentation for the server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors this server reports.
type Metrics struct {
	ActiveConnections  prometheus.Gauge
	ConnectionsTotal   *prometheus.CounterVec
	ConnectionDuration prometheus.Histogram

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
	RateLimitedConns    prometheus.Counter

	WebSocketFrames *prometheus.CounterVec
}

// New creates a Metrics instance registered under namespace (defaulting to
// "emberhttp"), constructing every collector up front via promauto.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "emberhttp"
	}
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of currently open connections.",
		}),
		ConnectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total accepted connections by terminal outcome.",
		}, []string{"outcome"}),
		ConnectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_duration_seconds",
			Help:      "Connection lifetime from accept to close.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total requests dispatched by method and response status.",
		}, []string{"method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Handler dispatch duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		CircuitBreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open).",
		}, []string{"route"}),
		CircuitBreakerTrips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of times a route's circuit breaker opened.",
		}, []string{"route"}),
		RateLimitedConns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_connections_total",
			Help:      "Total connections rejected by the accept-rate limiter.",
		}),
		WebSocketFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_frames_total",
			Help:      "Total WebSocket frames by opcode and direction.",
		}, []string{"opcode", "direction"}),
	}
}

// ObserveConnection tracks one connection's lifetime in the active
// connection gauge and the duration histogram. It does not touch
// ConnectionsTotal; the terminal outcome is counted by the caller.
func (m *Metrics) ObserveConnection(f func()) {
	m.ActiveConnections.Inc()
	defer m.ActiveConnections.Dec()

	start := time.Now()
	f()
	m.ConnectionDuration.Observe(time.Since(start).Seconds())
}

// ObserveRequest tracks one dispatch call, recording its duration and the
// method/status label pair once f returns.
func (m *Metrics) ObserveRequest(method string, f func() (status string)) {
	start := time.Now()
	status := f()
	m.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	m.RequestsTotal.WithLabelValues(method, status).Inc()
}
