// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Zendesk API calls
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zendesk_upstream_requests_total",
			Help: "Zendesk API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zendesk_upstream_request_duration_seconds",
			Help:    "Zendesk API request latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// Snapshot refreshes
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_refresh_total",
			Help: "Snapshot refresh cycles by outcome",
		},
		[]string{"outcome"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshot_refresh_duration_seconds",
			Help:    "Duration of a full refresh cycle",
			Buckets: []float64{.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	RefreshLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshot_last_success_timestamp",
			Help: "Unix time of the last published snapshot",
		},
	)

	SnapshotTickets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshot_tickets",
			Help: "Tickets in the live snapshot",
		},
	)

	// Relay deliveries
	RelayTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Relay posts to Telex return URLs by outcome",
		},
		[]string{"outcome"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Inbound HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Inbound HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Inbound HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients_active",
			Help: "Connected websocket clients",
		},
	)
)

// RecordUpstream records one Zendesk API call.
func RecordUpstream(endpoint string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	UpstreamDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRefresh records a finished refresh cycle.
func RecordRefresh(duration time.Duration, tickets int, err error) {
	RefreshDuration.Observe(duration.Seconds())
	if err != nil {
		RefreshTotal.WithLabelValues("failure").Inc()
		return
	}
	RefreshTotal.WithLabelValues("success").Inc()
	RefreshLastSuccess.SetToCurrentTime()
	SnapshotTickets.Set(float64(tickets))
}

// RecordRelay records one relay delivery.
func RecordRelay(err error) {
	if err != nil {
		RelayTotal.WithLabelValues("failure").Inc()
		return
	}
	RelayTotal.WithLabelValues("success").Inc()
}

// RecordHTTPRequest records one inbound request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
