// Package metrics registers the Prometheus collectors the request-path
// engine feeds. The exposition endpoint is out of scope in spec §1, but
// this repo still emits the series and internal/httpapi's router serves
// this package's Registry at /metrics — ambient stack carried regardless
// of that Non-goal (see SPEC_FULL.md §10), grounded on
// other_examples/manifests/itskum47-FluxForge and
// other_examples/manifests/CedrosPay-server, both of which pair
// prometheus/client_golang with a payment/gateway-shaped request path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kayleemclaren/payment-intermediary/internal/payment"
)

// Metrics bundles the collectors the engine updates on the request path.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	UpstreamCallsTotal *prometheus.CounterVec
	BreakerState       *prometheus.GaugeVec
	RequestDuration    prometheus.Histogram
}

// New builds and registers a fresh collector set.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_requests_total",
			Help: "Inbound /payments requests by final HTTP status class.",
		}, []string{"status"}),
		UpstreamCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_upstream_calls_total",
			Help: "Winning upstream attempts by upstream id and outcome; only successful winners are counted.",
		}, []string{"upstream", "outcome"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "payment_breaker_open",
			Help: "1 if the upstream's circuit breaker is currently open, else 0.",
		}, []string{"upstream"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "payment_request_duration_seconds",
			Help:    "End-to-end /payments handling latency.",
			Buckets: []float64{.002, .005, .010, .020, .030, .050, .075, .100, .200},
		}),
	}

	reg.MustRegister(m.RequestsTotal, m.UpstreamCallsTotal, m.BreakerState, m.RequestDuration)
	return m
}

// ObserveBreakerState records whether upstream's breaker is open.
func (m *Metrics) ObserveBreakerState(upstream payment.UpstreamID, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	m.BreakerState.WithLabelValues(string(upstream)).Set(v)
}
