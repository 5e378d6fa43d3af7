// Package observability holds the Prometheus instruments of the gate and the chat widget.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	GateDecisions     *prometheus.CounterVec
	CredentialResults *prometheus.CounterVec
	RoleFetches       *prometheus.CounterVec
	ChatTurns         *prometheus.CounterVec
	StreamChunks      prometheus.Counter
	FirstChunkLatency prometheus.Histogram
	ActiveWidgets     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments on reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration on the default registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Page loads by gate outcome.",
		}, []string{"outcome"}),
		CredentialResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_exchanges_total",
			Help:      "Credential exchanges by result.",
		}, []string{"result"}),
		RoleFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_fetches_total",
			Help:      "Role lookups by result.",
		}, []string{"result"}),
		ChatTurns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Assistant turns by outcome.",
		}, []string{"outcome"}),
		StreamChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_stream_chunks_total",
			Help:      "Streamed response fragments rendered.",
		}),
		FirstChunkLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_first_chunk_latency_ms",
			Help:      "Latency to the first streamed fragment in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}),
		ActiveWidgets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chat_active_widgets",
			Help:      "Chat widgets with an open connection.",
		}),
		gatherer: reg,
	}
}

// GateDecision counts one gate outcome.
func (m *Metrics) GateDecision(outcome string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(outcome).Inc()
}

// CredentialResult counts one credential exchange.
func (m *Metrics) CredentialResult(result string) {
	if m == nil {
		return
	}
	m.CredentialResults.WithLabelValues(result).Inc()
}

// RoleFetch counts one role lookup.
func (m *Metrics) RoleFetch(result string) {
	if m == nil {
		return
	}
	m.RoleFetches.WithLabelValues(result).Inc()
}

// ChatTurn counts one finished assistant turn.
func (m *Metrics) ChatTurn(outcome string) {
	if m == nil {
		return
	}
	m.ChatTurns.WithLabelValues(outcome).Inc()
}

// StreamChunk counts one rendered fragment.
func (m *Metrics) StreamChunk() {
	if m == nil {
		return
	}
	m.StreamChunks.Inc()
}

// ObserveFirstChunk records the wait before the first fragment.
func (m *Metrics) ObserveFirstChunk(d time.Duration) {
	if m == nil {
		return
	}
	m.FirstChunkLatency.Observe(float64(d.Milliseconds()))
}

// WidgetConnected adjusts the open-widget gauge by delta.
func (m *Metrics) WidgetConnected(delta float64) {
	if m == nil {
		return
	}
	m.ActiveWidgets.Add(delta)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
