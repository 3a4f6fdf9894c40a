// Package metrics exposes Prometheus collectors for LAN sessions.
//
// All methods are safe on a nil *Metrics, so components can take an
// optional collector set without guarding every call.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "lanmode"

// Handshake outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeVersion     = "version"
	OutcomeNoKey       = "no_key"
	OutcomeKeyMismatch = "key_mismatch"
	OutcomeCrypto      = "crypto"
	OutcomeRateLimited = "rate_limited"
)

// Metrics groups the collectors of one agent.
type Metrics struct {
	Handshakes       *prometheus.CounterVec   // by variant (lan, setup) and outcome
	HandshakeLatency *prometheus.HistogramVec // by variant
	Commands         *prometheus.CounterVec   // by kind and result
	CommandLatency   *prometheus.HistogramVec // by kind
	CryptoFailures   *prometheus.CounterVec   // by route
	KeepAlives       *prometheus.CounterVec   // by result
	Rediscoveries    *prometheus.CounterVec   // by result
	ActiveSessions   prometheus.Gauge
	QueueDepth       *prometheus.GaugeVec // by dsn
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "handshakes_total",
			Help:      "Key exchanges handled, by variant and outcome.",
		}, []string{"variant", "outcome"}),
		HandshakeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Time spent handling a key exchange.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"variant"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "commands_total",
			Help:      "Commands resolved, by kind and result.",
		}, []string{"kind", "result"}),
		CommandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "command_duration_seconds",
			Help:      "Time from enqueue to resolution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		CryptoFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "crypto_failures_total",
			Help:      "Envelopes rejected for bad framing, decryption or signature.",
		}, []string{"route"}),
		KeepAlives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "keepalives_total",
			Help:      "Local registration pings sent, by result.",
		}, []string{"result"}),
		Rediscoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rediscoveries_total",
			Help:      "mDNS rediscovery loops, by result.",
		}, []string{"result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently in the active state.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "queue_depth",
			Help:      "Commands waiting for delivery, by device.",
		}, []string{"dsn"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Handshakes, m.HandshakeLatency,
			m.Commands, m.CommandLatency,
			m.CryptoFailures, m.KeepAlives, m.Rediscoveries,
			m.ActiveSessions, m.QueueDepth,
		)
	}
	return m
}

// Handshake records one key exchange.
func (m *Metrics) Handshake(variant, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Handshakes.WithLabelValues(variant, outcome).Inc()
	m.HandshakeLatency.WithLabelValues(variant).Observe(took.Seconds())
}

// Command records a resolved command.
func (m *Metrics) Command(kind string, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(kind, result).Inc()
	m.CommandLatency.WithLabelValues(kind).Observe(took.Seconds())
}

// CryptoFailure records a rejected envelope.
func (m *Metrics) CryptoFailure(route string) {
	if m == nil {
		return
	}
	m.CryptoFailures.WithLabelValues(route).Inc()
}

// KeepAlive records a registration ping.
func (m *Metrics) KeepAlive(err error) {
	if m == nil {
		return
	}
	m.KeepAlives.WithLabelValues(result(err)).Inc()
}

// Rediscovery records the end of an mDNS loop.
func (m *Metrics) Rediscovery(err error) {
	if m == nil {
		return
	}
	m.Rediscoveries.WithLabelValues(result(err)).Inc()
}

// SessionActive adjusts the active session gauge.
func (m *Metrics) SessionActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.ActiveSessions.Inc()
	} else {
		m.ActiveSessions.Dec()
	}
}

// SetQueueDepth publishes the undelivered command count of a device.
func (m *Metrics) SetQueueDepth(dsn string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(dsn).Set(float64(depth))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
