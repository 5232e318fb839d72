// Package metrics holds the Prometheus collectors of the relay.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "relay"

type Metrics struct {
	activeSessions   prometheus.Gauge
	relayedTotal     prometheus.Counter
	droppedTotal     prometheus.Counter
	malformedTotal   prometheus.Counter
	ticksTotal       *prometheus.CounterVec
	controlTotal     *prometheus.CounterVec
	certRegenerated  prometheus.Counter
	certReloadErrors prometheus.Counter
}

// New registers every collector on reg. Passing nil uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of connected WebSocket sessions",
		}),
		relayedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_delivered_total",
			Help:      "Room events delivered to a recipient",
		}),
		droppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_dropped_total",
			Help:      "Room events dropped because the recipient could not take them",
		}),
		malformedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_malformed_total",
			Help:      "Room events rejected because room or roomEvent could not be read",
		}),
		ticksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_ticks_total",
			Help:      "Liveness ticks by outcome",
		}, []string{"outcome"}),
		controlTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_commands_total",
			Help:      "Control plane commands by kind",
		}, []string{"command"}),
		certRegenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificate_installs_total",
			Help:      "TLS certificates installed into the live listener",
		}),
		certReloadErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificate_reload_errors_total",
			Help:      "Failed certificate reloads from disk",
		}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) Relayed(delivered, dropped int) {
	if m == nil {
		return
	}
	m.relayedTotal.Add(float64(delivered))
	m.droppedTotal.Add(float64(dropped))
}

func (m *Metrics) Malformed() {
	if m == nil {
		return
	}
	m.malformedTotal.Inc()
}

// Tick records a liveness tick; outcome is "skipped" or "broadcast".
func (m *Metrics) Tick(outcome string) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Control(command string) {
	if m == nil {
		return
	}
	m.controlTotal.WithLabelValues(command).Inc()
}

func (m *Metrics) CertificateInstalled() {
	if m == nil {
		return
	}
	m.certRegenerated.Inc()
}

func (m *Metrics) CertificateReloadFailed() {
	if m == nil {
		return
	}
	m.certReloadErrors.Inc()
}
