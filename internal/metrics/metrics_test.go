package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	if got := gaugeValue(t, m.activeSessions); got != 1 {
		t.Fatalf("active_sessions=%v, want 1", got)
	}

	m.Relayed(3, 1)
	if got := counterValue(t, m.relayedTotal); got != 3 {
		t.Fatalf("relay_delivered_total=%v, want 3", got)
	}
	if got := counterValue(t, m.droppedTotal); got != 1 {
		t.Fatalf("relay_dropped_total=%v, want 1", got)
	}

	m.Tick("skipped")
	m.Tick("skipped")
	if got := counterValue(t, m.ticksTotal.WithLabelValues("skipped")); got != 2 {
		t.Fatalf("liveness_ticks_total{skipped}=%v, want 2", got)
	}

	m.Control("restart")
	if got := counterValue(t, m.controlTotal.WithLabelValues("restart")); got != 1 {
		t.Fatalf("control_commands_total{restart}=%v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SessionOpened()
	m.SessionClosed()
	m.Relayed(1, 1)
	m.Malformed()
	m.Tick("broadcast")
	m.Control("shutdown")
	m.CertificateInstalled()
	m.CertificateReloadFailed()
}
