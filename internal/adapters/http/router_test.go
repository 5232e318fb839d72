package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/certs"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type noCerts struct{}

func (noCerts) Regenerate() (string, error) { return "127.0.0.1", nil }
func (noCerts) Current() certs.Material     { return certs.Material{} }

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>relay</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	registry := app.NewRegistry()
	o := &orch.Orchestrator{
		Registry: registry,
		Relay:    app.NewRelay(registry, m),
		Monitor:  app.NewMonitor(registry, m, 0),
		Metrics:  m,
	}
	cfg := &config.Config{Mode: "test", StaticPath: static}
	return SetupRouter(context.Background(), cfg, Deps{
		Status:   o,
		Certs:    noCerts{},
		Signal:   signal.NewSignalWSController(o),
		Gatherer: reg,
	})
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouter_Index(t *testing.T) {
	w := get(newRouter(t), "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "relay") {
		t.Fatalf("index: code=%d body=%q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("cors origin = %q", got)
	}
}

func TestRouter_StatusWhenEmpty(t *testing.T) {
	w := get(newRouter(t), "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["connectedClients"] != float64(0) || body["isRoleAOnline"] != false || body["isRoleBOnline"] != false {
		t.Fatalf("body = %v", body)
	}
}

func TestRouter_Metrics(t *testing.T) {
	w := get(newRouter(t), "/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "relay_active_sessions") {
		t.Fatalf("metrics: code=%d", w.Code)
	}
}

func TestRouter_Preflight(t *testing.T) {
	h := newRouter(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/status", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight code = %d", w.Code)
	}
}

func TestRouter_DownloadWithoutCertificate(t *testing.T) {
	if w := get(newRouter(t), "/download-certificate"); w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", w.Code)
	}
}
